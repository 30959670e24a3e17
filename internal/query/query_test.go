package query

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/crag/internal/automata"
	"github.com/standardbeagle/crag/internal/graph"
	"github.com/standardbeagle/crag/internal/rcu"
)

// buildGraph wires main -> {parse, run}, parse -> lex, run -> exec, and a
// ref edge main -> helper.
func buildGraph(t *testing.T, h *rcu.Handle) *graph.Graph {
	t.Helper()
	g := graph.New()
	add := func(name string) graph.NodeID {
		i := g.AddExternal(h, name)
		g.SetDefined(h, i)
		return i
	}
	main := add("main")
	parse := add("parse")
	run := add("run")
	lex := add("lex")
	exec := add("exec")
	helper := add("helper")

	g.AddEdge(h, main, parse, true)
	g.AddEdge(h, main, run, true)
	g.AddEdge(h, parse, lex, true)
	g.AddEdge(h, run, exec, true)
	g.AddEdge(h, main, helper, false)
	return g
}

func pathspec(t *testing.T, g *graph.Graph, h *rcu.Handle, s string) *automata.LazyDFA {
	t.Helper()
	nfa, err := ParsePathspec(g, h, s)
	require.NoError(t, err)
	return automata.NewLazyDFA(nfa)
}

func sortPaths(ps [][]string) {
	sort.Slice(ps, func(i, j int) bool {
		a, b := ps[i], ps[j]
		for k := 0; k < len(a) && k < len(b); k++ {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return len(a) < len(b)
	})
}

func TestPathsExactChain(t *testing.T) {
	h := rcu.Register()
	defer h.Unregister()
	g := buildGraph(t, h)

	dfa := pathspec(t, g, h, "main parse lex")
	paths := Paths(g, h, dfa, Options{})
	require.Len(t, paths, 1)
	assert.Equal(t, []string{"main", "parse", "lex"}, paths[0])
}

func TestPathsWildcard(t *testing.T) {
	h := rcu.Register()
	defer h.Unregister()
	g := buildGraph(t, h)

	dfa := pathspec(t, g, h, "main .* lex")
	paths := Paths(g, h, dfa, Options{})
	sortPaths(paths)
	require.Len(t, paths, 1)
	assert.Equal(t, []string{"main", "parse", "lex"}, paths[0])
}

func TestPathsAlternation(t *testing.T) {
	h := rcu.Register()
	defer h.Unregister()
	g := buildGraph(t, h)

	dfa := pathspec(t, g, h, "main (parse|run)")
	paths := Paths(g, h, dfa, Options{})
	sortPaths(paths)
	require.Len(t, paths, 2)
	assert.Equal(t, []string{"main", "parse"}, paths[0])
	assert.Equal(t, []string{"main", "run"}, paths[1])
}

func TestPathsRegexAtom(t *testing.T) {
	h := rcu.Register()
	defer h.Unregister()
	g := buildGraph(t, h)

	dfa := pathspec(t, g, h, "main /pa.*/ lex")
	paths := Paths(g, h, dfa, Options{})
	require.Len(t, paths, 1)
	assert.Equal(t, []string{"main", "parse", "lex"}, paths[0])
}

func TestPathsLabelAtom(t *testing.T) {
	h := rcu.Register()
	defer h.Unregister()
	g := buildGraph(t, h)
	g.AddLabel(h, g.GetNode(h, "run"), "entry")

	dfa := pathspec(t, g, h, "main [entry] exec")
	paths := Paths(g, h, dfa, Options{})
	require.Len(t, paths, 1)
	assert.Equal(t, []string{"main", "run", "exec"}, paths[0])
}

func TestPathsRefEdgeSuppressedByDefault(t *testing.T) {
	h := rcu.Register()
	defer h.Unregister()
	g := buildGraph(t, h)

	dfa := pathspec(t, g, h, "main helper")
	assert.Empty(t, Paths(g, h, dfa, Options{}))

	dfa = pathspec(t, g, h, "main helper")
	paths := Paths(g, h, dfa, Options{IncludeRef: true})
	require.Len(t, paths, 1)
	assert.Equal(t, []string{"main", "helper"}, paths[0])
}

func TestPathsExternalExcluded(t *testing.T) {
	h := rcu.Register()
	defer h.Unregister()
	g := buildGraph(t, h)
	ext := g.AddExternal(h, "ext")
	g.AddEdge(h, g.GetNode(h, "main"), ext, true)

	dfa := pathspec(t, g, h, "main ext")
	assert.Empty(t, Paths(g, h, dfa, Options{}))

	dfa = pathspec(t, g, h, "main ext")
	paths := Paths(g, h, dfa, Options{IncludeExternal: true})
	require.Len(t, paths, 1)
}

func TestPathsLimit(t *testing.T) {
	h := rcu.Register()
	defer h.Unregister()
	g := buildGraph(t, h)

	dfa := pathspec(t, g, h, ". .")
	all := Paths(g, h, dfa, Options{})
	require.Greater(t, len(all), 1)

	dfa = pathspec(t, g, h, ". .")
	assert.Len(t, Paths(g, h, dfa, Options{Limit: 1}), 1)
}

func TestParseErrors(t *testing.T) {
	h := rcu.Register()
	defer h.Unregister()
	g := graph.New()

	for _, src := range []string{"(a", "/unterminated", "[label", "a)"} {
		_, err := ParsePathspec(g, h, src)
		assert.Error(t, err, "pathspec %q must not parse", src)
	}
}

func TestParsePostfix(t *testing.T) {
	h := rcu.Register()
	defer h.Unregister()
	g := graph.New()

	nfa, err := ParsePathspec(g, h, "a b* c?")
	require.NoError(t, err)
	assert.True(t, nfa.Matches([]string{"a"}))
	assert.True(t, nfa.Matches([]string{"a", "b", "b", "c"}))
	assert.False(t, nfa.Matches([]string{"b"}))
}

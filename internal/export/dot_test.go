package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/crag/internal/graph"
	"github.com/standardbeagle/crag/internal/rcu"
)

func testGraph(t *testing.T, h *rcu.Handle) *graph.Graph {
	t.Helper()
	g := graph.New()

	main := g.AddExternal(h, "main")
	g.SetDefined(h, main)
	g.SetLocation(h, main, "main.c", 1)

	util := g.AddExternal(h, "util")
	g.SetDefined(h, util)
	g.SetLocation(h, util, "util.c", 10)

	ext := g.AddExternal(h, "malloc") // stays external

	lone := g.AddExternal(h, "lone")
	g.SetDefined(h, lone)
	g.SetLocation(h, lone, "main.c", 50)

	g.AddEdge(h, main, util, true)
	g.AddEdge(h, main, ext, true)
	g.AddEdge(h, util, lone, false) // ref edge
	return g
}

func render(t *testing.T, g *graph.Graph, h *rcu.Handle, opts Options, f *Filter) string {
	t.Helper()
	var b strings.Builder
	require.NoError(t, WriteDot(&b, g, h, opts, f))
	return b.String()
}

func TestWriteDotBasic(t *testing.T) {
	h := rcu.Register()
	defer h.Unregister()
	g := testGraph(t, h)

	out := render(t, g, h, Options{}, nil)

	assert.True(t, strings.HasPrefix(out, "digraph callgraph {\n"))
	assert.True(t, strings.HasSuffix(out, "}\n"))
	assert.Contains(t, out, `"main" -> "util";`)
	assert.NotContains(t, out, "malloc", "external nodes are excluded by default")
	assert.NotContains(t, out, `"util" -> "lone";`, "ref edges are excluded by default")
	assert.Contains(t, out, `"lone";`, "isolated nodes are listed")
}

func TestWriteDotIncludeExternal(t *testing.T) {
	h := rcu.Register()
	defer h.Unregister()
	g := testGraph(t, h)

	out := render(t, g, h, Options{IncludeExternal: true}, nil)
	assert.Contains(t, out, `"main" -> "malloc";`)
}

func TestWriteDotIncludeRef(t *testing.T) {
	h := rcu.Register()
	defer h.Unregister()
	g := testGraph(t, h)

	out := render(t, g, h, Options{IncludeRef: true}, nil)
	assert.Contains(t, out, `"util" -> "lone";`)
}

func TestWriteDotFileClusters(t *testing.T) {
	h := rcu.Register()
	defer h.Unregister()
	g := testGraph(t, h)

	out := render(t, g, h, Options{Files: true}, nil)
	assert.Contains(t, out, "subgraph cluster_0 {")
	assert.Contains(t, out, `label = "main.c";`)
	assert.Contains(t, out, `label = "util.c";`)
}

func TestWriteDotOmitNode(t *testing.T) {
	h := rcu.Register()
	defer h.Unregister()
	g := testGraph(t, h)

	f := NewFilter()
	f.Omitted = map[string]bool{"util": true}
	out := render(t, g, h, Options{}, f)
	assert.NotContains(t, out, "util")
}

func TestWriteDotKeepOverridesOmit(t *testing.T) {
	h := rcu.Register()
	defer h.Unregister()
	g := testGraph(t, h)

	f := NewFilter()
	f.Omitted = map[string]bool{"util": true}
	f.Keep = map[string]bool{"util": true}
	out := render(t, g, h, Options{}, f)
	assert.Contains(t, out, `"main" -> "util";`)
}

func TestWriteDotOmitCallees(t *testing.T) {
	h := rcu.Register()
	defer h.Unregister()
	g := testGraph(t, h)

	f := NewFilter()
	f.OmitCallees = map[string]bool{"main": true}
	out := render(t, g, h, Options{}, f)
	assert.NotContains(t, out, `"main" -> "util";`)
	assert.Contains(t, out, `"main";`, "main survives as an isolated node")
}

func TestWriteDotUsesDisplayNames(t *testing.T) {
	h := rcu.Register()
	defer h.Unregister()
	g := graph.New()

	i := g.AddExternal(h, "ns::frob")
	g.SetDefined(h, i)
	g.SetUsername(h, i, "frob")

	out := render(t, g, h, Options{}, nil)
	assert.Contains(t, out, `"frob";`)
	assert.NotContains(t, out, "ns::frob")
}

package query

import (
	"github.com/standardbeagle/crag/internal/automata"
	"github.com/standardbeagle/crag/internal/graph"
	"github.com/standardbeagle/crag/internal/rcu"
)

// Options controls a path enumeration.
type Options struct {
	// IncludeExternal lets paths pass through undefined nodes.
	IncludeExternal bool
	// IncludeRef lets paths follow reference edges to defined nodes.
	IncludeRef bool
	// Limit bounds the number of paths returned; 0 means no bound.
	Limit int
}

// Paths enumerates simple call paths whose node-name sequences are
// accepted by the automaton. Paths never revisit a node.
func Paths(g *graph.Graph, h *rcu.Handle, dfa *automata.LazyDFA, opts Options) [][]string {
	w := &walker{g: g, h: h, dfa: dfa, opts: opts,
		visited: make(map[graph.NodeID]bool),
		valid:   make(map[graph.NodeID]bool),
	}

	count := g.NodeCount()
	roots := make([]graph.NodeID, 0, count)
	for i := uint64(0); i < count; i++ {
		roots = append(roots, graph.NodeID(i))
	}

	init := dfa.Initial()
	if dfa.IsFailure(init) {
		return nil
	}
	w.visit(graph.None, roots, init)
	return w.out
}

type walker struct {
	g    *graph.Graph
	h    *rcu.Handle
	dfa  *automata.LazyDFA
	opts Options

	visited map[graph.NodeID]bool
	valid   map[graph.NodeID]bool
	path    []string
	out     [][]string
	done    bool
}

func (w *walker) filterNode(i graph.NodeID) bool {
	return w.opts.IncludeExternal || !w.g.IsExternal(w.h, i)
}

func (w *walker) filterEdge(caller, callee graph.NodeID) bool {
	if w.g.HasCallEdge(w.h, caller, callee) {
		return true
	}
	return w.opts.IncludeRef && !w.g.IsExternal(w.h, callee)
}

// successors returns call targets plus, when references are enabled,
// reference targets. A node that is both called and referenced appears
// once.
func (w *walker) successors(i graph.NodeID) []graph.NodeID {
	out := w.g.Callees(w.h, i).Collect()
	if !w.opts.IncludeRef {
		return out
	}
	seen := make(map[graph.NodeID]bool, len(out))
	for _, n := range out {
		seen[n] = true
	}
	it := w.g.Refs(w.h, i)
	for {
		n, ok := it.Next()
		if !ok {
			return out
		}
		if !seen[n] {
			out = append(out, n)
		}
	}
}

func (w *walker) visit(caller graph.NodeID, targets []graph.NodeID, state int) {
	for _, node := range targets {
		if w.done {
			return
		}
		if w.visited[node] {
			continue
		}
		if caller != graph.None && !w.filterEdge(caller, node) {
			continue
		}

		w.visited[node] = true
		if !w.valid[node] {
			if !w.filterNode(node) {
				// Left in visited on purpose: prunes the node from every
				// later path without re-testing it.
				continue
			}
			w.valid[node] = true
		}

		name := w.g.DisplayName(w.h, node)
		next := w.dfa.Advance(state, name)
		if !w.dfa.IsFailure(next) {
			w.path = append(w.path, name)
			if w.dfa.IsFinal(next) {
				w.emit()
			}
			if !w.done {
				w.visit(node, w.successors(node), next)
			}
			w.path = w.path[:len(w.path)-1]
		}
		delete(w.visited, node)
	}
}

func (w *walker) emit() {
	p := make([]string, len(w.path))
	copy(p, w.path)
	w.out = append(w.out, p)
	if w.opts.Limit > 0 && len(w.out) >= w.opts.Limit {
		w.done = true
	}
}

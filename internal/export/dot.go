// Package export renders a call graph as a Graphviz DOT document.
// Filtering (keep/omit sets) is an exporter concern: the concurrent
// store stays append-only and the filter is applied while emitting.
package export

import (
	"fmt"
	"io"

	"github.com/standardbeagle/crag/internal/graph"
	"github.com/standardbeagle/crag/internal/rcu"
)

// Options controls the shape of the emitted graph.
type Options struct {
	// Files groups nodes into one subgraph cluster per source file.
	Files bool
	// IncludeExternal emits undefined nodes as well.
	IncludeExternal bool
	// IncludeRef treats references to defined nodes as edges.
	IncludeRef bool
}

// Filter selects the nodes and edges to emit. Sets are keyed by
// canonical node name. The zero value with Default true passes
// everything.
type Filter struct {
	// Keep overrides Omitted and Default for the named nodes.
	Keep map[string]bool
	// Omitted drops the named nodes.
	Omitted map[string]bool
	// OmitCallers drops edges directed to the named nodes.
	OmitCallers map[string]bool
	// OmitCallees drops edges starting from the named nodes.
	OmitCallees map[string]bool
	// Default is the fate of nodes not named in any set.
	Default bool
}

// NewFilter returns a filter that passes every node.
func NewFilter() *Filter {
	return &Filter{Default: true}
}

func (f *Filter) node(g *graph.Graph, h *rcu.Handle, i graph.NodeID, externalOK bool) bool {
	if !externalOK && g.IsExternal(h, i) {
		return false
	}
	name := g.NameOf(h, i)
	if f.Keep != nil && f.Keep[name] {
		return true
	}
	if f.Omitted[name] {
		return false
	}
	return f.Default
}

func (f *Filter) edge(g *graph.Graph, h *rcu.Handle, caller, callee graph.NodeID, refOK bool) bool {
	if f.OmitCallees[g.NameOf(h, caller)] {
		return false
	}
	if f.OmitCallers[g.NameOf(h, callee)] {
		return false
	}
	if g.HasCallEdge(h, caller, callee) {
		return true
	}
	return refOK && !g.IsExternal(h, callee)
}

// WriteDot emits the filtered graph as "digraph callgraph { ... }".
// Nodes with edges are introduced by their edges; isolated survivors are
// listed last.
func WriteDot(w io.Writer, g *graph.Graph, h *rcu.Handle, opts Options, f *Filter) error {
	if f == nil {
		f = NewFilter()
	}

	if _, err := fmt.Fprintln(w, "digraph callgraph {"); err != nil {
		return err
	}

	count := g.NodeCount()
	kept := make([]graph.NodeID, 0, count)
	for i := uint64(0); i < count; i++ {
		id := graph.NodeID(i)
		if f.node(g, h, id, opts.IncludeExternal) {
			kept = append(kept, id)
		}
	}

	if opts.Files {
		cluster := 0
		for _, file := range g.AllFiles(h) {
			var members []graph.NodeID
			it := g.NodesForFile(h, file)
			for {
				i, ok := it.Next()
				if !ok {
					break
				}
				if f.node(g, h, i, false) {
					members = append(members, i)
				}
			}
			if len(members) == 0 {
				continue
			}
			fmt.Fprintf(w, "subgraph cluster_%d {\n", cluster)
			fmt.Fprintf(w, "label = %q;\n", file)
			for _, i := range members {
				fmt.Fprintf(w, "%q;\n", g.DisplayName(h, i))
			}
			fmt.Fprintln(w, "}")
			cluster++
		}
	}

	connected := make(map[graph.NodeID]bool)
	for _, src := range kept {
		for _, dest := range successors(g, h, src) {
			if !f.node(g, h, dest, opts.IncludeExternal) {
				continue
			}
			if !f.edge(g, h, src, dest, opts.IncludeRef) {
				continue
			}
			if _, err := fmt.Fprintf(w, "%q -> %q;\n",
				g.DisplayName(h, src), g.DisplayName(h, dest)); err != nil {
				return err
			}
			connected[dest] = true
			connected[src] = true
		}
	}

	for _, i := range kept {
		if !connected[i] {
			fmt.Fprintf(w, "%q;\n", g.DisplayName(h, i))
		}
	}

	_, err := fmt.Fprintln(w, "}")
	return err
}

// successors returns call targets followed by reference targets, each
// once.
func successors(g *graph.Graph, h *rcu.Handle, i graph.NodeID) []graph.NodeID {
	out := g.Callees(h, i).Collect()
	seen := make(map[graph.NodeID]bool, len(out))
	for _, n := range out {
		seen[n] = true
	}
	it := g.Refs(h, i)
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

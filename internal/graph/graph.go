// Package graph implements the concurrent call-graph store. Many parser
// workers grow one Graph in parallel through the mutator methods; the
// query methods run unsynchronised under the same RCU discipline.
//
// Every method taking an *rcu.Handle enters a reader region on it for
// the duration of the call; the handle must not already be inside one.
// ResetLabels and NodeCount wait for a grace period and must likewise be
// called outside any region.
package graph

import (
	"github.com/standardbeagle/crag/internal/conc"
	"github.com/standardbeagle/crag/internal/rcu"
)

const defaultCapacity = 32

// Graph is a monotonically growing call graph: nodes are appended, edges
// and labels are inserted, nothing is deleted. Only the label index can
// be reset as a whole unit.
type Graph struct {
	nodes      *conc.List[Node]
	byName     *conc.StringMap[NodeID]
	byUsername *conc.StringMap[NodeID]
	byFile     *conc.StringMap[*conc.IndexList]
	labels     rcu.Pointer[conc.StringMap[*conc.HashSet]]
}

// New creates an empty graph.
func New() *Graph {
	g := &Graph{
		nodes:      conc.NewList[Node](defaultCapacity),
		byName:     conc.NewStringMap[NodeID](defaultCapacity),
		byUsername: conc.NewStringMap[NodeID](defaultCapacity),
		byFile:     conc.NewStringMap[*conc.IndexList](defaultCapacity),
	}
	g.labels.Store(conc.NewStringMap[*conc.HashSet](defaultCapacity))
	return g
}

func (g *Graph) node(i NodeID) *Node {
	n := g.nodes.At(uint64(i))
	if n == nil {
		panic("graph: unpublished node index")
	}
	return n
}

// AddExternal returns the index of the node called name, creating it as
// an external node if it does not exist. Lookup tries the username index
// first, then the canonical name. Idempotent across any number of
// concurrent callers.
func (g *Graph) AddExternal(h *rcu.Handle, name string) NodeID {
	h.ReadLock()
	defer h.ReadUnlock()

	if i := g.byUsername.GetDefault(h, name, None); i != None {
		return i
	}
	if i := g.byName.GetDefault(h, name, None); i != None {
		return i
	}

	// Racing adders may each append a Node record; the loser's record is
	// never indexed and dies with the graph.
	i := NodeID(g.nodes.Add(h, newNode(name)))
	return g.byName.Add(h, name, i)
}

// SetDefined clears the external flag. Idempotent; the flag never goes
// back.
func (g *Graph) SetDefined(h *rcu.Handle, i NodeID) {
	h.ReadLock()
	defer h.ReadUnlock()

	g.node(i).external.Store(false)
}

// SetUsername records a display alias for node i and indexes it. Once
// the node has a file, the username is frozen and the call is ignored.
func (g *Graph) SetUsername(h *rcu.Handle, i NodeID, username string) {
	h.ReadLock()
	defer h.ReadUnlock()

	n := g.node(i)
	if n.fileName() != "" {
		return
	}
	s := username
	n.username.Store(&s)
	g.byUsername.Add(h, username, i)
}

// SetLocation records the defining file and line of node i. Write-once:
// a node that already has a file keeps it.
func (g *Graph) SetLocation(h *rcu.Handle, i NodeID, file string, line int64) {
	h.ReadLock()
	defer h.ReadUnlock()

	n := g.node(i)
	if n.fileName() != "" {
		return
	}
	n.line.Store(line)
	s := file
	n.file.Store(&s)

	lst := g.byFile.GetOrAdd(h, file, func() *conc.IndexList {
		return conc.NewIndexList(defaultCapacity)
	})
	lst.Add(h, uint64(i))
}

// AddEdge records caller -> callee. Call edges land in calls, reference
// edges in refs; the reverse direction is maintained in the callee's
// callers set either way.
func (g *Graph) AddEdge(h *rcu.Handle, caller, callee NodeID, isCall bool) {
	h.ReadLock()
	defer h.ReadUnlock()

	g.node(callee).callers.Insert(h, uint64(caller))
	if isCall {
		g.node(caller).calls.Insert(h, uint64(callee))
	} else {
		g.node(caller).refs.Insert(h, uint64(callee))
	}
}

// HasEdge reports whether src has an edge to dest. A reference edge only
// counts when refOK is set and dest is a defined node: references to
// undefined symbols are not call edges.
func (g *Graph) HasEdge(h *rcu.Handle, src, dest NodeID, refOK bool) bool {
	h.ReadLock()
	defer h.ReadUnlock()

	if g.node(src).calls.Contains(h, uint64(dest)) {
		return true
	}
	if g.node(dest).external.Load() {
		return false
	}
	return refOK && g.node(src).refs.Contains(h, uint64(dest))
}

// HasCallEdge reports whether src directly calls dest.
func (g *Graph) HasCallEdge(h *rcu.Handle, src, dest NodeID) bool {
	h.ReadLock()
	defer h.ReadUnlock()

	return g.node(src).calls.Contains(h, uint64(dest))
}

// Callers returns an iterator over the nodes calling or referencing i.
func (g *Graph) Callers(h *rcu.Handle, i NodeID) *Iter {
	h.ReadLock()
	defer h.ReadUnlock()

	return newIter(g.node(i).callers.Iter(h))
}

// Callees returns an iterator over the nodes i calls.
func (g *Graph) Callees(h *rcu.Handle, i NodeID) *Iter {
	h.ReadLock()
	defer h.ReadUnlock()

	return newIter(g.node(i).calls.Iter(h))
}

// Refs returns an iterator over the nodes i references without calling.
func (g *Graph) Refs(h *rcu.Handle, i NodeID) *Iter {
	h.ReadLock()
	defer h.ReadUnlock()

	return newIter(g.node(i).refs.Iter(h))
}

// NodesForFile returns an iterator over the nodes defined in file, in
// insertion order; an empty iterator if the file is unknown.
func (g *Graph) NodesForFile(h *rcu.Handle, file string) *Iter {
	h.ReadLock()
	defer h.ReadUnlock()

	lst := g.byFile.GetDefault(h, file, nil)
	if lst == nil {
		return emptyIter()
	}
	return newIter(lst.Iter(h))
}

// NodesForLabel returns an iterator over the nodes carrying label; an
// empty iterator if the label is unknown.
func (g *Graph) NodesForLabel(h *rcu.Handle, label string) *Iter {
	h.ReadLock()
	defer h.ReadUnlock()

	set := g.labels.Load().GetDefault(h, label, nil)
	if set == nil {
		return emptyIter()
	}
	return newIter(set.Iter(h))
}

// AddLabel attaches label to node i.
func (g *Graph) AddLabel(h *rcu.Handle, i NodeID, label string) {
	h.ReadLock()
	defer h.ReadUnlock()

	set := g.labels.Load().GetOrAdd(h, label, func() *conc.HashSet {
		return conc.NewHashSet(nodeSetCapacity)
	})
	set.Insert(h, uint64(i))
}

// HasLabel reports whether node i carries label.
func (g *Graph) HasLabel(h *rcu.Handle, i NodeID, label string) bool {
	h.ReadLock()
	defer h.ReadUnlock()

	set := g.labels.Load().GetDefault(h, label, nil)
	return set != nil && set.Contains(h, uint64(i))
}

// ResetLabels atomically replaces the label index with an empty one. The
// pointer swap is the linearisation point; the old index is retired
// after a grace period, so in-flight readers finish against a coherent
// map. Must be called outside any reader region.
func (g *Graph) ResetLabels() {
	g.labels.Store(conc.NewStringMap[*conc.HashSet](defaultCapacity))
	rcu.Synchronize()
}

// AllFiles returns a snapshot of the file names known at the time of the
// call.
func (g *Graph) AllFiles(h *rcu.Handle) []string {
	h.ReadLock()
	defer h.ReadUnlock()

	return g.byFile.Keys(h)
}

// AllLabels returns a snapshot of the labels known at the time of the
// call.
func (g *Graph) AllLabels(h *rcu.Handle) []string {
	h.ReadLock()
	defer h.ReadUnlock()

	return g.labels.Load().Keys(h)
}

// AllNames returns a snapshot of the canonical node names known at the
// time of the call.
func (g *Graph) AllNames(h *rcu.Handle) []string {
	h.ReadLock()
	defer h.ReadUnlock()

	return g.byName.Keys(h)
}

// NodeCount returns the number of nodes. It waits out a grace period so
// that every node counted is also published. Must be called outside any
// reader region.
func (g *Graph) NodeCount() uint64 {
	n := g.nodes.Len()
	rcu.Synchronize()
	return n
}

// GetNode resolves name against the username index, then the canonical
// names. Returns None when absent.
func (g *Graph) GetNode(h *rcu.Handle, name string) NodeID {
	h.ReadLock()
	defer h.ReadUnlock()

	if i := g.byUsername.GetDefault(h, name, None); i != None {
		return i
	}
	return g.byName.GetDefault(h, name, None)
}

// NameOf returns the canonical name of node i.
func (g *Graph) NameOf(h *rcu.Handle, i NodeID) string {
	h.ReadLock()
	defer h.ReadUnlock()

	return g.node(i).name
}

// UsernameOf returns the display alias of node i, or "".
func (g *Graph) UsernameOf(h *rcu.Handle, i NodeID) string {
	h.ReadLock()
	defer h.ReadUnlock()

	return g.node(i).userName()
}

// DisplayName returns the username of node i when set, else its name.
func (g *Graph) DisplayName(h *rcu.Handle, i NodeID) string {
	h.ReadLock()
	defer h.ReadUnlock()

	n := g.node(i)
	if u := n.userName(); u != "" {
		return u
	}
	return n.name
}

// LocationOf returns the defining file and line of node i. The file is
// "" and the line NoLine when unknown.
func (g *Graph) LocationOf(h *rcu.Handle, i NodeID) (string, int64) {
	h.ReadLock()
	defer h.ReadUnlock()

	n := g.node(i)
	return n.fileName(), n.line.Load()
}

// IsExternal reports whether node i is still undefined.
func (g *Graph) IsExternal(h *rcu.Handle, i NodeID) bool {
	h.ReadLock()
	defer h.ReadUnlock()

	return g.node(i).external.Load()
}

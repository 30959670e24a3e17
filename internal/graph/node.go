package graph

import (
	"sync/atomic"

	"github.com/standardbeagle/crag/internal/conc"
)

// NodeID is a dense node index. Indices are assigned in insertion order
// and never change or point to a different node for the lifetime of the
// graph.
type NodeID uint64

// None is the reserved "no node" value; it is never a valid index.
const None NodeID = ^NodeID(0)

// NoLine marks a node whose source line is unknown.
const NoLine int64 = -1

const nodeSetCapacity = 8

// Node is a function or function-pointer slot. The name is fixed at
// creation; username, file and line are write-once and published
// atomically so unsynchronised readers see complete values. The edge
// sets hold indices, not pointers, which keeps cycles harmless and
// resize trivial.
type Node struct {
	name     string
	username atomic.Pointer[string]
	file     atomic.Pointer[string]
	line     atomic.Int64
	external atomic.Bool

	callers *conc.HashSet
	calls   *conc.HashSet
	refs    *conc.HashSet
}

func newNode(name string) *Node {
	n := &Node{
		name:    name,
		callers: conc.NewHashSet(nodeSetCapacity),
		calls:   conc.NewHashSet(nodeSetCapacity),
		refs:    conc.NewHashSet(nodeSetCapacity),
	}
	n.line.Store(NoLine)
	n.external.Store(true)
	return n
}

func (n *Node) fileName() string {
	if p := n.file.Load(); p != nil {
		return *p
	}
	return ""
}

func (n *Node) userName() string {
	if p := n.username.Load(); p != nil {
		return *p
	}
	return ""
}

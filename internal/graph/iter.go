package graph

import "github.com/standardbeagle/crag/internal/conc"

// Iter yields node indices from an edge set, a per-file list or a label
// set. It is a one-pass snapshot taken at construction time: entries
// published later may be missed, and iteration always terminates.
// Ordering is unspecified except for per-file lists, which iterate in
// insertion order.
type Iter struct {
	w *conc.WordIter
}

func newIter(w *conc.WordIter) *Iter {
	return &Iter{w: w}
}

func emptyIter() *Iter {
	return &Iter{}
}

// Next returns the next node index, or (None, false) when exhausted.
func (it *Iter) Next() (NodeID, bool) {
	if it.w == nil {
		return None, false
	}
	w, ok := it.w.Next()
	if !ok {
		return None, false
	}
	return NodeID(w), true
}

// Collect drains the iterator into a slice.
func (it *Iter) Collect() []NodeID {
	var out []NodeID
	for {
		i, ok := it.Next()
		if !ok {
			return out
		}
		out = append(out, i)
	}
}

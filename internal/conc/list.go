package conc

import (
	"sync/atomic"

	"github.com/standardbeagle/crag/internal/rcu"
)

// List is an append-only concurrent sequence of pointers to T. Indices
// are dense, stable for the lifetime of the list, and handed out in
// insertion order. A slot whose pointer is still nil was reserved but not
// yet published.
type List[T any] struct {
	contents *Array[atomic.Pointer[T]]
}

// NewList creates a list with the given initial capacity.
func NewList[T any](capacity int) *List[T] {
	return &List[T]{contents: NewArray(capacity, Backing[atomic.Pointer[T]]{
		Copy:      copyPointers[T],
		Reconcile: reconcilePointers[T],
	})}
}

// Add appends v and returns its index.
func (l *List[T]) Add(h *rcu.Handle, v *T) uint64 {
	i := l.contents.Reserve(h, 1.0)
	l.contents.Backing()[i].Store(v)
	return i
}

// At returns the element at index i. Indices obtained from Add or from a
// published index map are always filled; iteration over [0, Len) may
// observe a nil for a slot whose writer has not published yet.
func (l *List[T]) At(i uint64) *T {
	return l.contents.Backing()[i].Load()
}

// Len returns the number of reserved slots.
func (l *List[T]) Len() uint64 { return l.contents.Len() }

func copyPointers[T any](dst, src []atomic.Pointer[T]) {
	for i := range src {
		dst[i].Store(src[i].Load())
	}
}

func reconcilePointers[T any](dst, src []atomic.Pointer[T]) {
	for i := range src {
		if dst[i].Load() == nil {
			if p := src[i].Load(); p != nil {
				dst[i].Store(p)
			}
		}
	}
}

// IndexList is an append-only concurrent sequence of word values, used
// for per-file node lists where insertion order is informative. Slots
// hold the Empty sentinel until their writer publishes.
type IndexList struct {
	contents *Array[atomic.Uint64]
}

// NewIndexList creates an index list with the given initial capacity.
func NewIndexList(capacity int) *IndexList {
	return &IndexList{contents: NewArray(capacity, Backing[atomic.Uint64]{
		Alloc:     allocWords,
		Copy:      copyWords,
		Reconcile: reconcileSlots,
	})}
}

// Add appends w.
func (l *IndexList) Add(h *rcu.Handle, w uint64) {
	i := l.contents.Reserve(h, 1.0)
	l.contents.Backing()[i].Store(w)
}

// Len returns the number of reserved slots.
func (l *IndexList) Len() uint64 { return l.contents.Len() }

// Iter returns an iterator over the values present at the time of the
// call, in insertion order, skipping slots not yet published.
func (l *IndexList) Iter(h *rcu.Handle) *WordIter {
	b := l.contents.Backing()
	n := l.contents.Len()
	if n > uint64(len(b)) {
		n = uint64(len(b))
	}
	return newWordIter(b[:n])
}

// copyWords copies slot-by-slot: unlike a hash table, positions are
// stable across growth.
func copyWords(dst, src []atomic.Uint64) {
	for i := range src {
		dst[i].Store(src[i].Load())
	}
}

func reconcileSlots(dst, src []atomic.Uint64) {
	for i := range src {
		if dst[i].Load() == Empty {
			if w := src[i].Load(); w != Empty {
				dst[i].Store(w)
			}
		}
	}
}

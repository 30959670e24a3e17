package conc

import (
	"sync/atomic"

	"github.com/standardbeagle/crag/internal/rcu"
)

// Empty is the word reserved to mark an unoccupied hash-set slot. It is
// never a valid key.
const Empty = ^uint64(0)

const setLoadFactor = 0.75

// HashSet is an open-addressed concurrent set of word keys with linear
// probing. Growth at 75% occupancy keeps probe sequences bounded.
type HashSet struct {
	contents *Array[atomic.Uint64]
}

// NewHashSet creates a set with the given initial capacity.
func NewHashSet(capacity int) *HashSet {
	s := &HashSet{}
	s.contents = NewArray(capacity, Backing[atomic.Uint64]{
		Alloc:     allocWords,
		Copy:      rehashWords,
		Reconcile: reconcileWords,
	})
	return s
}

// Insert adds w to the set. It returns false if w was already present.
func (s *HashSet) Insert(h *rcu.Handle, w uint64) bool {
	if w == Empty {
		panic("conc: inserting the empty sentinel into a hash set")
	}
	s.contents.Reserve(h, setLoadFactor)

	b := s.contents.Backing()
	mask := uint64(len(b) - 1)
	i := hashWord(w) & mask
	for {
		cur := b[i].Load()
		switch {
		case cur == w:
			s.contents.DropReservation()
			return false
		case cur == Empty:
			if b[i].CompareAndSwap(Empty, w) {
				return true
			}
			// Another inserter won this slot; re-examine it.
		default:
			i = (i + 1) & mask
		}
	}
}

// Contains reports whether w is in the set.
func (s *HashSet) Contains(h *rcu.Handle, w uint64) bool {
	b := s.contents.Backing()
	mask := uint64(len(b) - 1)
	i := hashWord(w) & mask
	for {
		cur := b[i].Load()
		if cur == w {
			return true
		}
		if cur == Empty {
			return false
		}
		i = (i + 1) & mask
	}
}

// Len returns the number of keys in the set.
func (s *HashSet) Len() uint64 { return s.contents.Len() }

// Iter returns an iterator over the keys present at the time of the
// call. The snapshot stays valid after the reader region ends; keys
// inserted concurrently may or may not be observed.
func (s *HashSet) Iter(h *rcu.Handle) *WordIter {
	b := s.contents.Backing()
	return newWordIter(b)
}

func allocWords(n int) []atomic.Uint64 {
	b := make([]atomic.Uint64, n)
	for i := range b {
		b[i].Store(Empty)
	}
	return b
}

// rehashWords moves the live keys into the fresh table. Single writer;
// publication order is supplied by the array.
func rehashWords(dst, src []atomic.Uint64) {
	mask := uint64(len(dst) - 1)
	for i := range src {
		w := src[i].Load()
		if w == Empty {
			continue
		}
		j := hashWord(w) & mask
		for dst[j].Load() != Empty {
			j = (j + 1) & mask
		}
		dst[j].Store(w)
	}
}

// reconcileWords runs after the grace period that retired src: writers
// that raced with the copy have finished, so any key still missing from
// dst is carried over. Inserters may be active on dst, hence the CAS.
func reconcileWords(dst, src []atomic.Uint64) {
	mask := uint64(len(dst) - 1)
	for i := range src {
		w := src[i].Load()
		if w == Empty {
			continue
		}
		j := hashWord(w) & mask
		for {
			cur := dst[j].Load()
			if cur == w {
				break
			}
			if cur == Empty && dst[j].CompareAndSwap(Empty, w) {
				break
			}
			if cur != Empty {
				j = (j + 1) & mask
			}
		}
	}
}

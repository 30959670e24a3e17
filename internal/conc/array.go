// Package conc provides the lock-free containers the call-graph store is
// built on: an append-only growable array, a list layered on it, an
// open-addressed hash set of word keys and an open-addressed string map.
//
// Every operation that touches a container must run inside an rcu reader
// region on the calling goroutine's handle. Readers never block; the only
// blocking operation is the grace-period wait inside a resize.
package conc

import (
	"sync"
	"sync/atomic"

	"github.com/standardbeagle/crag/internal/debug"
	"github.com/standardbeagle/crag/internal/rcu"
)

// DefaultCapacity is the initial backing size used when a container is
// created with capacity <= 0.
const DefaultCapacity = 32

// Backing is the storage policy a container supplies to its Array. Alloc
// creates a backing slice with every slot in its empty state. Copy moves
// the live contents into a fresh, larger backing while writers may still
// be publishing into the source; it runs under the grow lock, before the
// new backing is published. Reconcile runs after the grace period that
// retires the source backing: at that point no writer can touch the
// source anymore, so it carries over any entry the copy raced past.
type Backing[E any] struct {
	Alloc     func(n int) []E
	Copy      func(dst, src []E)
	Reconcile func(dst, src []E)
}

// Array is an append-only concurrent vector of E with amortised-doubling
// growth. Slots are handed out by Reserve; element readiness is encoded
// by the element type itself (a sentinel word, a nil pointer, a pending
// key), never by the count.
type Array[E any] struct {
	growMu   sync.Mutex
	capacity atomic.Uint64
	count    atomic.Uint64
	backing  rcu.Pointer[[]E]
	policy   Backing[E]
}

// NewArray creates an array with the given initial capacity, rounded up
// to a power of two.
func NewArray[E any](capacity int, policy Backing[E]) *Array[E] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	n := ceilPow2(capacity)
	if policy.Alloc == nil {
		policy.Alloc = func(n int) []E { return make([]E, n) }
	}
	if policy.Copy == nil {
		policy.Copy = func(dst, src []E) { copy(dst, src) }
	}
	a := &Array[E]{policy: policy}
	s := policy.Alloc(n)
	a.backing.Store(&s)
	a.capacity.Store(uint64(n))
	return a
}

// Reserve claims one slot, growing the array first if the occupancy has
// already reached loadFactor of the capacity. It briefly drops the caller's reader
// region around the grow, so the caller must re-load the backing after
// Reserve returns and must not hold pointers into it across the call.
func (a *Array[E]) Reserve(h *rcu.Handle, loadFactor float64) uint64 {
	current := a.count.Load()
	for {
		for {
			// Capacity is read before the backing: a reader that
			// observes the new capacity also observes the new backing.
			capSnap := a.capacity.Load()
			if float64(current) < loadFactor*float64(capSnap) {
				break
			}
			h.ReadUnlock()
			a.Grow(capSnap, capSnap*2)
			h.ReadLock()
			current = a.count.Load()
		}
		if a.count.CompareAndSwap(current, current+1) {
			return current
		}
		current = a.count.Load()
	}
}

// DropReservation returns a slot obtained from Reserve that the caller
// decided not to use (a duplicate key, a lost probe race).
func (a *Array[E]) DropReservation() {
	a.count.Add(^uint64(0))
}

// Grow replaces the backing with one of newCap slots if the capacity still equals
// expected. It returns false when another writer grew the array first.
// Must be called outside any reader region.
func (a *Array[E]) Grow(expected, newCap uint64) bool {
	a.growMu.Lock()
	defer a.growMu.Unlock()

	if a.capacity.Load() != expected {
		return false
	}

	old := *a.backing.LoadOwner()
	fresh := a.policy.Alloc(int(newCap))
	a.policy.Copy(fresh, old)

	// Publish the backing before the capacity, mirroring the read order
	// in Reserve.
	s := fresh
	a.backing.Store(&s)
	a.capacity.Store(newCap)

	debug.Log("conc", "grow %d -> %d\n", expected, newCap)
	rcu.Synchronize()

	// No reader holds the old backing past this point and no writer can
	// publish into it; pick up anything the copy raced past. The old
	// slice itself is left to the garbage collector.
	if a.policy.Reconcile != nil {
		a.policy.Reconcile(fresh, old)
	}
	return true
}

// Backing returns the current backing slice. The slice length is the
// capacity at the time of the call and is internally consistent; probing
// code must mask indices against it, not against a later Cap call.
func (a *Array[E]) Backing() []E {
	return *a.backing.Load()
}

// Slot returns a pointer to slot i of the current backing.
func (a *Array[E]) Slot(i uint64) *E {
	return &(*a.backing.Load())[i]
}

// Len returns the number of reserved slots.
func (a *Array[E]) Len() uint64 { return a.count.Load() }

// Cap returns the current capacity.
func (a *Array[E]) Cap() uint64 { return a.capacity.Load() }

func ceilPow2(n int) int {
	p := 1
	for p < n {
		p *= 2
	}
	return p
}

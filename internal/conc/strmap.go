package conc

import (
	"runtime"
	"sync/atomic"

	"github.com/standardbeagle/crag/internal/rcu"
)

const mapLoadFactor = 0.75

// pendingKey marks a slot that has been claimed but whose value is not
// published yet. It is compared by pointer identity and never escapes
// the package.
var pendingKey = new(string)

// mapEntry is one slot of a StringMap. The key cell moves nil -> pending
// -> owned string and is never cleared. The value is written exactly
// once, by the claimant, before the key is published: observing a real
// key through an atomic load therefore implies observing the value.
type mapEntry[V any] struct {
	key   atomic.Pointer[string]
	value V
}

// StringMap is an open-addressed concurrent map from string to V with
// single-insertion-wins semantics: concurrent adds of the same key agree
// on one stored value.
type StringMap[V any] struct {
	contents *Array[mapEntry[V]]
}

// NewStringMap creates a map with the given initial capacity.
func NewStringMap[V any](capacity int) *StringMap[V] {
	m := &StringMap[V]{}
	m.contents = NewArray(capacity, Backing[mapEntry[V]]{
		Copy:      rehashEntries[V],
		Reconcile: reconcileEntries[V],
	})
	return m
}

// claimIn probes the given backing for key and either returns its slot
// or claims an empty one with the pending sentinel. The second result
// reports a claim; a claimed slot belongs exclusively to the caller,
// which must publish a value via the key cell.
func (m *StringMap[V]) claimIn(b []mapEntry[V], key string) (*mapEntry[V], bool) {
	mask := uint64(len(b) - 1)
	i := hashString(key) & mask
	for {
		e := &b[i]
		k := e.key.Load()
		for k == pendingKey {
			runtime.Gosched()
			k = e.key.Load()
		}
		if k != nil {
			if *k == key {
				return e, false
			}
			i = (i + 1) & mask
			continue
		}
		if e.key.CompareAndSwap(nil, pendingKey) {
			return e, true
		}
		// Lost the claim; re-examine the same slot.
	}
}

// add inserts key with the value built by create, or returns the value
// already stored. All concurrent callers for one key return the same
// value.
func (m *StringMap[V]) add(h *rcu.Handle, key string, create func() V) V {
	m.contents.Reserve(h, mapLoadFactor)

	cur := m.contents.Backing()
	e, claimed := m.claimIn(cur, key)
	if !claimed {
		m.contents.DropReservation()
		return e.value
	}

	v := create()
	e.value = v
	k := key
	kp := &k
	e.key.Store(kp)

	// The backing may have been swapped while the claim was in flight.
	// Chase the current table so that every adder agrees on one winner:
	// the key pointer identifies our own entry when the rehash carried
	// it over.
	for {
		b := m.contents.Backing()
		if &b[0] == &cur[0] {
			return v
		}
		e2, claimed2 := m.claimIn(b, key)
		if claimed2 {
			e2.value = v
			e2.key.Store(kp)
			cur = b
			continue
		}
		if e2.key.Load() == kp {
			return v
		}
		// A racer owns the key in the current table; adopt its value.
		m.contents.DropReservation()
		return e2.value
	}
}

// Add inserts key with value v, or returns the value already stored for
// key.
func (m *StringMap[V]) Add(h *rcu.Handle, key string, v V) V {
	return m.add(h, key, func() V { return v })
}

// GetOrAdd returns the value for key, calling create to build one only
// when this caller wins the insertion.
func (m *StringMap[V]) GetOrAdd(h *rcu.Handle, key string, create func() V) V {
	return m.add(h, key, create)
}

// Get returns the value for key and whether it is present.
func (m *StringMap[V]) Get(h *rcu.Handle, key string) (V, bool) {
	b := m.contents.Backing()
	mask := uint64(len(b) - 1)
	i := hashString(key) & mask
	for {
		e := &b[i]
		k := e.key.Load()
		for k == pendingKey {
			runtime.Gosched()
			k = e.key.Load()
		}
		if k == nil {
			var zero V
			return zero, false
		}
		if *k == key {
			return e.value, true
		}
		i = (i + 1) & mask
	}
}

// GetDefault returns the value for key, or absent when not present.
func (m *StringMap[V]) GetDefault(h *rcu.Handle, key string, absent V) V {
	if v, ok := m.Get(h, key); ok {
		return v
	}
	return absent
}

// MustGet returns the value for key; the caller asserts presence.
func (m *StringMap[V]) MustGet(h *rcu.Handle, key string) V {
	v, ok := m.Get(h, key)
	if !ok {
		panic("conc: MustGet on absent key " + key)
	}
	return v
}

// Len returns the number of distinct keys.
func (m *StringMap[V]) Len() uint64 { return m.contents.Len() }

// Keys returns a snapshot of the keys present at the time of the call,
// in backing order.
func (m *StringMap[V]) Keys(h *rcu.Handle) []string {
	b := m.contents.Backing()
	out := make([]string, 0, m.contents.Len())
	for i := range b {
		k := b[i].key.Load()
		if k != nil && k != pendingKey {
			out = append(out, *k)
		}
	}
	return out
}

// rehashEntries moves resolved entries into the fresh table. Claimed but
// unpublished slots are skipped here; the post-grace-period reconcile
// pass picks them up once their writers have finished. Key pointers move
// as-is, preserving the identity adders use to recognise their own
// entries.
func rehashEntries[V any](dst, src []mapEntry[V]) {
	mask := uint64(len(dst) - 1)
	for i := range src {
		k := src[i].key.Load()
		if k == nil || k == pendingKey {
			continue
		}
		j := hashString(*k) & mask
		for dst[j].key.Load() != nil {
			j = (j + 1) & mask
		}
		dst[j].value = src[i].value
		dst[j].key.Store(k)
	}
}

// reconcileEntries carries over entries the copy raced past. It runs
// after the grace period retiring src, so every claim in src has been
// published; inserters may be active on dst, so claims there use the
// full pending protocol.
func reconcileEntries[V any](dst, src []mapEntry[V]) {
	mask := uint64(len(dst) - 1)
	for i := range src {
		k := src[i].key.Load()
		if k == nil || k == pendingKey {
			continue
		}
		j := hashString(*k) & mask
		for {
			e := &dst[j]
			cur := e.key.Load()
			for cur == pendingKey {
				runtime.Gosched()
				cur = e.key.Load()
			}
			if cur != nil {
				if *cur == *k {
					break
				}
				j = (j + 1) & mask
				continue
			}
			if e.key.CompareAndSwap(nil, pendingKey) {
				e.value = src[i].value
				e.key.Store(k)
				break
			}
		}
	}
}

package conc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/crag/internal/rcu"
)

func TestListAddAt(t *testing.T) {
	h := rcu.Register()
	defer h.Unregister()

	l := NewList[string](4)
	h.ReadLock()
	a := "a"
	b := "b"
	i := l.Add(h, &a)
	j := l.Add(h, &b)
	h.ReadUnlock()

	assert.Equal(t, uint64(0), i)
	assert.Equal(t, uint64(1), j)
	assert.Equal(t, "a", *l.At(i))
	assert.Equal(t, "b", *l.At(j))
	assert.Equal(t, uint64(2), l.Len())
}

func TestListGrowKeepsElements(t *testing.T) {
	h := rcu.Register()
	defer h.Unregister()

	l := NewList[int](4)
	vals := make([]int, 50)
	h.ReadLock()
	for i := range vals {
		vals[i] = i * 3
		require.Equal(t, uint64(i), l.Add(h, &vals[i]))
	}
	h.ReadUnlock()

	for i := range vals {
		assert.Equal(t, i*3, *l.At(uint64(i)))
	}
}

func TestIndexListOrder(t *testing.T) {
	h := rcu.Register()
	defer h.Unregister()

	l := NewIndexList(4)
	h.ReadLock()
	for w := uint64(0); w < 20; w++ {
		l.Add(h, w*w)
	}
	it := l.Iter(h)
	h.ReadUnlock()

	for w := uint64(0); w < 20; w++ {
		v, ok := it.Next()
		require.True(t, ok)
		assert.Equal(t, w*w, v)
	}
	_, ok := it.Next()
	assert.False(t, ok)
}

func TestListConcurrentAdds(t *testing.T) {
	const workers = 4
	const perWorker = 250

	l := NewList[uint64](4)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			h := rcu.Register()
			defer h.Unregister()
			for i := 0; i < perWorker; i++ {
				v := uint64(w*perWorker + i)
				p := new(uint64)
				*p = v
				h.ReadLock()
				l.Add(h, p)
				h.ReadUnlock()
			}
		}(w)
	}
	wg.Wait()

	require.Equal(t, uint64(workers*perWorker), l.Len())
	seen := make(map[uint64]bool)
	for i := uint64(0); i < l.Len(); i++ {
		p := l.At(i)
		require.NotNil(t, p, "slot %d left unpublished", i)
		require.False(t, seen[*p])
		seen[*p] = true
	}
}

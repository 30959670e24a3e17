package conc

import "sync/atomic"

// WordIter walks a snapshot of word slots, skipping the Empty sentinel.
// The snapshot is taken when the iterator is created; it never
// invalidates, but words published after creation may be missed.
type WordIter struct {
	words []atomic.Uint64
	pos   int
}

func newWordIter(words []atomic.Uint64) *WordIter {
	return &WordIter{words: words}
}

// Next returns the next word, or false when the iteration is done.
func (it *WordIter) Next() (uint64, bool) {
	for it.pos < len(it.words) {
		w := it.words[it.pos].Load()
		it.pos++
		if w != Empty {
			return w, true
		}
	}
	return 0, false
}

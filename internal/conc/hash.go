package conc

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

func hashString(s string) uint64 {
	return xxhash.Sum64String(s)
}

func hashWord(w uint64) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], w)
	return xxhash.Sum64(b[:])
}

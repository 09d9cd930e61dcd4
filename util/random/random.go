package random

import (
	crypto_rand "crypto/rand"
	"encoding/binary"
	"math/rand"
)

// NewSeed draws a non-negative seed for math/rand from the OS entropy
// source. Shuffles must not repeat across server restarts.
func NewSeed() int64 {
	var b [8]byte
	if _, err := crypto_rand.Read(b[:]); err != nil {
		panic("cannot seed math/rand package with cryptographically secure random number generator")
	}
	return int64(binary.LittleEndian.Uint64(b[:]) >> 1)
}

// NewSource wraps NewSeed for callers that keep their own generator.
func NewSource() rand.Source {
	return rand.NewSource(NewSeed())
}

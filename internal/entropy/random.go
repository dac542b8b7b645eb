// Package entropy provides seeded random generators for the stochastic stages.
// Every run owns its generator: a fixed seed reproduces a run exactly, seed 0
// draws a fresh seed from crypto/rand mixed with the wall clock.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand/v2"
	"time"
)

// Stream offsets keep the stages of one run on independent sequences.
const (
	StreamBalance  uint64 = 100
	StreamDivide   uint64 = 200
	StreamForecast uint64 = 300
	StreamSynth    uint64 = 400
)

// New returns a PCG generator for the given seed. Seed 0 means "not
// reproducible": a seed is derived from crypto/rand and the current time.
func New(seed uint64) *mrand.Rand {
	if seed == 0 {
		seed = NewSeed()
	}
	return mrand.New(mrand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Stream returns a generator for one pipeline stage derived from a run seed.
func Stream(seed, stream uint64) *mrand.Rand {
	if seed == 0 {
		return New(0)
	}
	return New(seed + stream)
}

// NewSeed returns a non-zero seed from crypto/rand, falling back to the clock.
func NewSeed() uint64 {
	seed := uint64(time.Now().UnixNano())
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err == nil {
		seed ^= binary.LittleEndian.Uint64(buf[:])
	}
	if seed == 0 {
		seed = 1
	}
	return seed
}

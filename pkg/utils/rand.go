package utils

import (
	"math/rand"
	"time"
)

// RandSource is a seeded random number generator. It is not safe for
// concurrent use; each trial invocation owns its own source.
type RandSource struct {
	rng *rand.Rand
}

// NewRandSource creates a new random source with the given seed
func NewRandSource(seed int64) *RandSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandSource{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Category returns a uniformly chosen category in [1, k]
func (r *RandSource) Category(k int) int {
	return r.rng.Intn(k) + 1
}

// SeedSequence derives independent per-trial seeds from one base seed, so
// concurrent trials never share generator state and a run can be replayed
// from its base seed.
type SeedSequence struct {
	base uint64
}

// NewSeedSequence creates a sequence rooted at seed. A zero seed is replaced
// with one taken from the clock.
func NewSeedSequence(seed int64) SeedSequence {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return SeedSequence{base: uint64(seed)}
}

// Base returns the root seed
func (s SeedSequence) Base() int64 {
	return int64(s.base)
}

// At returns the seed for trial index i. The result is never zero.
func (s SeedSequence) At(i int) int64 {
	seed := int64(splitmix64(s.base + uint64(i)*0x9e3779b97f4a7c15))
	if seed == 0 {
		return 1
	}
	return seed
}

// splitmix64 finalizer (Steele, Lea, Flood 2014)
func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

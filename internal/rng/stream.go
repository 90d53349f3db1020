// Package rng provides the per-worker linear-congruential streams used by the
// simulation kernel. A Stream is not safe for concurrent use; every worker owns
// exactly one.
package rng

import (
	"math/rand"
	"time"
)

const (
	// Modulus is RAND_MAX+1 of the platform the generator constants were tuned on.
	Modulus = 1 << 31
	// MaxValue is the largest value Next can return.
	MaxValue = Modulus - 1

	multiplier uint32 = 11035
	increment  uint32 = 10086
)

// Stream is a single LCG state. The padding keeps neighbouring workers' states
// on separate cache lines when streams are stored contiguously.
type Stream struct {
	state uint32
	_     [60]byte
}

func NewStream(state uint32) Stream {
	return Stream{state: state % Modulus}
}

// Next advances the stream and returns a value in [0, MaxValue].
func (s *Stream) Next() uint32 {
	// uint32 wraparound is harmless: 2^31 divides 2^32.
	s.state = (s.state*multiplier + increment) % Modulus
	return s.state % Modulus
}

// Float64 returns Next()/MaxValue, a value in the closed interval [0, 1].
func (s *Stream) Float64() float64 {
	return float64(s.Next()) / MaxValue
}

// Uniform returns a value in [lo, hi].
func (s *Stream) Uniform(lo, hi float64) float64 {
	return lo + s.Float64()*(hi-lo)
}

func (s *Stream) State() uint32 {
	return s.state
}

// NewSeeder returns the run-level generator that seeds worker streams.
// A zero seed selects a time-based seed.
func NewSeeder(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Seed draws one initial state per stream from seeder, in slice order.
func Seed(streams []Stream, seeder *rand.Rand) {
	for i := range streams {
		streams[i] = NewStream(uint32(seeder.Int31()))
	}
}

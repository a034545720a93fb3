// Package entropy provides the deterministic decision stream that drives
// every randomized choice in an obfuscation session. One Source is created
// per session; for a fixed seed and an identical ordered sequence of calls,
// the results are identical across runs.
package entropy

import (
	crand "crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	mathrand "math/rand"
	"os"
	"time"
)

// Source is a seeded pseudo-random decision stream. It is not safe for
// concurrent use and must not be shared between sessions.
type Source struct {
	seed int64
	rng  *mathrand.Rand
}

// NewSource creates a Source from an explicit seed.
func NewSource(seed int64) *Source {
	return &Source{
		seed: seed,
		rng:  mathrand.New(mathrand.NewSource(seed)),
	}
}

// NewSystemSource creates a Source seeded from system entropy (crypto/rand,
// timestamp and pid, hashed together). The effective seed is retrievable via
// Seed() so a build can be reproduced later.
func NewSystemSource() *Source {
	return NewSource(systemSeed())
}

func systemSeed() int64 {
	var buf [32]byte
	binary.BigEndian.PutUint64(buf[0:8], uint64(time.Now().UnixNano()))
	binary.BigEndian.PutUint32(buf[8:12], uint32(os.Getpid()))
	if _, err := crand.Read(buf[12:]); err != nil {
		// Timestamp and pid alone still give a usable non-repeating seed.
		binary.BigEndian.PutUint64(buf[12:20], uint64(time.Now().UnixNano()))
	}
	sum := sha256.Sum256(buf[:])
	seed := int64(binary.BigEndian.Uint64(sum[:8]))
	if seed < 0 {
		seed = -seed
	}
	return seed
}

// Seed returns the seed this Source was constructed with.
func (s *Source) Seed() int64 {
	return s.seed
}

// IntRange returns a random integer in [lo, hi], both inclusive.
// Panics if lo > hi: that is a programming error, not a runtime condition.
func (s *Source) IntRange(lo, hi int) int {
	if lo > hi {
		panic(fmt.Sprintf("entropy: invalid range [%d, %d]", lo, hi))
	}
	return lo + s.rng.Intn(hi-lo+1)
}

// Float returns a random float64 in [lo, hi).
func (s *Source) Float(lo, hi float64) float64 {
	if lo > hi {
		panic(fmt.Sprintf("entropy: invalid range [%g, %g]", lo, hi))
	}
	return lo + s.rng.Float64()*(hi-lo)
}

// Choice returns one element of options, chosen uniformly.
// Panics on an empty slice.
func (s *Source) Choice(options []string) string {
	if len(options) == 0 {
		panic("entropy: Choice on empty options")
	}
	return options[s.rng.Intn(len(options))]
}

// ChoiceInt is Choice for integer option sets.
func (s *Source) ChoiceInt(options []int) int {
	if len(options) == 0 {
		panic("entropy: ChoiceInt on empty options")
	}
	return options[s.rng.Intn(len(options))]
}

// WeightedChoice returns one element of options with probability
// proportional to its weight. Panics on mismatched lengths or a
// non-positive weight total.
func (s *Source) WeightedChoice(options []string, weights []int) string {
	if len(options) == 0 || len(options) != len(weights) {
		panic(fmt.Sprintf("entropy: WeightedChoice with %d options, %d weights", len(options), len(weights)))
	}
	total := 0
	for _, w := range weights {
		if w < 0 {
			panic("entropy: negative weight")
		}
		total += w
	}
	if total <= 0 {
		panic("entropy: weight total must be positive")
	}
	pick := s.rng.Intn(total)
	for i, w := range weights {
		if pick < w {
			return options[i]
		}
		pick -= w
	}
	return options[len(options)-1]
}

// Sample returns k distinct elements of population in draw order
// (sampling without replacement). Panics when k exceeds the population
// size: asking for more than exists is a configuration error.
func (s *Source) Sample(population []string, k int) []string {
	if k > len(population) {
		panic(fmt.Sprintf("entropy: Sample of %d from population of %d", k, len(population)))
	}
	if k < 0 {
		panic("entropy: negative sample size")
	}
	pool := make([]string, len(population))
	copy(pool, population)
	out := make([]string, 0, k)
	for i := 0; i < k; i++ {
		j := s.rng.Intn(len(pool))
		out = append(out, pool[j])
		pool[j] = pool[len(pool)-1]
		pool = pool[:len(pool)-1]
	}
	return out
}

// Shuffle returns a new permutation of seq. The input is not mutated;
// shuffled order is part of the determinism contract, never an artifact
// of map iteration.
func (s *Source) Shuffle(seq []string) []string {
	out := make([]string, len(seq))
	copy(out, seq)
	for i := len(out) - 1; i > 0; i-- {
		j := s.rng.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// ShuffleInts is Shuffle for integer slices.
func (s *Source) ShuffleInts(seq []int) []int {
	out := make([]int, len(seq))
	copy(out, seq)
	for i := len(out) - 1; i > 0; i-- {
		j := s.rng.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Bool returns true with the given probability.
func (s *Source) Bool(probability float64) bool {
	return s.rng.Float64() < probability
}

// Package rng provides the random source consumed by the simulation engines.
// It wraps a seeded PCG generator with the draw kinds the jump process needs:
// uniform variates, exponential waiting times, Poisson mutation counts,
// rate-proportional categorical selection, and index sampling without
// replacement. A Source is owned exclusively by one simulation run and is
// not safe for concurrent use.
package rng

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Source is a seeded stream of pseudo-random draws.
type Source struct {
	seed uint64
	src  *rand.PCG
	rand *rand.Rand
}

// New creates a Source seeded from the given value. Two Sources created
// with the same seed produce identical streams.
func New(seed uint64) *Source {
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	return &Source{
		seed: seed,
		src:  src,
		rand: rand.New(src),
	}
}

// Seed returns the value the Source was created with.
func (s *Source) Seed() uint64 { return s.seed }

// distuvSource adapts the PCG stream to the source interface gonum's
// distributions draw from. The stream is seeded once at construction;
// Seed is a required no-op.
type distuvSource struct{ r *rand.Rand }

func (d distuvSource) Uint64() uint64 { return d.r.Uint64() }
func (d distuvSource) Seed(uint64)    {}

// Float64 returns a uniform variate in [0, 1).
func (s *Source) Float64() float64 { return s.rand.Float64() }

// IntN returns a uniform integer in [0, n). Panics if n <= 0.
func (s *Source) IntN(n int) int { return s.rand.IntN(n) }

// Exp returns an exponential waiting time with the given rate,
// i.e. mean 1/rate. Panics if rate <= 0.
func (s *Source) Exp(rate float64) float64 {
	if rate <= 0 {
		panic("rng: exponential draw with non-positive rate")
	}
	return s.rand.ExpFloat64() / rate
}

// Poisson returns a Poisson variate with the given mean. A non-positive
// mean yields 0.
func (s *Source) Poisson(mean float64) int {
	if mean <= 0 {
		return 0
	}
	p := distuv.Poisson{Lambda: mean, Src: distuvSource{s.rand}}
	return int(p.Rand())
}

// Categorical selects index k with probability weights[k]/sum(weights).
// Zero-weight entries are never selected. Panics if the total weight is
// not positive.
func (s *Source) Categorical(weights []float64) int {
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		panic("rng: categorical draw with non-positive total weight")
	}
	u := s.rand.Float64() * total
	acc := 0.0
	for k, w := range weights {
		acc += w
		if u < acc {
			return k
		}
	}
	// Floating-point slack: fall back to the last positive weight.
	for k := len(weights) - 1; k >= 0; k-- {
		if weights[k] > 0 {
			return k
		}
	}
	return len(weights) - 1
}

// SampleWithoutReplacement returns k distinct indices drawn uniformly from
// [0, n), in draw order. Panics if k > n or k < 0.
func (s *Source) SampleWithoutReplacement(n, k int) []int {
	if k < 0 || k > n {
		panic("rng: sample size out of range")
	}
	// Partial Fisher-Yates over an index table.
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	out := make([]int, k)
	for i := 0; i < k; i++ {
		j := i + s.rand.IntN(n-i)
		idx[i], idx[j] = idx[j], idx[i]
		out[i] = idx[i]
	}
	return out
}

// SampleWithReplacement returns k indices drawn uniformly from [0, n),
// duplicates allowed.
func (s *Source) SampleWithReplacement(n, k int) []int {
	out := make([]int, k)
	for i := range out {
		out[i] = s.rand.IntN(n)
	}
	return out
}

// Package mutation implements the mutation-assignment model: a pure mapping
// from a configured distribution kind, a rate, and (for time-dependent kinds)
// an elapsed cell lifetime to a non-negative mutation count for one
// cell-event. The only side effect is consuming draws from the run's random
// source.
package mutation

import (
	"fmt"
	"math"

	"github.com/alexsteininfo/clonesim/internal/rng"
)

// Kind selects the mutation-count distribution.
type Kind string

const (
	// Fixed assigns a constant round(μ) mutations per division event.
	Fixed Kind = "fixed"

	// Poisson draws the per-division count from Poisson(μ).
	Poisson Kind = "poisson"

	// FixedTimeDependent assigns round(μ·Δt) mutations at a cell's
	// death, division or finalization, where Δt is its elapsed lifetime.
	FixedTimeDependent Kind = "fixedtimedep"

	// PoissonTimeDependent draws from Poisson(μ·Δt) at a cell's death,
	// division or finalization.
	PoissonTimeDependent Kind = "poissontimedep"
)

// Kinds lists every recognized mutation kind.
func Kinds() []Kind {
	return []Kind{Fixed, Poisson, FixedTimeDependent, PoissonTimeDependent}
}

// Valid reports whether k names a recognized kind.
func (k Kind) Valid() bool {
	switch k {
	case Fixed, Poisson, FixedTimeDependent, PoissonTimeDependent:
		return true
	}
	return false
}

// TimeDependent reports whether counts scale with elapsed cell lifetime.
// Time-independent kinds are evaluated once per division event;
// time-dependent kinds once per cell at death/division/finalization.
func (k Kind) TimeDependent() bool {
	return k == FixedTimeDependent || k == PoissonTimeDependent
}

// Model is a mutation-assignment configuration.
type Model struct {
	Kind Kind
	Rate float64 // μ, mutations per division or per unit time
}

// Zero is the model forced by the no-mutation branching variants: every
// draw returns 0.
var Zero = Model{Kind: Fixed, Rate: 0}

// Validate checks the model for use.
func (m Model) Validate() error {
	if !m.Kind.Valid() {
		return fmt.Errorf("mutation: unknown kind %q", m.Kind)
	}
	if m.Rate < 0 {
		return fmt.Errorf("mutation: negative rate %v", m.Rate)
	}
	return nil
}

// TimeDependent reports whether the model's kind is time-dependent.
func (m Model) TimeDependent() bool { return m.Kind.TimeDependent() }

// Draw returns the mutation count for one cell-event. elapsed is the
// cell's lifetime and is ignored by time-independent kinds. Panics on an
// unrecognized kind; Validate gates that at configuration time.
func (m Model) Draw(src *rng.Source, elapsed float64) int {
	switch m.Kind {
	case Fixed:
		return int(math.Round(m.Rate))
	case Poisson:
		return src.Poisson(m.Rate)
	case FixedTimeDependent:
		return int(math.Round(m.Rate * elapsed))
	case PoissonTimeDependent:
		return src.Poisson(m.Rate * elapsed)
	}
	panic(fmt.Sprintf("mutation: unknown kind %q", m.Kind))
}

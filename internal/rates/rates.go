// Package rates aggregates the five competing event rates of the
// multilevel jump process from the population's module-size distribution,
// and keeps the vector patched incrementally as events reshape the
// homeostatic/growing partition. A full recompute and the incremental
// patches must agree exactly; both are derived from the same two counts
// (homeostatic modules, cells in growing modules) by the same arithmetic.
package rates

import (
	"fmt"

	"github.com/alexsteininfo/clonesim/internal/population"
	"github.com/alexsteininfo/clonesim/internal/rng"
)

// Event identifies one of the five jump-event kinds.
type Event int

const (
	Moran Event = iota
	Asymmetric
	Birth
	Death
	Branch
	NumEvents
)

// String returns the event kind's name.
func (e Event) String() string {
	switch e {
	case Moran:
		return "moran"
	case Asymmetric:
		return "asymmetric"
	case Birth:
		return "birth"
	case Death:
		return "death"
	case Branch:
		return "branch"
	}
	return fmt.Sprintf("event(%d)", int(e))
}

// Params holds the per-cell (and per-module, for Branch) base rates.
type Params struct {
	Moran      float64
	Asymmetric float64
	Birth      float64
	Death      float64
	Branch     float64
}

// Vector is one rate per event kind, indexed by Event.
type Vector [NumEvents]float64

// Total returns the summed rate R.
func (v Vector) Total() float64 {
	t := 0.0
	for _, r := range v {
		t += r
	}
	return t
}

// Aggregator derives the rate vector from two counts:
//
//	Moran      = moran · (homeostatic modules · capacity)
//	Asymmetric = asymmetric · (homeostatic modules · capacity)
//	Birth      = birth · (cells in growing modules)
//	Death      = death · (cells in growing modules)
//	Branch     = branch · (homeostatic modules)
type Aggregator struct {
	params       Params
	capacity     int
	homeostatic  int
	growingCells int
	vec          Vector
}

// NewAggregator creates an aggregator for the given base rates and module
// capacity, with all counts zero.
func NewAggregator(params Params, capacity int) *Aggregator {
	return &Aggregator{params: params, capacity: capacity}
}

// Vector returns the current rate vector.
func (a *Aggregator) Vector() Vector { return a.vec }

// Total returns the current summed rate R.
func (a *Aggregator) Total() float64 { return a.vec.Total() }

// Params returns the base rates.
func (a *Aggregator) Params() Params { return a.params }

func (a *Aggregator) refresh() {
	homeostaticCells := float64(a.homeostatic * a.capacity)
	growing := float64(a.growingCells)
	a.vec[Moran] = a.params.Moran * homeostaticCells
	a.vec[Asymmetric] = a.params.Asymmetric * homeostaticCells
	a.vec[Birth] = a.params.Birth * growing
	a.vec[Death] = a.params.Death * growing
	a.vec[Branch] = a.params.Branch * float64(a.homeostatic)
}

// Recompute rebuilds both counts from scratch over the whole population.
func (a *Aggregator) Recompute(p *population.Population) {
	a.homeostatic = len(p.Homeostatic())
	a.growingCells = 0
	for _, m := range p.Growing() {
		a.growingCells += m.Len()
	}
	a.refresh()
}

// RecomputeCheap refreshes the components derived from the homeostatic
// module count alone (Moran, Asymmetric). Done unconditionally each step.
func (a *Aggregator) RecomputeCheap(p *population.Population) {
	a.homeostatic = len(p.Homeostatic())
	a.refresh()
}

// RecomputeSizeDependent rescans the growing modules, refreshing the
// components that depend on the size distribution (Birth, Death, Branch).
// Called after events that may have moved modules across the partition.
func (a *Aggregator) RecomputeSizeDependent(p *population.Population) {
	a.homeostatic = len(p.Homeostatic())
	a.growingCells = 0
	for _, m := range p.Growing() {
		a.growingCells += m.Len()
	}
	a.refresh()
}

// AddGrowingCells patches the growing-cell count by delta without a
// rescan, e.g. +1 after a birth that left the module below capacity.
func (a *Aggregator) AddGrowingCells(delta int) {
	a.growingCells += delta
	a.refresh()
}

// AddHomeostatic patches the homeostatic module count by delta without a
// rescan, adjusting the growing-cell count by the cells that crossed the
// partition (capacity cells per module crossing).
func (a *Aggregator) AddHomeostatic(delta, growingCellDelta int) {
	a.homeostatic += delta
	a.growingCells += growingCellDelta
	a.refresh()
}

// Sample selects an event kind with probability rate[k]/R. Panics when
// the total rate is not positive; the engine terminates before drawing
// from an empty vector.
func (a *Aggregator) Sample(src *rng.Source) Event {
	return Event(src.Categorical(a.vec[:]))
}

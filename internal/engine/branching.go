package engine

import (
	"fmt"
	"math"
	"slices"

	"github.com/alexsteininfo/clonesim/internal/module"
	"github.com/alexsteininfo/clonesim/internal/mutation"
	"github.com/alexsteininfo/clonesim/internal/population"
)

// Strategy selects how a branch event obtains the founding cells of a
// new module from its homeostatic parent.
type Strategy string

const (
	// StrategySplit moves BranchInitSize distinct cells out of the
	// parent; the total cell count is unchanged.
	StrategySplit Strategy = "split"

	// StrategyWithReplacement draws BranchInitSize parent cells with
	// replacement; each draw divides the cell and moves one offspring
	// into the new module, leaving the parent at capacity.
	StrategyWithReplacement Strategy = "withreplacement"

	// StrategyWithoutReplacement is StrategyWithReplacement with
	// distinct draws: no parent cell divides twice.
	StrategyWithoutReplacement Strategy = "withoutreplacement"

	// The nomutations variants use the same mechanics with the mutation
	// model forced to zero, for runs that add mutations retrospectively.
	StrategyWithReplacementNoMutations    Strategy = "withreplacement_nomutations"
	StrategyWithoutReplacementNoMutations Strategy = "withoutreplacement_nomutations"
)

// Valid reports whether s names a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategySplit, StrategyWithReplacement, StrategyWithoutReplacement,
		StrategyWithReplacementNoMutations, StrategyWithoutReplacementNoMutations:
		return true
	}
	return false
}

// model returns the mutation model the strategy applies: the configured
// one, or zero for the nomutations variants.
func (s Strategy) model(m mutation.Model) mutation.Model {
	if s == StrategyWithReplacementNoMutations || s == StrategyWithoutReplacementNoMutations {
		return mutation.Zero
	}
	return m
}

// branchModule founds a new module from parent using the configured
// strategy. The child's creation time is the branch time, which is also
// appended to the parent's branch history.
func (e *Engine) branchModule(parent module.Module) (module.Module, error) {
	k := e.opts.BranchInitSize
	child := parent.NewEmpty(e.ids.ModuleID(), e.t)
	model := e.opts.Strategy.model(e.opts.Mutation)

	switch e.opts.Strategy {
	case StrategySplit:
		if k >= parent.Len() {
			return nil, fmt.Errorf("engine: split of size %d would empty parent of %d cells: %w",
				k, parent.Len(), module.ErrPrecondition)
		}
		if err := parent.MoveCells(e.src.SampleWithoutReplacement(parent.Len(), k), child); err != nil {
			return nil, err
		}

	case StrategyWithReplacement, StrategyWithReplacementNoMutations,
		StrategyWithoutReplacement, StrategyWithoutReplacementNoMutations:
		var picks []int
		if e.opts.Strategy == StrategyWithReplacement || e.opts.Strategy == StrategyWithReplacementNoMutations {
			picks = e.src.SampleWithReplacement(parent.Len(), k)
		} else {
			picks = e.src.SampleWithoutReplacement(parent.Len(), k)
		}
		for _, i := range picks {
			clone := parent.CloneOf(i)
			if err := parent.Divide(i, e.t, e.ids, model, e.src); err != nil {
				return nil, err
			}
			e.pop.AdjustCloneSize(clone, 1)
			// The appended offspring moves; the in-place one stays.
			if err := parent.MoveCells([]int{parent.Len() - 1}, child); err != nil {
				return nil, err
			}
		}

	default:
		return nil, fmt.Errorf("engine: unknown branching strategy %q", e.opts.Strategy)
	}

	parent.RecordBranch(e.t)
	return child, nil
}

// promote turns the cell at index i of m into the founder of a new
// subclone, registering the lineage's founding metadata, and returns the
// new clone id. Shared by the multilevel engine and the single-level
// drivers.
func promote(pop *population.Population, m module.Module, i int, t float64, sw Sweep, model mutation.Model) int {
	parentClone := m.CloneOf(i)
	muts := slices.Clone(m.Mutations(i))

	totalBurden := 0
	for j := 0; j < m.Len(); j++ {
		totalBurden += m.MutationCount(j)
	}
	avg := float64(totalBurden) / float64(m.Len())

	// With a mean of μ fresh mutations per division, the founder's
	// burden estimates its ancestral division count.
	divisions := 0
	if model.Rate > 0 {
		divisions = int(math.Round(float64(len(muts)) / model.Rate))
	}

	id := pop.AddSubclone(&population.Subclone{
		ParentID:           parentClone,
		ModuleID:           m.ID(),
		Time:               t,
		Mutations:          muts,
		SelectionCoeff:     sw.SelectionCoeff,
		FoundingModuleSize: m.Len(),
		FounderDivisions:   divisions,
		AvgModuleMutations: avg,
	})
	m.SetClone(i, id)
	pop.AdjustCloneSize(parentClone, -1)
	pop.AdjustCloneSize(id, 1)
	return id
}

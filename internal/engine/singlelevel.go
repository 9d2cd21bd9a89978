package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alexsteininfo/clonesim/internal/cell"
	"github.com/alexsteininfo/clonesim/internal/logging"
	"github.com/alexsteininfo/clonesim/internal/module"
	"github.com/alexsteininfo/clonesim/internal/mutation"
	"github.com/alexsteininfo/clonesim/internal/population"
	"github.com/alexsteininfo/clonesim/internal/rng"
)

// SingleLevel simulates one population of cells without the module
// hierarchy, reusing the same division/death primitives. Unlike the
// multilevel engine, selection is realized here: a subclone's fitness
// advantage weights its division rate.
type SingleLevel struct {
	opts   Options
	pop    *population.Population
	mod    module.Module
	ids    *module.IDGenerator
	src    *rng.Source
	tree   *cell.Tree
	sweeps sweepScheduler
	log    *slog.Logger
	trace  *logging.EventLogger

	t      float64
	steps  int
	reason TerminationReason
}

// NewSingleLevel creates a driver over a single founder cell. Capacity
// is the target (branching) or fixed (Moran) population size. The
// branching-strategy and module-policy fields of opts are unused.
func NewSingleLevel(opts Options, src *rng.Source, log *slog.Logger, trace *logging.EventLogger) (*SingleLevel, error) {
	// The module-level knobs have no meaning at this level; pin them so
	// shared validation passes.
	opts.Strategy = StrategySplit
	opts.ModuleUpdate = UpdateBranching
	opts.BranchInitSize = 1
	if opts.Capacity < 2 {
		return nil, fmt.Errorf("engine: single-level capacity %d, must be at least 2", opts.Capacity)
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &SingleLevel{
		opts:  opts,
		pop:   population.New(opts.Capacity),
		ids:   module.NewIDGenerator(),
		src:   src,
		log:   log,
		trace: trace,
	}
	s.sweeps = newSweepScheduler(opts.Sweeps)
	switch opts.Backend {
	case BackendFlat:
		s.mod = module.NewFlatFounder(s.ids.ModuleID(), opts.Structure, 0)
	case BackendTree:
		s.tree = cell.NewTree(cell.DeathMarker)
		s.mod = module.NewTreeFounder(s.tree, s.ids, s.ids.ModuleID(), opts.Structure, 0)
	case BackendTreePrune:
		s.tree = cell.NewTree(cell.DeathPrune)
		s.mod = module.NewTreeFounder(s.tree, s.ids, s.ids.ModuleID(), opts.Structure, 0)
	}
	if err := s.pop.Insert(s.mod); err != nil {
		return nil, err
	}
	return s, nil
}

// Population exposes the driver's population (one module) read-only.
func (s *SingleLevel) Population() *population.Population { return s.pop }

// Module exposes the single module read-only.
func (s *SingleLevel) Module() module.Module { return s.mod }

// Time returns the current simulation time.
func (s *SingleLevel) Time() float64 { return s.t }

func (s *SingleLevel) result() *Result {
	return &Result{
		Population:      s.pop,
		Tree:            s.tree,
		Time:            s.t,
		Steps:           s.steps,
		Reason:          s.reason,
		MutationsMinted: s.ids.MutationsMinted(),
	}
}

// cloneWeights returns per-clone event weights: clone size scaled by the
// base rate and the clone's fitness advantage.
func (s *SingleLevel) cloneWeights(base float64) []float64 {
	sizes := s.mod.CloneSizes()
	w := make([]float64, len(sizes))
	for c, n := range sizes {
		fitness := 1.0
		if c != cell.BaselineClone {
			fitness += s.pop.Subclone(c).SelectionCoeff
		}
		w[c] = float64(n) * base * fitness
	}
	return w
}

func sum(w []float64) float64 {
	t := 0.0
	for _, x := range w {
		t += x
	}
	return t
}

// pickWeighted selects a cell index: a clone proportional to the given
// weights, then a uniform member of that clone.
func (s *SingleLevel) pickWeighted(w []float64) int {
	clone := s.src.Categorical(w)
	k := s.src.IntN(s.mod.CloneSizes()[clone])
	for i := 0; i < s.mod.Len(); i++ {
		if s.mod.CloneOf(i) == clone {
			if k == 0 {
				return i
			}
			k--
		}
	}
	panic("engine: clone counters out of sync with cells")
}

func (s *SingleLevel) maybePromote(i int) {
	sw, ok := s.sweeps.due(s.t)
	if !ok {
		return
	}
	id := promote(s.pop, s.mod, i, s.t, sw, s.opts.Mutation)
	s.trace.Log(map[string]any{"event": "sweep", "t": s.t, "clone": id})
}

// RunBranching advances a birth-death branching process until the
// population reaches Capacity cells, goes extinct, or hits the horizon.
func (s *SingleLevel) RunBranching(ctx context.Context) (*Result, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n := s.mod.Len()
		if n == 0 {
			s.finish(ReasonExtinct)
			return s.result(), nil
		}
		if n >= s.opts.Capacity {
			s.finish(ReasonSizeReached)
			return s.result(), nil
		}

		birthW := s.cloneWeights(s.opts.Rates.Birth)
		totalBirth := sum(birthW)
		totalDeath := float64(n) * s.opts.Rates.Death
		total := totalBirth + totalDeath
		if total <= 0 {
			s.t = s.opts.Horizon
			s.finish(ReasonHorizon)
			return s.result(), nil
		}
		dt := s.src.Exp(total)
		if s.t+dt > s.opts.Horizon {
			s.t = s.opts.Horizon
			s.finish(ReasonHorizon)
			return s.result(), nil
		}
		s.t += dt

		if s.src.Float64()*total < totalBirth {
			i := s.pickWeighted(birthW)
			clone := s.mod.CloneOf(i)
			if err := s.mod.Divide(i, s.t, s.ids, s.opts.Mutation, s.src); err != nil {
				return nil, err
			}
			s.pop.AdjustCloneSize(clone, 1)
			s.maybePromote(i)
			s.trace.Log(map[string]any{"event": "birth", "t": s.t, "size": s.mod.Len()})
		} else {
			i := s.src.IntN(n)
			clone := s.mod.CloneOf(i)
			if err := s.mod.Kill(i, s.t, s.ids, s.opts.Mutation, s.src); err != nil {
				return nil, err
			}
			s.pop.AdjustCloneSize(clone, -1)
			s.trace.Log(map[string]any{"event": "death", "t": s.t, "size": s.mod.Len()})
		}
		s.mod.UpdateTime(s.t)
		if err := s.pop.Reclassify(s.mod); err != nil {
			return nil, err
		}
		s.steps++
	}
}

// FillToCapacity grows the population to Capacity cells at time zero by
// mutation-free divisions, the starting condition of a pure Moran run.
func (s *SingleLevel) FillToCapacity() error {
	for s.mod.Len() < s.opts.Capacity {
		if err := s.mod.Divide(0, 0, s.ids, mutation.Zero, s.src); err != nil {
			return err
		}
		s.pop.AdjustCloneSize(s.mod.CloneOf(0), 1)
	}
	return s.pop.Reclassify(s.mod)
}

// RunMoran advances a fixed-size Moran process until the horizon. The
// population must already be at Capacity cells.
func (s *SingleLevel) RunMoran(ctx context.Context) (*Result, error) {
	if s.mod.Len() != s.opts.Capacity {
		return nil, fmt.Errorf("engine: moran process needs %d cells, have %d: %w",
			s.opts.Capacity, s.mod.Len(), module.ErrPrecondition)
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n := s.mod.Len()
		moranW := s.cloneWeights(s.opts.Rates.Moran)
		total := sum(moranW)
		if total <= 0 {
			s.t = s.opts.Horizon
			s.finish(ReasonHorizon)
			return s.result(), nil
		}
		dt := s.src.Exp(total)
		if s.t+dt > s.opts.Horizon {
			s.t = s.opts.Horizon
			s.finish(ReasonHorizon)
			return s.result(), nil
		}
		s.t += dt

		divIdx := s.pickWeighted(moranW)
		var dieIdx int
		if !s.opts.MoranIncludeSelf && n > 1 {
			dieIdx = s.src.IntN(n - 1)
			if dieIdx >= divIdx {
				dieIdx++
			}
		} else {
			dieIdx = s.src.IntN(n)
		}

		clone := s.mod.CloneOf(divIdx)
		if err := s.mod.Divide(divIdx, s.t, s.ids, s.opts.Mutation, s.src); err != nil {
			return nil, err
		}
		s.pop.AdjustCloneSize(clone, 1)
		s.maybePromote(divIdx)
		if dieIdx == divIdx {
			dieIdx = s.mod.Len() - 1
		}
		victim := s.mod.CloneOf(dieIdx)
		if err := s.mod.Kill(dieIdx, s.t, s.ids, s.opts.Mutation, s.src); err != nil {
			return nil, err
		}
		s.pop.AdjustCloneSize(victim, -1)
		s.mod.UpdateTime(s.t)
		s.trace.Log(map[string]any{"event": "moran", "t": s.t})
		s.steps++
	}
}

func (s *SingleLevel) finish(reason TerminationReason) {
	s.reason = reason
	s.log.Debug("run terminated",
		"reason", string(reason),
		"t", s.t,
		"steps", s.steps,
		"cells", s.mod.Len())
}

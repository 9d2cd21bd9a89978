// Package engine implements the stochastic simulation drivers: the
// multilevel Gillespie engine advancing a population of modules through
// cell-level and module-level events, the module-branching strategies,
// and the single-level branching/Moran drivers built on the same
// primitives. A run is strictly sequential: each step is one jump of the
// continuous-time Markov process, consuming draws from a random source
// the run owns exclusively.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/alexsteininfo/clonesim/internal/cell"
	"github.com/alexsteininfo/clonesim/internal/logging"
	"github.com/alexsteininfo/clonesim/internal/module"
	"github.com/alexsteininfo/clonesim/internal/mutation"
	"github.com/alexsteininfo/clonesim/internal/population"
	"github.com/alexsteininfo/clonesim/internal/rates"
	"github.com/alexsteininfo/clonesim/internal/rng"
)

// Backend selects the cell-lineage representation.
type Backend string

const (
	// BackendFlat keeps per-module cell lists; no lineage is retained.
	BackendFlat Backend = "flat"

	// BackendTree keeps the full binary lineage tree, recording deaths
	// as dead-marker leaves.
	BackendTree Backend = "tree"

	// BackendTreePrune keeps the lineage tree but prunes dead lineages,
	// retaining nodes only while a live descendant needs them.
	BackendTreePrune Backend = "treeprune"
)

// Valid reports whether b names a known backend.
func (b Backend) Valid() bool {
	return b == BackendFlat || b == BackendTree || b == BackendTreePrune
}

// ModuleUpdate selects the module-level policy applied on branch events.
type ModuleUpdate string

const (
	// UpdateBranching lets the module count grow until the module cap.
	UpdateBranching ModuleUpdate = "branching"

	// UpdateMoran removes one uniformly chosen module per branch event,
	// keeping the module count fixed.
	UpdateMoran ModuleUpdate = "moran"
)

// Valid reports whether u names a known module-update policy.
func (u ModuleUpdate) Valid() bool {
	return u == UpdateBranching || u == UpdateMoran
}

// TerminationReason records why a run stopped. Every reason is a normal
// outcome, including extinction.
type TerminationReason string

const (
	ReasonHorizon     TerminationReason = "horizon"
	ReasonExtinct     TerminationReason = "extinct"
	ReasonModuleCap   TerminationReason = "modulecap"
	ReasonSizeReached TerminationReason = "sizereached"
)

// Sweep schedules a selective sweep: once simulation time passes Time,
// the next division's offspring founds a new subclone with the given
// fitness advantage.
type Sweep struct {
	Time           float64
	SelectionCoeff float64
}

// Options configures one simulation run.
type Options struct {
	// Capacity is the homeostatic module capacity; for the single-level
	// drivers it is the target (branching) or fixed (Moran) cell count.
	Capacity int

	// Rates are the base event rates.
	Rates rates.Params

	// Mutation is the mutation-assignment model.
	Mutation mutation.Model

	// Horizon is the time bound; the run stops without applying an
	// event once the next waiting time would cross it.
	Horizon float64

	// ModuleCap bounds the module count under UpdateBranching; zero
	// means unbounded.
	ModuleCap int

	// ModuleUpdate is the module-level policy on branch events.
	ModuleUpdate ModuleUpdate

	// MoranIncludeSelf allows the Moran death draw to coincide with the
	// dividing cell; the death is then redirected to one of the two
	// fresh offspring.
	MoranIncludeSelf bool

	// Strategy selects how a new module's founding cells are obtained,
	// with BranchInitSize cells.
	Strategy       Strategy
	BranchInitSize int

	// Structure tags the spatial layout of modules.
	Structure module.Structure

	// Backend selects the cell representation.
	Backend Backend

	// Sweeps are the pre-specified selective sweeps, any order.
	Sweeps []Sweep

	// Verify re-checks the population invariants after every step.
	// Meant for tests; it makes each step O(cells).
	Verify bool
}

func (o Options) validate() error {
	if o.Capacity < 1 {
		return fmt.Errorf("engine: capacity %d, must be at least 1", o.Capacity)
	}
	if !o.Backend.Valid() {
		return fmt.Errorf("engine: unknown backend %q", o.Backend)
	}
	if !o.ModuleUpdate.Valid() {
		return fmt.Errorf("engine: unknown module-update policy %q", o.ModuleUpdate)
	}
	if !o.Strategy.Valid() {
		return fmt.Errorf("engine: unknown branching strategy %q", o.Strategy)
	}
	if err := o.Mutation.Validate(); err != nil {
		return err
	}
	if o.Mutation.TimeDependent() && o.Backend == BackendFlat {
		return fmt.Errorf("engine: time-dependent mutation model requires a tree backend")
	}
	if o.BranchInitSize < 1 || o.BranchInitSize > o.Capacity {
		return fmt.Errorf("engine: branch init size %d outside [1, %d]", o.BranchInitSize, o.Capacity)
	}
	if o.Strategy == StrategySplit && o.BranchInitSize >= o.Capacity {
		return fmt.Errorf("engine: split strategy requires branch init size below capacity, got %d", o.BranchInitSize)
	}
	return nil
}

// Engine is the multilevel Gillespie driver.
type Engine struct {
	opts   Options
	pop    *population.Population
	agg    *rates.Aggregator
	ids    *module.IDGenerator
	src    *rng.Source
	tree   *cell.Tree
	sweeps sweepScheduler
	log    *slog.Logger
	trace  *logging.EventLogger

	t      float64
	steps  int
	done   bool
	reason TerminationReason
}

// New creates a multilevel engine seeded with a single founder module of
// one cell at time zero. log and trace may be nil.
func New(opts Options, src *rng.Source, log *slog.Logger, trace *logging.EventLogger) (*Engine, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	e := &Engine{
		opts:  opts,
		pop:   population.New(opts.Capacity),
		ids:   module.NewIDGenerator(),
		src:   src,
		log:   log,
		trace: trace,
	}
	e.sweeps = newSweepScheduler(opts.Sweeps)
	e.agg = rates.NewAggregator(opts.Rates, opts.Capacity)

	founder, err := e.newFounder()
	if err != nil {
		return nil, err
	}
	if err := e.pop.Insert(founder); err != nil {
		return nil, err
	}
	e.agg.Recompute(e.pop)
	return e, nil
}

func (e *Engine) newFounder() (module.Module, error) {
	switch e.opts.Backend {
	case BackendFlat:
		return module.NewFlatFounder(e.ids.ModuleID(), e.opts.Structure, 0), nil
	case BackendTree:
		e.tree = cell.NewTree(cell.DeathMarker)
	case BackendTreePrune:
		e.tree = cell.NewTree(cell.DeathPrune)
	default:
		return nil, fmt.Errorf("engine: unknown backend %q", e.opts.Backend)
	}
	return module.NewTreeFounder(e.tree, e.ids, e.ids.ModuleID(), e.opts.Structure, 0), nil
}

// Population exposes the current population read-only.
func (e *Engine) Population() *population.Population { return e.pop }

// Tree returns the shared lineage tree, or nil for the flat backend.
func (e *Engine) Tree() *cell.Tree { return e.tree }

// Time returns the current simulation time.
func (e *Engine) Time() float64 { return e.t }

// Rates returns the current rate vector.
func (e *Engine) Rates() rates.Vector { return e.agg.Vector() }

// Reason returns the termination reason, empty while the run is live.
func (e *Engine) Reason() TerminationReason { return e.reason }

// Result captures a finished run's state for output consumers.
type Result struct {
	Population *population.Population
	Tree       *cell.Tree
	Time       float64
	Steps      int
	Reason     TerminationReason

	// MutationsMinted is the total number of mutation ids assigned over
	// the run, the id space of every VAF table.
	MutationsMinted int
}

func (e *Engine) result() *Result {
	return &Result{
		Population:      e.pop,
		Tree:            e.tree,
		Time:            e.t,
		Steps:           e.steps,
		Reason:          e.reason,
		MutationsMinted: e.ids.MutationsMinted(),
	}
}

func (e *Engine) finish(reason TerminationReason) {
	e.done = true
	e.reason = reason
	e.log.Debug("run terminated",
		"reason", string(reason),
		"t", e.t,
		"steps", e.steps,
		"modules", e.pop.Len(),
		"cells", e.pop.NumCells())
}

// Step advances the process by one jump. It returns false once the run
// has terminated (horizon, extinction, or module cap); calling Step
// again after termination keeps returning false.
func (e *Engine) Step() (bool, error) {
	if e.done {
		return false, nil
	}

	// Step 1: termination checks before committing to an event.
	if e.pop.Len() == 0 || e.pop.NumCells() == 0 {
		e.finish(ReasonExtinct)
		return false, nil
	}
	if e.opts.ModuleUpdate == UpdateBranching && e.opts.ModuleCap > 0 && e.pop.Len() >= e.opts.ModuleCap {
		e.finish(ReasonModuleCap)
		return false, nil
	}

	// Step 2: exponential waiting time from the summed rate.
	total := e.agg.Total()
	if total <= 0 {
		// No event can ever fire again; the run coasts to the horizon.
		e.t = e.opts.Horizon
		e.finish(ReasonHorizon)
		return false, nil
	}
	dt := e.src.Exp(total)

	// Step 3: the final partial interval contributes no event.
	if e.t+dt > e.opts.Horizon {
		e.t = e.opts.Horizon
		e.finish(ReasonHorizon)
		return false, nil
	}
	e.t += dt

	// Step 4: rate-proportional event-kind selection and dispatch.
	ev := e.agg.Sample(e.src)
	var err error
	switch ev {
	case rates.Moran:
		err = e.moranUpdate()
	case rates.Asymmetric:
		err = e.asymmetricUpdate()
	case rates.Birth:
		err = e.birthUpdate()
	case rates.Death:
		err = e.deathUpdate()
	case rates.Branch:
		err = e.branchUpdate()
	}
	if err != nil {
		return false, fmt.Errorf("engine: step %d (%s at t=%g): %w", e.steps, ev, e.t, err)
	}

	// Step 5: the homeostatic-count components are refreshed
	// unconditionally; the size-dependent ones were rescanned inside the
	// handlers that can move modules across the partition.
	e.agg.RecomputeCheap(e.pop)
	e.steps++

	if e.opts.Verify {
		if err := e.pop.CheckInvariants(); err != nil {
			return false, err
		}
	}
	return true, nil
}

// Run advances the process until termination and returns the final state.
// Cancellation is checked between events; an event, once selected, always
// completes atomically.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ok, err := e.Step()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
	}
	return e.result(), nil
}

// moranUpdate divides one cell and kills another within a uniformly
// chosen homeostatic module, leaving the module at capacity.
func (e *Engine) moranUpdate() error {
	h := e.pop.Homeostatic()
	m := h[e.src.IntN(len(h))]
	n := m.Len()
	divIdx := e.src.IntN(n)

	var dieIdx int
	if !e.opts.MoranIncludeSelf && n > 1 {
		dieIdx = e.src.IntN(n - 1)
		if dieIdx >= divIdx {
			dieIdx++
		}
	} else {
		dieIdx = e.src.IntN(n)
	}

	clone := m.CloneOf(divIdx)
	if err := m.Divide(divIdx, e.t, e.ids, e.opts.Mutation, e.src); err != nil {
		return err
	}
	e.pop.AdjustCloneSize(clone, 1)
	e.maybePromote(m, divIdx)

	if dieIdx == divIdx {
		// Self-collision: redirect the death to the appended offspring.
		dieIdx = m.Len() - 1
	}
	victim := m.CloneOf(dieIdx)
	if err := m.Kill(dieIdx, e.t, e.ids, e.opts.Mutation, e.src); err != nil {
		return err
	}
	e.pop.AdjustCloneSize(victim, -1)
	m.UpdateTime(e.t)
	e.trace.Log(map[string]any{"event": "moran", "t": e.t, "module": m.ID()})
	return nil
}

// asymmetricUpdate divides one cell in a homeostatic module but retains
// only one offspring; the module's size does not change.
func (e *Engine) asymmetricUpdate() error {
	h := e.pop.Homeostatic()
	m := h[e.src.IntN(len(h))]
	i := e.src.IntN(m.Len())
	if err := m.AsymmetricDivide(i, e.t, e.ids, e.opts.Mutation, e.src); err != nil {
		return err
	}
	e.maybePromote(m, i)
	m.UpdateTime(e.t)
	e.trace.Log(map[string]any{"event": "asymmetric", "t": e.t, "module": m.ID()})
	return nil
}

// pickGrowing selects a growing module with probability proportional to
// its current size.
func (e *Engine) pickGrowing() module.Module {
	g := e.pop.Growing()
	weights := make([]float64, len(g))
	for i, m := range g {
		weights[i] = float64(m.Len())
	}
	return g[e.src.Categorical(weights)]
}

func (e *Engine) birthUpdate() error {
	m := e.pickGrowing()
	i := e.src.IntN(m.Len())
	clone := m.CloneOf(i)
	if err := m.Divide(i, e.t, e.ids, e.opts.Mutation, e.src); err != nil {
		return err
	}
	e.pop.AdjustCloneSize(clone, 1)
	e.maybePromote(m, i)
	m.UpdateTime(e.t)
	if err := e.pop.Reclassify(m); err != nil {
		return err
	}
	e.agg.RecomputeSizeDependent(e.pop)
	e.trace.Log(map[string]any{"event": "birth", "t": e.t, "module": m.ID(), "size": m.Len()})
	return nil
}

func (e *Engine) deathUpdate() error {
	m := e.pickGrowing()
	i := e.src.IntN(m.Len())
	clone := m.CloneOf(i)
	if err := m.Kill(i, e.t, e.ids, e.opts.Mutation, e.src); err != nil {
		return err
	}
	e.pop.AdjustCloneSize(clone, -1)
	m.UpdateTime(e.t)
	if m.Len() == 0 {
		if err := e.pop.Remove(m); err != nil {
			return err
		}
	} else if err := e.pop.Reclassify(m); err != nil {
		return err
	}
	e.agg.RecomputeSizeDependent(e.pop)
	e.trace.Log(map[string]any{"event": "death", "t": e.t, "module": m.ID(), "size": m.Len()})
	return nil
}

// branchUpdate founds a new module from a uniformly chosen homeostatic
// parent via the configured strategy. Under the moran module-update
// policy one module chosen uniformly from the whole population is then
// removed, keeping the module count fixed.
func (e *Engine) branchUpdate() error {
	h := e.pop.Homeostatic()
	parent := h[e.src.IntN(len(h))]
	child, err := e.branchModule(parent)
	if err != nil {
		return err
	}
	parent.UpdateTime(e.t)
	if err := e.pop.Reclassify(parent); err != nil {
		return err
	}
	if err := e.pop.Insert(child); err != nil {
		return err
	}

	if e.opts.ModuleUpdate == UpdateMoran {
		victim := e.pop.At(e.src.IntN(e.pop.Len()))
		for i := 0; i < victim.Len(); i++ {
			e.pop.AdjustCloneSize(victim.CloneOf(i), -1)
		}
		if err := victim.Die(e.t, e.ids, e.opts.Mutation, e.src); err != nil {
			return err
		}
		if err := e.pop.Remove(victim); err != nil {
			return err
		}
	}

	e.agg.RecomputeSizeDependent(e.pop)
	e.trace.Log(map[string]any{
		"event":  "branch",
		"t":      e.t,
		"parent": parent.ID(),
		"child":  child.ID(),
		"size":   child.Len(),
	})
	return nil
}

// maybePromote promotes the offspring at index i of m to found a new
// subclone when a scheduled selective sweep has come due, and refreshes
// the rate vector.
func (e *Engine) maybePromote(m module.Module, i int) {
	sw, ok := e.sweeps.due(e.t)
	if !ok {
		return
	}
	id := promote(e.pop, m, i, e.t, sw, e.opts.Mutation)
	e.agg.Recompute(e.pop)
	e.trace.Log(map[string]any{"event": "sweep", "t": e.t, "module": m.ID(), "clone": id})
}

// sweepScheduler hands out scheduled sweeps in time order.
type sweepScheduler struct {
	sweeps []Sweep
	next   int
}

func newSweepScheduler(sweeps []Sweep) sweepScheduler {
	ordered := make([]Sweep, len(sweeps))
	copy(ordered, sweeps)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Time < ordered[j].Time })
	return sweepScheduler{sweeps: ordered}
}

// due returns the next sweep whose introduction time has passed.
func (s *sweepScheduler) due(t float64) (Sweep, bool) {
	if s.next >= len(s.sweeps) || t < s.sweeps[s.next].Time {
		return Sweep{}, false
	}
	sw := s.sweeps[s.next]
	s.next++
	return sw, true
}

// Package module implements the bounded sub-populations of cells the
// multilevel model is built from. A module is an ordered sequence of live
// cells plus bookkeeping metadata (id, parent id, age, branch-time history,
// per-subclone size counters). Two backends share the Module interface: a
// flat backend whose cells carry their full mutation lists, and a tree
// backend whose cells are live leaves of a shared binary lineage tree.
package module

import (
	"errors"
	"fmt"

	"github.com/alexsteininfo/clonesim/internal/mutation"
	"github.com/alexsteininfo/clonesim/internal/rng"
)

// ErrPrecondition marks a caller error such as an out-of-range cell index.
// Precondition violations abort the run.
var ErrPrecondition = errors.New("precondition violation")

// ErrInvariant marks structural corruption such as a module exceeding its
// capacity. Invariant violations abort the run.
var ErrInvariant = errors.New("invariant violation")

// Structure tags the spatial layout of a module.
type Structure string

const (
	// WellMixed modules have no spatial arrangement; any cell can
	// interact with any other.
	WellMixed Structure = "wellmixed"

	// Linear modules arrange cells in a fixed-capacity line that may
	// contain empty slots.
	Linear Structure = "linear"
)

// FounderParent is the parent-module id of founder modules.
const FounderParent = 0

// Module is the common surface of the flat and tree-backed module types.
//
// Divide places the two offspring of cell i at index i and at index
// Len()-1; every other index is unchanged. Kill removes index i, shifting
// later cells down by one. Both return an error wrapping ErrPrecondition
// when i is out of range.
type Module interface {
	ID() int
	ParentID() int
	Structure() Structure

	// Len returns the number of live cells.
	Len() int

	// Time returns the module's recorded age; UpdateTime advances it.
	// Monotonicity across calls is the caller's obligation.
	Time() float64
	UpdateTime(t float64)

	// BranchTimes returns the timestamps of branch events this module
	// has parented; RecordBranch appends one.
	BranchTimes() []float64
	RecordBranch(t float64)

	// Clone bookkeeping. CloneSizes is indexed by clone tag, entry 0
	// being the baseline; the counters always equal the count of live
	// cells carrying each tag.
	CloneSizes() []int
	EnsureClone(id int)
	CloneOf(i int) int
	SetClone(i, clone int)

	// Mutation views of cell i. Mutations returns the full genotype.
	MutationCount(i int) int
	Mutations(i int) []int

	// Divide divides cell i at time t, assigning fresh mutations per the
	// model. Kill removes cell i, applying time-dependent mutation
	// accrual to the dying cell first where the backend keeps lineage.
	Divide(i int, t float64, ids *IDGenerator, model mutation.Model, src *rng.Source) error
	Kill(i int, t float64, ids *IDGenerator, model mutation.Model, src *rng.Source) error

	// AsymmetricDivide divides cell i but retains only one offspring;
	// the other is discarded immediately without death bookkeeping, so
	// the module's size and clone counters are unchanged.
	AsymmetricDivide(i int, t float64, ids *IDGenerator, model mutation.Model, src *rng.Source) error

	// Die kills every remaining cell at time t, used when a module-level
	// Moran replacement removes the whole module from the population.
	Die(t float64, ids *IDGenerator, model mutation.Model, src *rng.Source) error

	// NewEmpty creates an empty module of the same backend (sharing any
	// lineage storage) with the given id, this module as parent, and
	// creation time t. The subclone registry is copied structurally:
	// same clone ids, zero sizes.
	NewEmpty(id int, t float64) Module

	// MoveCells detaches the cells at the given indices without death
	// bookkeeping and appends them to dst, which must be the same
	// backend. Indices refer to the state before any removal.
	MoveCells(indices []int, dst Module) error
}

// meta carries the bookkeeping shared by both backends.
type meta struct {
	id          int
	parentID    int
	structure   Structure
	t           float64
	branchTimes []float64
	cloneSizes  []int
}

func newMeta(id, parentID int, structure Structure, t float64) meta {
	return meta{
		id:         id,
		parentID:   parentID,
		structure:  structure,
		t:          t,
		cloneSizes: []int{0},
	}
}

func (m *meta) ID() int                { return m.id }
func (m *meta) ParentID() int          { return m.parentID }
func (m *meta) Structure() Structure   { return m.structure }
func (m *meta) Time() float64          { return m.t }
func (m *meta) UpdateTime(t float64)   { m.t = t }
func (m *meta) BranchTimes() []float64 { return m.branchTimes }
func (m *meta) RecordBranch(t float64) { m.branchTimes = append(m.branchTimes, t) }
func (m *meta) CloneSizes() []int      { return m.cloneSizes }

func (m *meta) EnsureClone(id int) {
	for len(m.cloneSizes) <= id {
		m.cloneSizes = append(m.cloneSizes, 0)
	}
}

// copyRegistry returns a structural copy of the clone registry: same ids,
// zero sizes. Used when a branch event founds a new module.
func (m *meta) copyRegistry() []int {
	return make([]int, len(m.cloneSizes))
}

func indexErr(op string, i, n int) error {
	return fmt.Errorf("module: %s index %d out of range [0, %d): %w", op, i, n, ErrPrecondition)
}

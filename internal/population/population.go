// Package population maintains the run-level partition of modules into
// homeostatic (at capacity) and growing (below capacity) sets, together
// with the population-wide subclone registry. The Gillespie engine reads
// the partition to aggregate event rates and writes it back through
// Insert, Remove and Reclassify as events change module sizes.
package population

import (
	"fmt"

	"github.com/alexsteininfo/clonesim/internal/cell"
	"github.com/alexsteininfo/clonesim/internal/module"
)

// Subclone records a tracked fitter lineage founded by a mutation event.
// Subclones are never deleted; an extinct lineage simply has Size zero.
type Subclone struct {
	// ID is the clone tag carried by member cells; ids start at 1,
	// cell.BaselineClone (0) has no registry entry.
	ID int

	// ParentID is the clone the founder cell belonged to before promotion.
	ParentID int

	// ModuleID and Time locate the founding mutation event.
	ModuleID int
	Time     float64

	// Mutations is the founding mutation set inherited by the lineage.
	Mutations []int

	// SelectionCoeff is the fitness advantage conferred by the founding
	// mutation; birth rates scale by 1+SelectionCoeff in the
	// single-level drivers.
	SelectionCoeff float64

	// FoundingModuleSize is the live size of the origin module at the
	// founding instant.
	FoundingModuleSize int

	// FounderDivisions estimates the division count of the founder's
	// ancestry, derived from its mutation count at promotion.
	FounderDivisions int

	// AvgModuleMutations is the mean mutation burden across the origin
	// module at the founding instant.
	AvgModuleMutations float64

	// Size is the current total count of live cells carrying the tag,
	// summed over every module.
	Size int
}

// Population partitions the run's modules by whether they have reached
// the homeostatic capacity.
type Population struct {
	capacity    int
	homeostatic []module.Module
	growing     []module.Module
	subclones   []*Subclone
}

// New creates an empty population with the given homeostatic capacity.
func New(capacity int) *Population {
	return &Population{capacity: capacity}
}

// Capacity returns the homeostatic module capacity.
func (p *Population) Capacity() int { return p.capacity }

// Len returns the number of modules.
func (p *Population) Len() int { return len(p.homeostatic) + len(p.growing) }

// NumCells returns the total live-cell count across every module.
func (p *Population) NumCells() int {
	n := 0
	for _, m := range p.homeostatic {
		n += m.Len()
	}
	for _, m := range p.growing {
		n += m.Len()
	}
	return n
}

// Homeostatic returns the modules at capacity.
func (p *Population) Homeostatic() []module.Module { return p.homeostatic }

// Growing returns the modules below capacity.
func (p *Population) Growing() []module.Module { return p.growing }

// At indexes the union of the two sets, homeostatic first. Used for
// uniform module selection across the whole population.
func (p *Population) At(i int) module.Module {
	if i < len(p.homeostatic) {
		return p.homeostatic[i]
	}
	return p.growing[i-len(p.homeostatic)]
}

// Modules returns every module, homeostatic first.
func (p *Population) Modules() []module.Module {
	out := make([]module.Module, 0, p.Len())
	out = append(out, p.homeostatic...)
	return append(out, p.growing...)
}

// Insert adds a module to the set matching its size. A module above
// capacity is a fatal invariant violation.
func (p *Population) Insert(m module.Module) error {
	if m.Len() > p.capacity {
		return fmt.Errorf("population: module %d size %d exceeds capacity %d: %w",
			m.ID(), m.Len(), p.capacity, module.ErrInvariant)
	}
	if m.Len() == p.capacity {
		p.homeostatic = append(p.homeostatic, m)
	} else {
		p.growing = append(p.growing, m)
	}
	return nil
}

// Remove detaches the module from whichever set holds it. Removing a
// module that is not present is a fatal precondition violation.
func (p *Population) Remove(m module.Module) error {
	if removeFrom(&p.homeostatic, m) || removeFrom(&p.growing, m) {
		return nil
	}
	return fmt.Errorf("population: removing absent module %d: %w", m.ID(), module.ErrPrecondition)
}

func removeFrom(set *[]module.Module, m module.Module) bool {
	for i, x := range *set {
		if x == m {
			s := *set
			*set = append(s[:i], s[i+1:]...)
			return true
		}
	}
	return false
}

// Reclassify moves the module between the two sets if its size no longer
// matches its placement. Call after any event that changed the module's
// size. A module above capacity is a fatal invariant violation.
func (p *Population) Reclassify(m module.Module) error {
	if m.Len() > p.capacity {
		return fmt.Errorf("population: module %d size %d exceeds capacity %d: %w",
			m.ID(), m.Len(), p.capacity, module.ErrInvariant)
	}
	inHomeostatic := contains(p.homeostatic, m)
	wantHomeostatic := m.Len() == p.capacity
	if inHomeostatic == wantHomeostatic {
		return nil
	}
	if err := p.Remove(m); err != nil {
		return err
	}
	return p.Insert(m)
}

func contains(set []module.Module, m module.Module) bool {
	for _, x := range set {
		if x == m {
			return true
		}
	}
	return false
}

// Subclones returns the registry, indexed by clone id minus one.
func (p *Population) Subclones() []*Subclone { return p.subclones }

// AddSubclone registers a new lineage and returns its clone id.
func (p *Population) AddSubclone(sc *Subclone) int {
	sc.ID = len(p.subclones) + 1
	p.subclones = append(p.subclones, sc)
	return sc.ID
}

// Subclone returns the registry record for a clone id, or nil for the
// baseline clone.
func (p *Population) Subclone(clone int) *Subclone {
	if clone == cell.BaselineClone {
		return nil
	}
	return p.subclones[clone-1]
}

// AdjustCloneSize shifts the population-wide size counter of a clone.
// The baseline clone carries no counter.
func (p *Population) AdjustCloneSize(clone, delta int) {
	if clone == cell.BaselineClone {
		return
	}
	p.subclones[clone-1].Size += delta
}

// CheckInvariants verifies the partition and registry invariants:
// every homeostatic module is exactly at capacity, every growing module
// strictly below it, and each tracked subclone's size counter equals the
// number of live cells carrying its tag. Used by tests and by the engine
// under its verification mode.
func (p *Population) CheckInvariants() error {
	for _, m := range p.homeostatic {
		if m.Len() != p.capacity {
			return fmt.Errorf("population: homeostatic module %d has size %d, capacity %d: %w",
				m.ID(), m.Len(), p.capacity, module.ErrInvariant)
		}
	}
	for _, m := range p.growing {
		if m.Len() >= p.capacity || m.Len() < 0 {
			return fmt.Errorf("population: growing module %d has size %d, capacity %d: %w",
				m.ID(), m.Len(), p.capacity, module.ErrInvariant)
		}
	}
	counts := make([]int, len(p.subclones)+1)
	for _, m := range p.Modules() {
		for i := 0; i < m.Len(); i++ {
			c := m.CloneOf(i)
			if c >= len(counts) {
				return fmt.Errorf("population: cell carries unregistered clone %d: %w", c, module.ErrInvariant)
			}
			counts[c]++
		}
	}
	for _, sc := range p.subclones {
		if sc.Size != counts[sc.ID] {
			return fmt.Errorf("population: subclone %d size %d, counted %d: %w",
				sc.ID, sc.Size, counts[sc.ID], module.ErrInvariant)
		}
	}
	return nil
}

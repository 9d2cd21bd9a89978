package module

import (
	"fmt"
	"slices"

	"github.com/alexsteininfo/clonesim/internal/cell"
	"github.com/alexsteininfo/clonesim/internal/mutation"
	"github.com/alexsteininfo/clonesim/internal/rng"
)

// Flat is the list-backed module: each cell carries its full mutation list
// and no lineage is retained across divisions. Time-dependent mutation
// kinds are not supported by this backend (cells do not record birth
// times); configuration validation pairs them with the tree backend.
type Flat struct {
	meta
	cells []cell.Cell
}

// NewFlatFounder creates a flat module holding a single founder cell with
// no mutations on the baseline clone.
func NewFlatFounder(id int, structure Structure, t float64) *Flat {
	f := &Flat{meta: newMeta(id, FounderParent, structure, t)}
	f.cells = append(f.cells, cell.NewCell())
	f.cloneSizes[cell.BaselineClone] = 1
	return f
}

// Cells exposes the live cell list read-only for output consumers.
func (f *Flat) Cells() []cell.Cell { return f.cells }

func (f *Flat) Len() int { return len(f.cells) }

func (f *Flat) CloneOf(i int) int { return f.cells[i].Clone }

func (f *Flat) SetClone(i, clone int) {
	f.EnsureClone(clone)
	f.cloneSizes[f.cells[i].Clone]--
	f.cells[i].Clone = clone
	f.cloneSizes[clone]++
}

func (f *Flat) MutationCount(i int) int { return f.cells[i].MutationCount() }
func (f *Flat) Mutations(i int) []int   { return f.cells[i].Mutations }

// Divide divides cell i. The first offspring stays at index i, the second
// is appended at the end; each receives a fresh mutation batch drawn from
// the model.
func (f *Flat) Divide(i int, t float64, ids *IDGenerator, model mutation.Model, src *rng.Source) error {
	if i < 0 || i >= len(f.cells) {
		return indexErr("divide", i, len(f.cells))
	}
	sib := f.cells[i].CloneOf()
	n1 := model.Draw(src, 0)
	f.cells[i].AddMutations(n1, ids.MutationIDs(n1))
	n2 := model.Draw(src, 0)
	sib.AddMutations(n2, ids.MutationIDs(n2))
	f.cells = append(f.cells, sib)
	f.cloneSizes[sib.Clone]++
	return nil
}

// Kill removes cell i from the live list and decrements its clone counter.
// The flat backend keeps no lineage, so the model and time are unused.
func (f *Flat) Kill(i int, t float64, ids *IDGenerator, model mutation.Model, src *rng.Source) error {
	if i < 0 || i >= len(f.cells) {
		return indexErr("kill", i, len(f.cells))
	}
	f.cloneSizes[f.cells[i].Clone]--
	f.cells = slices.Delete(f.cells, i, i+1)
	return nil
}

// AsymmetricDivide divides cell i but keeps only one offspring; the other
// is discarded without ever joining the module, so size and clone counters
// are unchanged.
func (f *Flat) AsymmetricDivide(i int, t float64, ids *IDGenerator, model mutation.Model, src *rng.Source) error {
	if i < 0 || i >= len(f.cells) {
		return indexErr("asymmetric divide", i, len(f.cells))
	}
	n := model.Draw(src, 0)
	f.cells[i].AddMutations(n, ids.MutationIDs(n))
	return nil
}

// Die removes every remaining cell without lineage bookkeeping beyond the
// clone counters.
func (f *Flat) Die(t float64, ids *IDGenerator, model mutation.Model, src *rng.Source) error {
	for _, c := range f.cells {
		f.cloneSizes[c.Clone]--
	}
	f.cells = f.cells[:0]
	return nil
}

func (f *Flat) NewEmpty(id int, t float64) Module {
	n := &Flat{meta: newMeta(id, f.id, f.structure, t)}
	n.cloneSizes = f.copyRegistry()
	return n
}

// MoveCells detaches the cells at the given indices and appends them to
// dst in index order.
func (f *Flat) MoveCells(indices []int, dst Module) error {
	d, ok := dst.(*Flat)
	if !ok {
		return fmt.Errorf("module: moving cells between backends: %w", ErrPrecondition)
	}
	sorted := slices.Clone(indices)
	slices.Sort(sorted)
	for k, i := range sorted {
		if i < 0 || i >= len(f.cells) {
			return indexErr("move", i, len(f.cells))
		}
		if k > 0 && sorted[k-1] == i {
			return fmt.Errorf("module: duplicate move index %d: %w", i, ErrPrecondition)
		}
	}
	for _, i := range sorted {
		c := f.cells[i]
		f.cloneSizes[c.Clone]--
		d.EnsureClone(c.Clone)
		d.cloneSizes[c.Clone]++
		d.cells = append(d.cells, c)
	}
	// Delete from the highest index down so earlier indices stay valid.
	for k := len(sorted) - 1; k >= 0; k-- {
		i := sorted[k]
		f.cells = slices.Delete(f.cells, i, i+1)
	}
	return nil
}

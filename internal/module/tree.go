package module

import (
	"fmt"
	"slices"

	"github.com/alexsteininfo/clonesim/internal/cell"
	"github.com/alexsteininfo/clonesim/internal/mutation"
	"github.com/alexsteininfo/clonesim/internal/rng"
)

// TreeBacked is the lineage-tree module: its cells are the live leaves of
// a binary tree shared by every module of the run, so cells moved between
// modules keep their ancestry. Mutation batches live on tree nodes; a
// cell's genotype is accumulated along its root path.
type TreeBacked struct {
	meta
	tree  *cell.Tree
	alive []int
}

// NewTreeFounder creates a tree-backed module holding a single founder
// cell rooted in the shared tree.
func NewTreeFounder(tree *cell.Tree, ids *IDGenerator, id int, structure Structure, t float64) *TreeBacked {
	m := &TreeBacked{meta: newMeta(id, FounderParent, structure, t), tree: tree}
	root := tree.NewRoot(ids.CellID(), t)
	m.alive = append(m.alive, root)
	m.cloneSizes[cell.BaselineClone] = 1
	return m
}

// Tree exposes the shared lineage tree for output consumers.
func (m *TreeBacked) Tree() *cell.Tree { return m.tree }

// Handles exposes the live leaf handles read-only.
func (m *TreeBacked) Handles() []int { return m.alive }

func (m *TreeBacked) Len() int { return len(m.alive) }

func (m *TreeBacked) CloneOf(i int) int { return m.tree.Node(m.alive[i]).Clone }

func (m *TreeBacked) SetClone(i, clone int) {
	m.EnsureClone(clone)
	n := m.tree.Node(m.alive[i])
	m.cloneSizes[n.Clone]--
	n.Clone = clone
	m.cloneSizes[clone]++
}

func (m *TreeBacked) MutationCount(i int) int {
	return m.tree.MutationCountFromRoot(m.alive[i])
}

func (m *TreeBacked) Mutations(i int) []int {
	return m.tree.MutationsFromRoot(m.alive[i])
}

// accrue assigns the time-dependent mutation batch a cell earns over its
// lifetime, attached to its own tree node.
func (m *TreeBacked) accrue(h int, t float64, ids *IDGenerator, model mutation.Model, src *rng.Source) {
	n := m.tree.Node(h)
	count := model.Draw(src, t-n.BirthTime)
	first := ids.MutationIDs(count)
	for k := 0; k < count; k++ {
		n.Mutations = append(n.Mutations, first+k)
	}
}

// Divide divides cell i: its leaf becomes internal and grows two live
// children with fresh cell ids. Under a time-dependent model the parent
// node receives its lifetime's mutation batch and the children none;
// otherwise each child draws its own batch. The first offspring replaces
// index i, the second is appended at the end.
func (m *TreeBacked) Divide(i int, t float64, ids *IDGenerator, model mutation.Model, src *rng.Source) error {
	if i < 0 || i >= len(m.alive) {
		return indexErr("divide", i, len(m.alive))
	}
	h := m.alive[i]
	if model.TimeDependent() {
		m.accrue(h, t, ids, model, src)
	}
	leftID, rightID := ids.CellIDPair()
	l, r := m.tree.AddChildren(h, leftID, rightID, t)
	if !model.TimeDependent() {
		for _, child := range []int{l, r} {
			count := model.Draw(src, 0)
			first := ids.MutationIDs(count)
			n := m.tree.Node(child)
			for k := 0; k < count; k++ {
				n.Mutations = append(n.Mutations, first+k)
			}
		}
	}
	m.alive[i] = l
	m.alive = append(m.alive, r)
	m.cloneSizes[m.tree.Node(l).Clone]++
	return nil
}

// Kill removes cell i: under a time-dependent model the dying cell first
// accrues its lifetime's mutations, then the tree records the death per
// its mode (marker leaf or pruning).
func (m *TreeBacked) Kill(i int, t float64, ids *IDGenerator, model mutation.Model, src *rng.Source) error {
	if i < 0 || i >= len(m.alive) {
		return indexErr("kill", i, len(m.alive))
	}
	h := m.alive[i]
	if model.TimeDependent() {
		m.accrue(h, t, ids, model, src)
	}
	m.cloneSizes[m.tree.Node(h).Clone]--
	if err := m.tree.Kill(h, t); err != nil {
		return fmt.Errorf("%v: %w", err, ErrInvariant)
	}
	m.alive = slices.Delete(m.alive, i, i+1)
	return nil
}

// AsymmetricDivide divides cell i but retains only the first offspring.
// The discarded sibling never joins the live list: it is left as a dead
// leaf on marker trees and pruned immediately otherwise.
func (m *TreeBacked) AsymmetricDivide(i int, t float64, ids *IDGenerator, model mutation.Model, src *rng.Source) error {
	if i < 0 || i >= len(m.alive) {
		return indexErr("asymmetric divide", i, len(m.alive))
	}
	h := m.alive[i]
	if model.TimeDependent() {
		m.accrue(h, t, ids, model, src)
	}
	leftID, rightID := ids.CellIDPair()
	l, r := m.tree.AddChildren(h, leftID, rightID, t)
	if !model.TimeDependent() {
		count := model.Draw(src, 0)
		first := ids.MutationIDs(count)
		n := m.tree.Node(l)
		for k := 0; k < count; k++ {
			n.Mutations = append(n.Mutations, first+k)
		}
	}
	m.alive[i] = l
	m.tree.Node(r).Alive = false
	if m.tree.Mode() == cell.DeathPrune {
		if err := m.tree.Prune(r); err != nil {
			return fmt.Errorf("%v: %w", err, ErrInvariant)
		}
	}
	return nil
}

// Die kills every remaining cell at time t, so the shared tree retains no
// live leaves for this module.
func (m *TreeBacked) Die(t float64, ids *IDGenerator, model mutation.Model, src *rng.Source) error {
	for len(m.alive) > 0 {
		if err := m.Kill(len(m.alive)-1, t, ids, model, src); err != nil {
			return err
		}
	}
	return nil
}

func (m *TreeBacked) NewEmpty(id int, t float64) Module {
	n := &TreeBacked{meta: newMeta(id, m.id, m.structure, t), tree: m.tree}
	n.cloneSizes = m.copyRegistry()
	return n
}

// MoveCells transfers the leaves at the given indices to dst. The cells
// stay attached to the shared tree, so lineage is preserved across the
// module boundary.
func (m *TreeBacked) MoveCells(indices []int, dst Module) error {
	d, ok := dst.(*TreeBacked)
	if !ok {
		return fmt.Errorf("module: moving cells between backends: %w", ErrPrecondition)
	}
	if d.tree != m.tree {
		return fmt.Errorf("module: moving cells across lineage trees: %w", ErrPrecondition)
	}
	sorted := slices.Clone(indices)
	slices.Sort(sorted)
	for k, i := range sorted {
		if i < 0 || i >= len(m.alive) {
			return indexErr("move", i, len(m.alive))
		}
		if k > 0 && sorted[k-1] == i {
			return fmt.Errorf("module: duplicate move index %d: %w", i, ErrPrecondition)
		}
	}
	for _, i := range sorted {
		h := m.alive[i]
		clone := m.tree.Node(h).Clone
		m.cloneSizes[clone]--
		d.EnsureClone(clone)
		d.cloneSizes[clone]++
		d.alive = append(d.alive, h)
	}
	for k := len(sorted) - 1; k >= 0; k-- {
		i := sorted[k]
		m.alive = slices.Delete(m.alive, i, i+1)
	}
	return nil
}

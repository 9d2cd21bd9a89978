package module

import (
	"errors"
	"testing"

	"github.com/alexsteininfo/clonesim/internal/cell"
	"github.com/alexsteininfo/clonesim/internal/mutation"
	"github.com/alexsteininfo/clonesim/internal/rng"
)

// checkCloneSizes verifies the counter invariant: every clone counter
// equals the number of live cells carrying that tag, and the counters sum
// to the module size.
func checkCloneSizes(t *testing.T, m Module) {
	t.Helper()
	counts := make([]int, len(m.CloneSizes()))
	for i := 0; i < m.Len(); i++ {
		counts[m.CloneOf(i)]++
	}
	total := 0
	for c, want := range counts {
		if got := m.CloneSizes()[c]; got != want {
			t.Errorf("clone %d counter = %d, want %d", c, got, want)
		}
		total += want
	}
	if total != m.Len() {
		t.Errorf("clone counters sum to %d, module size %d", total, m.Len())
	}
}

// backends returns one founder module per backend, sharing nothing.
func backends(t *testing.T) map[string]Module {
	t.Helper()
	ids := NewIDGenerator()
	return map[string]Module{
		"flat":   NewFlatFounder(1, WellMixed, 0),
		"marker": NewTreeFounder(cell.NewTree(cell.DeathMarker), ids, 1, WellMixed, 0),
		"prune":  NewTreeFounder(cell.NewTree(cell.DeathPrune), ids, 1, WellMixed, 0),
	}
}

func TestDivideGrowsByOne(t *testing.T) {
	for name, m := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ids := NewIDGenerator()
			src := rng.New(1)
			model := mutation.Model{Kind: mutation.Fixed, Rate: 2}
			if err := m.Divide(0, 1, ids, model, src); err != nil {
				t.Fatalf("Divide: %v", err)
			}
			if m.Len() != 2 {
				t.Fatalf("size = %d, want 2", m.Len())
			}
			for i := 0; i < 2; i++ {
				if got := m.MutationCount(i); got != 2 {
					t.Errorf("offspring %d mutation count = %d, want 2", i, got)
				}
			}
			checkCloneSizes(t, m)
		})
	}
}

func TestDivideOffspringHaveDistinctMutations(t *testing.T) {
	for name, m := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ids := NewIDGenerator()
			src := rng.New(2)
			model := mutation.Model{Kind: mutation.Fixed, Rate: 1}
			if err := m.Divide(0, 1, ids, model, src); err != nil {
				t.Fatalf("Divide: %v", err)
			}
			a, b := m.Mutations(0), m.Mutations(1)
			if len(a) != 1 || len(b) != 1 {
				t.Fatalf("mutation sets %v / %v, want one each", a, b)
			}
			if a[0] == b[0] {
				t.Errorf("offspring share mutation id %d", a[0])
			}
		})
	}
}

func TestDivideOutOfRange(t *testing.T) {
	for name, m := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := m.Divide(5, 1, NewIDGenerator(), mutation.Zero, rng.New(1))
			if !errors.Is(err, ErrPrecondition) {
				t.Errorf("Divide(5) err = %v, want ErrPrecondition", err)
			}
		})
	}
}

func TestKillShrinksByOne(t *testing.T) {
	for name, m := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ids := NewIDGenerator()
			src := rng.New(3)
			if err := m.Divide(0, 1, ids, mutation.Zero, src); err != nil {
				t.Fatalf("Divide: %v", err)
			}
			if err := m.Kill(0, 2, ids, mutation.Zero, src); err != nil {
				t.Fatalf("Kill: %v", err)
			}
			if m.Len() != 1 {
				t.Fatalf("size = %d, want 1", m.Len())
			}
			checkCloneSizes(t, m)
		})
	}
}

func TestKillOutOfRange(t *testing.T) {
	for name, m := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := m.Kill(1, 1, NewIDGenerator(), mutation.Zero, rng.New(1))
			if !errors.Is(err, ErrPrecondition) {
				t.Errorf("Kill(1) err = %v, want ErrPrecondition", err)
			}
		})
	}
}

func TestAsymmetricDivideKeepsSize(t *testing.T) {
	for name, m := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ids := NewIDGenerator()
			src := rng.New(4)
			model := mutation.Model{Kind: mutation.Fixed, Rate: 3}
			before := m.MutationCount(0)
			if err := m.AsymmetricDivide(0, 1, ids, model, src); err != nil {
				t.Fatalf("AsymmetricDivide: %v", err)
			}
			if m.Len() != 1 {
				t.Errorf("size = %d, want 1 (discarded offspring must not join)", m.Len())
			}
			if got := m.MutationCount(0); got != before+3 {
				t.Errorf("retained offspring mutation count = %d, want %d", got, before+3)
			}
			checkCloneSizes(t, m)
		})
	}
}

func TestSetCloneMovesCounter(t *testing.T) {
	for name, m := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ids := NewIDGenerator()
			src := rng.New(5)
			if err := m.Divide(0, 1, ids, mutation.Zero, src); err != nil {
				t.Fatalf("Divide: %v", err)
			}
			m.SetClone(1, 1)
			if got := m.CloneSizes()[1]; got != 1 {
				t.Errorf("clone 1 counter = %d, want 1", got)
			}
			if got := m.CloneSizes()[cell.BaselineClone]; got != 1 {
				t.Errorf("baseline counter = %d, want 1", got)
			}
			checkCloneSizes(t, m)
		})
	}
}

func TestMoveCellsPreservesTotals(t *testing.T) {
	for name, m := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ids := NewIDGenerator()
			src := rng.New(6)
			for m.Len() < 6 {
				if err := m.Divide(0, 1, ids, mutation.Zero, src); err != nil {
					t.Fatalf("Divide: %v", err)
				}
			}
			m.SetClone(2, 1)
			dst := m.NewEmpty(2, 3)
			if err := m.MoveCells([]int{4, 0, 2}, dst); err != nil {
				t.Fatalf("MoveCells: %v", err)
			}
			if m.Len() != 3 || dst.Len() != 3 {
				t.Fatalf("sizes = %d/%d, want 3/3", m.Len(), dst.Len())
			}
			if dst.ParentID() != m.ID() {
				t.Errorf("dst parent = %d, want %d", dst.ParentID(), m.ID())
			}
			checkCloneSizes(t, m)
			checkCloneSizes(t, dst)
		})
	}
}

func TestMoveCellsRejectsDuplicateIndices(t *testing.T) {
	m := NewFlatFounder(1, WellMixed, 0)
	ids := NewIDGenerator()
	src := rng.New(7)
	if err := m.Divide(0, 1, ids, mutation.Zero, src); err != nil {
		t.Fatalf("Divide: %v", err)
	}
	dst := m.NewEmpty(2, 1)
	if err := m.MoveCells([]int{0, 0}, dst); !errors.Is(err, ErrPrecondition) {
		t.Errorf("duplicate index err = %v, want ErrPrecondition", err)
	}
}

func TestNewEmptyCopiesRegistryStructure(t *testing.T) {
	m := NewFlatFounder(1, WellMixed, 0)
	m.EnsureClone(3)
	dst := m.NewEmpty(2, 1)
	if got, want := len(dst.CloneSizes()), len(m.CloneSizes()); got != want {
		t.Fatalf("registry length = %d, want %d", got, want)
	}
	for c, n := range dst.CloneSizes() {
		if n != 0 {
			t.Errorf("fresh module clone %d counter = %d, want 0", c, n)
		}
	}
}

func TestTimeDependentDivideMutatesParentNode(t *testing.T) {
	tree := cell.NewTree(cell.DeathMarker)
	ids := NewIDGenerator()
	m := NewTreeFounder(tree, ids, 1, WellMixed, 0)
	src := rng.New(8)
	model := mutation.Model{Kind: mutation.FixedTimeDependent, Rate: 2}

	// Founder born at t=0 divides at t=3: it accrues 6 mutations which
	// both offspring inherit via the root path.
	if err := m.Divide(0, 3, ids, model, src); err != nil {
		t.Fatalf("Divide: %v", err)
	}
	for i := 0; i < 2; i++ {
		if got := m.MutationCount(i); got != 6 {
			t.Errorf("offspring %d inherits %d mutations, want 6", i, got)
		}
	}
	// Offspring mutation sets are identical: the accrual sits on the
	// shared parent node, not on the children.
	a, b := m.Mutations(0), m.Mutations(1)
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("offspring genotypes differ at %d: %v vs %v", i, a, b)
		}
	}
}

func TestTimeDependentKillAccruesBeforeMarking(t *testing.T) {
	tree := cell.NewTree(cell.DeathMarker)
	ids := NewIDGenerator()
	m := NewTreeFounder(tree, ids, 1, WellMixed, 0)
	src := rng.New(9)
	model := mutation.Model{Kind: mutation.FixedTimeDependent, Rate: 1}

	if err := m.Divide(0, 0, ids, model, src); err != nil {
		t.Fatalf("Divide: %v", err)
	}
	h := m.Handles()[0]
	if err := m.Kill(0, 4, ids, model, src); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	if got := len(tree.Node(h).Mutations); got != 4 {
		t.Errorf("dying cell accrued %d mutations, want 4", got)
	}
}

func TestDieEmptiesModule(t *testing.T) {
	for name, m := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ids := NewIDGenerator()
			src := rng.New(10)
			for m.Len() < 4 {
				if err := m.Divide(0, 1, ids, mutation.Zero, src); err != nil {
					t.Fatalf("Divide: %v", err)
				}
			}
			if err := m.Die(2, ids, mutation.Zero, src); err != nil {
				t.Fatalf("Die: %v", err)
			}
			if m.Len() != 0 {
				t.Errorf("size = %d after Die, want 0", m.Len())
			}
			checkCloneSizes(t, m)
		})
	}
}

func TestDieOnPruneTreeReleasesLineage(t *testing.T) {
	tree := cell.NewTree(cell.DeathPrune)
	ids := NewIDGenerator()
	m := NewTreeFounder(tree, ids, 1, WellMixed, 0)
	src := rng.New(11)
	for m.Len() < 8 {
		if err := m.Divide(0, 1, ids, mutation.Zero, src); err != nil {
			t.Fatalf("Divide: %v", err)
		}
	}
	if err := m.Die(2, ids, mutation.Zero, src); err != nil {
		t.Fatalf("Die: %v", err)
	}
	if tree.Len() != 0 {
		t.Errorf("tree retains %d nodes after whole-module death", tree.Len())
	}
}

func TestBranchTimeHistory(t *testing.T) {
	m := NewFlatFounder(1, WellMixed, 0)
	m.RecordBranch(1.5)
	m.RecordBranch(2.5)
	bt := m.BranchTimes()
	if len(bt) != 2 || bt[0] != 1.5 || bt[1] != 2.5 {
		t.Errorf("branch times = %v", bt)
	}
}

func TestIDGeneratorMonotonic(t *testing.T) {
	g := NewIDGenerator()
	if a, b := g.CellIDPair(); a != 1 || b != 2 {
		t.Errorf("CellIDPair = %d,%d, want 1,2", a, b)
	}
	if got := g.CellID(); got != 3 {
		t.Errorf("CellID = %d, want 3", got)
	}
	if first := g.MutationIDs(3); first != 1 {
		t.Errorf("first mutation id = %d, want 1", first)
	}
	if first := g.MutationIDs(0); first != 4 {
		t.Errorf("zero reservation moved the cursor: got %d, want 4", first)
	}
	if got := g.MutationsMinted(); got != 3 {
		t.Errorf("MutationsMinted = %d, want 3", got)
	}
	if got := g.ModuleID(); got != 1 {
		t.Errorf("ModuleID = %d, want 1", got)
	}
}

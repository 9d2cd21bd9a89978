package population

import (
	"errors"
	"testing"

	"github.com/alexsteininfo/clonesim/internal/module"
	"github.com/alexsteininfo/clonesim/internal/mutation"
	"github.com/alexsteininfo/clonesim/internal/rng"
)

// grow divides cell 0 until the module reaches size n.
func grow(t *testing.T, m module.Module, n int) {
	t.Helper()
	ids := module.NewIDGenerator()
	src := rng.New(99)
	for m.Len() < n {
		if err := m.Divide(0, 0, ids, mutation.Zero, src); err != nil {
			t.Fatalf("grow: %v", err)
		}
	}
}

func TestInsertClassifiesBySize(t *testing.T) {
	p := New(4)
	full := module.NewFlatFounder(1, module.WellMixed, 0)
	grow(t, full, 4)
	small := module.NewFlatFounder(2, module.WellMixed, 0)

	if err := p.Insert(full); err != nil {
		t.Fatalf("Insert(full): %v", err)
	}
	if err := p.Insert(small); err != nil {
		t.Fatalf("Insert(small): %v", err)
	}
	if len(p.Homeostatic()) != 1 || len(p.Growing()) != 1 {
		t.Errorf("partition = %d/%d, want 1/1", len(p.Homeostatic()), len(p.Growing()))
	}
	if p.Len() != 2 || p.NumCells() != 5 {
		t.Errorf("Len=%d NumCells=%d, want 2/5", p.Len(), p.NumCells())
	}
}

func TestInsertRejectsOversize(t *testing.T) {
	p := New(2)
	m := module.NewFlatFounder(1, module.WellMixed, 0)
	grow(t, m, 3)
	if err := p.Insert(m); !errors.Is(err, module.ErrInvariant) {
		t.Errorf("Insert oversize err = %v, want ErrInvariant", err)
	}
}

func TestReclassifyMovesBetweenSets(t *testing.T) {
	p := New(3)
	m := module.NewFlatFounder(1, module.WellMixed, 0)
	if err := p.Insert(m); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	grow(t, m, 3)
	if err := p.Reclassify(m); err != nil {
		t.Fatalf("Reclassify: %v", err)
	}
	if len(p.Homeostatic()) != 1 || len(p.Growing()) != 0 {
		t.Fatalf("partition after growth = %d/%d, want 1/0", len(p.Homeostatic()), len(p.Growing()))
	}

	ids := module.NewIDGenerator()
	if err := m.Kill(0, 1, ids, mutation.Zero, rng.New(1)); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	if err := p.Reclassify(m); err != nil {
		t.Fatalf("Reclassify: %v", err)
	}
	if len(p.Homeostatic()) != 0 || len(p.Growing()) != 1 {
		t.Fatalf("partition after death = %d/%d, want 0/1", len(p.Homeostatic()), len(p.Growing()))
	}
	if err := p.CheckInvariants(); err != nil {
		t.Errorf("CheckInvariants: %v", err)
	}
}

func TestRemoveAbsentModule(t *testing.T) {
	p := New(4)
	m := module.NewFlatFounder(1, module.WellMixed, 0)
	if err := p.Remove(m); !errors.Is(err, module.ErrPrecondition) {
		t.Errorf("Remove absent err = %v, want ErrPrecondition", err)
	}
}

func TestAtSpansBothSets(t *testing.T) {
	p := New(1)
	a := module.NewFlatFounder(1, module.WellMixed, 0) // size 1 == capacity
	b := module.NewFlatFounder(2, module.WellMixed, 0)
	ids := module.NewIDGenerator()
	if err := b.Kill(0, 0, ids, mutation.Zero, rng.New(1)); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	if err := p.Insert(a); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := p.Insert(b); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if p.At(0).ID() != 1 || p.At(1).ID() != 2 {
		t.Errorf("At order = %d, %d, want 1, 2", p.At(0).ID(), p.At(1).ID())
	}
}

func TestSubcloneRegistry(t *testing.T) {
	p := New(4)
	m := module.NewFlatFounder(1, module.WellMixed, 0)
	grow(t, m, 4)
	if err := p.Insert(m); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	id := p.AddSubclone(&Subclone{
		ParentID:           0,
		ModuleID:           1,
		Time:               2.5,
		SelectionCoeff:     0.3,
		FoundingModuleSize: 4,
		Size:               0,
	})
	if id != 1 {
		t.Fatalf("first subclone id = %d, want 1", id)
	}
	m.SetClone(2, id)
	p.AdjustCloneSize(id, 1)

	if err := p.CheckInvariants(); err != nil {
		t.Fatalf("CheckInvariants: %v", err)
	}
	if p.Subclone(id).Size != 1 {
		t.Errorf("subclone size = %d, want 1", p.Subclone(id).Size)
	}
	if p.Subclone(0) != nil {
		t.Error("baseline clone must have no registry record")
	}

	// A stale counter must be caught.
	p.AdjustCloneSize(id, 1)
	if err := p.CheckInvariants(); !errors.Is(err, module.ErrInvariant) {
		t.Errorf("CheckInvariants with stale counter = %v, want ErrInvariant", err)
	}
}

func TestAdjustBaselineIsNoOp(t *testing.T) {
	p := New(4)
	p.AdjustCloneSize(0, 5) // must not panic or allocate a record
	if len(p.Subclones()) != 0 {
		t.Error("baseline adjustment created a registry record")
	}
}

package export

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/alexsteininfo/clonesim/internal/analysis"
	"github.com/alexsteininfo/clonesim/internal/module"
	"github.com/alexsteininfo/clonesim/internal/mutation"
	"github.com/alexsteininfo/clonesim/internal/population"
	"github.com/alexsteininfo/clonesim/internal/rng"
)

// twoModulePopulation builds one homeostatic and one growing module with
// deterministic genotypes and a registered subclone.
func twoModulePopulation(t *testing.T) *population.Population {
	t.Helper()
	ids := module.NewIDGenerator()
	src := rng.New(1)
	model := mutation.Model{Kind: mutation.Fixed, Rate: 1}

	a := module.NewFlatFounder(ids.ModuleID(), module.WellMixed, 0)
	if err := a.Divide(0, 0.5, ids, model, src); err != nil {
		t.Fatalf("divide: %v", err)
	}
	a.RecordBranch(1.5)

	b := a.NewEmpty(ids.ModuleID(), 1.5)
	if err := a.MoveCells([]int{1}, b); err != nil {
		t.Fatalf("move: %v", err)
	}
	b.UpdateTime(2)

	pop := population.New(1)
	if err := pop.Insert(a); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := pop.Insert(b); err != nil {
		t.Fatalf("insert: %v", err)
	}

	id := pop.AddSubclone(&population.Subclone{
		ParentID:           0,
		ModuleID:           b.ID(),
		Time:               2,
		SelectionCoeff:     0.3,
		FoundingModuleSize: 1,
		FounderDivisions:   1,
		AvgModuleMutations: 1,
	})
	b.SetClone(0, id)
	pop.AdjustCloneSize(id, 1)
	return pop
}

func TestModuleRecord(t *testing.T) {
	pop := twoModulePopulation(t)
	rec := ModuleRecord(memory.NewGoAllocator(), pop)
	defer rec.Release()

	if rec.NumRows() != 2 {
		t.Fatalf("rows = %d, want 2", rec.NumRows())
	}
	idCol := rec.Column(0).(*array.Int64)
	parentCol := rec.Column(1).(*array.Int64)
	sizeCol := rec.Column(2).(*array.Int64)
	branchCol := rec.Column(4).(*array.Int64)
	homeoCol := rec.Column(5).(*array.Boolean)

	if idCol.Value(0) != 1 || idCol.Value(1) != 2 {
		t.Errorf("module ids = %d, %d; want 1, 2", idCol.Value(0), idCol.Value(1))
	}
	if parentCol.Value(0) != int64(module.FounderParent) || parentCol.Value(1) != 1 {
		t.Errorf("parent ids = %d, %d", parentCol.Value(0), parentCol.Value(1))
	}
	if sizeCol.Value(0) != 1 || sizeCol.Value(1) != 1 {
		t.Errorf("sizes = %d, %d; want 1, 1", sizeCol.Value(0), sizeCol.Value(1))
	}
	if branchCol.Value(0) != 1 || branchCol.Value(1) != 0 {
		t.Errorf("branch counts = %d, %d; want 1, 0", branchCol.Value(0), branchCol.Value(1))
	}
	if !homeoCol.Value(0) || !homeoCol.Value(1) {
		// Capacity is 1, so both one-cell modules are homeostatic.
		t.Errorf("homeostatic flags = %t, %t; want true, true", homeoCol.Value(0), homeoCol.Value(1))
	}
}

func TestVAFRecord(t *testing.T) {
	pop := twoModulePopulation(t)
	freqs := analysis.Frequencies(pop)
	rec := VAFRecord(memory.NewGoAllocator(), freqs, 2)
	defer rec.Release()

	// Genotypes are {1} and {2}: two mutations at cell frequency 1/2.
	if rec.NumRows() != 2 {
		t.Fatalf("rows = %d, want 2", rec.NumRows())
	}
	mutCol := rec.Column(0).(*array.Int64)
	freqCol := rec.Column(1).(*array.Float64)
	vafCol := rec.Column(2).(*array.Float64)
	for i := 0; i < 2; i++ {
		if mutCol.Value(i) != int64(i+1) {
			t.Errorf("row %d mutation id = %d, want %d", i, mutCol.Value(i), i+1)
		}
		if freqCol.Value(i) != 0.5 {
			t.Errorf("row %d cell freq = %g, want 0.5", i, freqCol.Value(i))
		}
		if vafCol.Value(i) != 0.25 {
			t.Errorf("row %d vaf = %g, want 0.25", i, vafCol.Value(i))
		}
	}
}

func TestSubcloneRecord(t *testing.T) {
	pop := twoModulePopulation(t)
	rec := SubcloneRecord(memory.NewGoAllocator(), pop)
	defer rec.Release()

	if rec.NumRows() != 1 {
		t.Fatalf("rows = %d, want 1", rec.NumRows())
	}
	if got := rec.Column(0).(*array.Int64).Value(0); got != 1 {
		t.Errorf("clone id = %d, want 1", got)
	}
	if got := rec.Column(4).(*array.Float64).Value(0); got != 0.3 {
		t.Errorf("selection coeff = %g, want 0.3", got)
	}
	if got := rec.Column(5).(*array.Int64).Value(0); got != 1 {
		t.Errorf("size = %d, want 1", got)
	}
}

func TestWriteCSVHeaderAndRows(t *testing.T) {
	pop := twoModulePopulation(t)
	rec := ModuleRecord(memory.NewGoAllocator(), pop)
	defer rec.Release()

	var buf bytes.Buffer
	if err := WriteCSV(&buf, rec); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header plus 2 rows:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "module_id,parent_id,size") {
		t.Errorf("unexpected header: %s", lines[0])
	}
}

func TestWriteArrowFileRoundTrip(t *testing.T) {
	pop := twoModulePopulation(t)
	rec := VAFRecord(memory.NewGoAllocator(), analysis.Frequencies(pop), 2)
	defer rec.Release()

	// The IPC file format needs a seekable target for its footer.
	path := filepath.Join(t.TempDir(), "vaf.arrow")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := WriteArrowFile(f, rec); err != nil {
		f.Close()
		t.Fatalf("WriteArrowFile: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	r, err := ipc.NewFileReader(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("NewFileReader: %v", err)
	}
	defer r.Close()
	if r.NumRecords() != 1 {
		t.Fatalf("records = %d, want 1", r.NumRecords())
	}
	got, err := r.Record(0)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if got.NumRows() != rec.NumRows() {
		t.Errorf("rows = %d, want %d", got.NumRows(), rec.NumRows())
	}
	if !got.Schema().Equal(rec.Schema()) {
		t.Error("schema did not round-trip")
	}
}

func TestWriteTables(t *testing.T) {
	for _, format := range []Format{FormatCSV, FormatArrow} {
		t.Run(string(format), func(t *testing.T) {
			dir := t.TempDir()
			pop := twoModulePopulation(t)
			paths, err := WriteTables(dir, format, pop, 2)
			if err != nil {
				t.Fatalf("WriteTables: %v", err)
			}
			if len(paths) != 3 {
				t.Fatalf("got %d files, want 3", len(paths))
			}
			for _, p := range paths {
				info, err := os.Stat(p)
				if err != nil {
					t.Errorf("missing output: %v", err)
					continue
				}
				if info.Size() == 0 {
					t.Errorf("%s is empty", p)
				}
			}
		})
	}
}

func TestWriteTablesRejectsUnknownFormat(t *testing.T) {
	if _, err := WriteTables(t.TempDir(), "parquet", twoModulePopulation(t), 2); err == nil {
		t.Error("expected unknown-format error")
	}
}

// Package export materializes finished runs as Arrow record batches and
// writes them out as CSV or Arrow IPC files: one table of modules, one of
// variant allele frequencies, and one of tracked subclones.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/csv"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/alexsteininfo/clonesim/internal/analysis"
	"github.com/alexsteininfo/clonesim/internal/population"
)

// Format selects the on-disk table representation.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatArrow Format = "arrow"
)

// Valid reports whether f names a known format.
func (f Format) Valid() bool { return f == FormatCSV || f == FormatArrow }

func (f Format) ext() string {
	if f == FormatArrow {
		return "arrow"
	}
	return "csv"
}

var moduleSchema = arrow.NewSchema([]arrow.Field{
	{Name: "module_id", Type: arrow.PrimitiveTypes.Int64},
	{Name: "parent_id", Type: arrow.PrimitiveTypes.Int64},
	{Name: "size", Type: arrow.PrimitiveTypes.Int64},
	{Name: "age", Type: arrow.PrimitiveTypes.Float64},
	{Name: "branch_count", Type: arrow.PrimitiveTypes.Int64},
	{Name: "homeostatic", Type: arrow.FixedWidthTypes.Boolean},
}, nil)

// ModuleRecord builds the per-module table, ordered by module id.
func ModuleRecord(alloc memory.Allocator, pop *population.Population) arrow.Record {
	b := array.NewRecordBuilder(alloc, moduleSchema)
	defer b.Release()

	mods := pop.Modules()
	sort.Slice(mods, func(i, j int) bool { return mods[i].ID() < mods[j].ID() })
	homeostatic := make(map[int]bool, len(pop.Homeostatic()))
	for _, m := range pop.Homeostatic() {
		homeostatic[m.ID()] = true
	}
	for _, m := range mods {
		b.Field(0).(*array.Int64Builder).Append(int64(m.ID()))
		b.Field(1).(*array.Int64Builder).Append(int64(m.ParentID()))
		b.Field(2).(*array.Int64Builder).Append(int64(m.Len()))
		b.Field(3).(*array.Float64Builder).Append(m.Time())
		b.Field(4).(*array.Int64Builder).Append(int64(len(m.BranchTimes())))
		b.Field(5).(*array.BooleanBuilder).Append(homeostatic[m.ID()])
	}
	return b.NewRecord()
}

var vafSchema = arrow.NewSchema([]arrow.Field{
	{Name: "mutation_id", Type: arrow.PrimitiveTypes.Int64},
	{Name: "cell_freq", Type: arrow.PrimitiveTypes.Float64},
	{Name: "vaf", Type: arrow.PrimitiveTypes.Float64},
}, nil)

// VAFRecord builds the variant-allele-frequency table from a frequency
// map, ordered by mutation id.
func VAFRecord(alloc memory.Allocator, freqs map[int]float64, ploidy int) arrow.Record {
	b := array.NewRecordBuilder(alloc, vafSchema)
	defer b.Release()

	muts := make([]int, 0, len(freqs))
	for mut := range freqs {
		muts = append(muts, mut)
	}
	sort.Ints(muts)
	for _, mut := range muts {
		b.Field(0).(*array.Int64Builder).Append(int64(mut))
		b.Field(1).(*array.Float64Builder).Append(freqs[mut])
		b.Field(2).(*array.Float64Builder).Append(freqs[mut] / float64(ploidy))
	}
	return b.NewRecord()
}

var subcloneSchema = arrow.NewSchema([]arrow.Field{
	{Name: "clone_id", Type: arrow.PrimitiveTypes.Int64},
	{Name: "parent_clone", Type: arrow.PrimitiveTypes.Int64},
	{Name: "module_id", Type: arrow.PrimitiveTypes.Int64},
	{Name: "time", Type: arrow.PrimitiveTypes.Float64},
	{Name: "selection_coeff", Type: arrow.PrimitiveTypes.Float64},
	{Name: "size", Type: arrow.PrimitiveTypes.Int64},
	{Name: "founder_divisions", Type: arrow.PrimitiveTypes.Int64},
	{Name: "founding_module_size", Type: arrow.PrimitiveTypes.Int64},
	{Name: "avg_module_mutations", Type: arrow.PrimitiveTypes.Float64},
}, nil)

// SubcloneRecord builds the tracked-subclone table.
func SubcloneRecord(alloc memory.Allocator, pop *population.Population) arrow.Record {
	b := array.NewRecordBuilder(alloc, subcloneSchema)
	defer b.Release()

	for _, sc := range pop.Subclones() {
		b.Field(0).(*array.Int64Builder).Append(int64(sc.ID))
		b.Field(1).(*array.Int64Builder).Append(int64(sc.ParentID))
		b.Field(2).(*array.Int64Builder).Append(int64(sc.ModuleID))
		b.Field(3).(*array.Float64Builder).Append(sc.Time)
		b.Field(4).(*array.Float64Builder).Append(sc.SelectionCoeff)
		b.Field(5).(*array.Int64Builder).Append(int64(sc.Size))
		b.Field(6).(*array.Int64Builder).Append(int64(sc.FounderDivisions))
		b.Field(7).(*array.Int64Builder).Append(int64(sc.FoundingModuleSize))
		b.Field(8).(*array.Float64Builder).Append(sc.AvgModuleMutations)
	}
	return b.NewRecord()
}

// WriteCSV writes one record batch as CSV with a header row.
func WriteCSV(w io.Writer, rec arrow.Record) error {
	cw := csv.NewWriter(w, rec.Schema(), csv.WithHeader(true))
	if err := cw.Write(rec); err != nil {
		return fmt.Errorf("export: writing csv: %w", err)
	}
	if err := cw.Flush(); err != nil {
		return fmt.Errorf("export: flushing csv: %w", err)
	}
	return cw.Error()
}

// WriteArrowFile writes one record batch in the Arrow IPC file format.
// The file format is seekable (footer offsets), so w must support Seek.
func WriteArrowFile(w io.WriteSeeker, rec arrow.Record) error {
	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(rec.Schema()))
	if err != nil {
		return fmt.Errorf("export: opening ipc writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return fmt.Errorf("export: writing ipc: %w", err)
	}
	return fw.Close()
}

func writeRecord(path string, format Format, rec arrow.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	defer f.Close()
	if format == FormatArrow {
		return WriteArrowFile(f, rec)
	}
	return WriteCSV(f, rec)
}

// WriteTables writes the modules, vaf and subclones tables of one
// finished run under dir, returning the written file paths.
func WriteTables(dir string, format Format, pop *population.Population, ploidy int) ([]string, error) {
	if !format.Valid() {
		return nil, fmt.Errorf("export: unknown format %q", format)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	alloc := memory.NewGoAllocator()

	records := []struct {
		name string
		rec  arrow.Record
	}{
		{"modules", ModuleRecord(alloc, pop)},
		{"vaf", VAFRecord(alloc, analysis.Frequencies(pop), ploidy)},
		{"subclones", SubcloneRecord(alloc, pop)},
	}
	var paths []string
	for _, r := range records {
		defer r.rec.Release()
		path := filepath.Join(dir, r.name+"."+format.ext())
		if err := writeRecord(path, format, r.rec); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

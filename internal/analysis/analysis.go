// Package analysis derives summary statistics from finished runs:
// variant allele frequency spectra, the 1/f cumulative fit used to test
// for neutral evolution, and descriptive statistics of mutation burden
// and module sizes.
package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"

	"github.com/alexsteininfo/clonesim/internal/population"
)

// DefaultPloidy is the genome copy number dividing cell frequency into
// allele frequency.
const DefaultPloidy = 2

// Frequencies returns the cell frequency of every mutation across the
// population's live cells: carriers / total cells, keyed by mutation id.
func Frequencies(pop *population.Population) map[int]float64 {
	n := pop.NumCells()
	if n == 0 {
		return nil
	}
	counts := make(map[int]int)
	for _, m := range pop.Modules() {
		for i := 0; i < m.Len(); i++ {
			for _, mut := range m.Mutations(i) {
				counts[mut]++
			}
		}
	}
	freqs := make(map[int]float64, len(counts))
	for mut, c := range counts {
		freqs[mut] = float64(c) / float64(n)
	}
	return freqs
}

// Bin is one histogram bin; Lower is its inclusive lower edge.
type Bin struct {
	Lower float64
	Count int
}

// Histogram bins variant allele frequencies (cell frequency / ploidy)
// into bins equal-width bins over (0, 1/ploidy].
func Histogram(freqs map[int]float64, bins, ploidy int) ([]Bin, error) {
	if bins < 1 {
		return nil, fmt.Errorf("analysis: bin count %d, must be at least 1", bins)
	}
	if ploidy < 1 {
		return nil, fmt.Errorf("analysis: ploidy %d, must be at least 1", ploidy)
	}
	width := 1 / float64(ploidy) / float64(bins)
	out := make([]Bin, bins)
	for i := range out {
		out[i].Lower = float64(i) * width
	}
	for _, f := range freqs {
		vaf := f / float64(ploidy)
		idx := int(vaf / width)
		if idx >= bins {
			idx = bins - 1
		}
		out[idx].Count++
	}
	return out, nil
}

// Fit is the result of the 1/f neutrality regression.
type Fit struct {
	// MuPerDivision is the fitted slope: the effective mutation rate per
	// effective population doubling.
	MuPerDivision float64

	// Intercept is the fitted intercept of M(f) against 1/f.
	Intercept float64

	// RSquared measures how well the cumulative spectrum matches the
	// neutral 1/f expectation; 1 is a perfect fit.
	RSquared float64

	// Points is the number of regression points inside the fit range.
	Points int
}

// FitOneOverF regresses the cumulative mutation count M(f) (mutations
// with frequency at least f) against 1/f over the frequency window
// [fmin, fmax]. Under neutral growth M(f) grows linearly in 1/f with
// slope equal to the effective mutation rate.
func FitOneOverF(freqs map[int]float64, fmin, fmax float64) (Fit, error) {
	if fmin <= 0 || fmax <= fmin {
		return Fit{}, fmt.Errorf("analysis: invalid fit window [%g, %g]", fmin, fmax)
	}
	inWindow := make([]float64, 0, len(freqs))
	for _, f := range freqs {
		if f >= fmin && f <= fmax {
			inWindow = append(inWindow, f)
		}
	}
	if len(inWindow) < 2 {
		return Fit{}, fmt.Errorf("analysis: %d mutations in window [%g, %g], need at least 2", len(inWindow), fmin, fmax)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(inWindow)))

	// One regression point per distinct frequency: x = 1/f, y = M(f).
	var xs, ys []float64
	for i, f := range inWindow {
		if i+1 < len(inWindow) && inWindow[i+1] == f {
			continue
		}
		xs = append(xs, 1/f)
		ys = append(ys, float64(i+1))
	}
	if len(xs) < 2 {
		return Fit{}, fmt.Errorf("analysis: all %d mutations share one frequency", len(inWindow))
	}

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	r2 := stat.RSquared(xs, ys, nil, alpha, beta)
	if math.IsNaN(r2) {
		r2 = 0
	}
	return Fit{
		MuPerDivision: beta,
		Intercept:     alpha,
		RSquared:      r2,
		Points:        len(xs),
	}, nil
}

// Summary holds descriptive statistics of one per-cell or per-module
// quantity.
type Summary struct {
	Mean   float64
	Median float64
	StdDev float64
	Min    float64
	Max    float64
	N      int
}

func summarize(data []float64) (Summary, error) {
	if len(data) == 0 {
		return Summary{}, fmt.Errorf("analysis: empty sample")
	}
	d := stats.Float64Data(data)
	mean, err := d.Mean()
	if err != nil {
		return Summary{}, err
	}
	median, err := d.Median()
	if err != nil {
		return Summary{}, err
	}
	sd, err := d.StandardDeviation()
	if err != nil {
		return Summary{}, err
	}
	min, err := d.Min()
	if err != nil {
		return Summary{}, err
	}
	max, err := d.Max()
	if err != nil {
		return Summary{}, err
	}
	return Summary{Mean: mean, Median: median, StdDev: sd, Min: min, Max: max, N: len(data)}, nil
}

// BurdenSummary summarizes the per-cell mutation burden across the
// population's live cells.
func BurdenSummary(pop *population.Population) (Summary, error) {
	var burdens []float64
	for _, m := range pop.Modules() {
		for i := 0; i < m.Len(); i++ {
			burdens = append(burdens, float64(m.MutationCount(i)))
		}
	}
	return summarize(burdens)
}

// ModuleSizeSummary summarizes the module-size distribution.
func ModuleSizeSummary(pop *population.Population) (Summary, error) {
	var sizes []float64
	for _, m := range pop.Modules() {
		sizes = append(sizes, float64(m.Len()))
	}
	return summarize(sizes)
}

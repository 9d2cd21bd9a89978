package analysis

import (
	"math"
	"testing"

	"github.com/alexsteininfo/clonesim/internal/module"
	"github.com/alexsteininfo/clonesim/internal/mutation"
	"github.com/alexsteininfo/clonesim/internal/population"
	"github.com/alexsteininfo/clonesim/internal/rng"
)

// threeCellPopulation builds a deterministic population: the founder
// divides twice with one fixed mutation per offspring, giving genotypes
// {1,3}, {2}, {1,4}.
func threeCellPopulation(t *testing.T) *population.Population {
	t.Helper()
	ids := module.NewIDGenerator()
	src := rng.New(1)
	model := mutation.Model{Kind: mutation.Fixed, Rate: 1}

	m := module.NewFlatFounder(ids.ModuleID(), module.WellMixed, 0)
	for step := 0; step < 2; step++ {
		if err := m.Divide(0, 0, ids, model, src); err != nil {
			t.Fatalf("divide: %v", err)
		}
	}
	pop := population.New(10)
	if err := pop.Insert(m); err != nil {
		t.Fatalf("insert: %v", err)
	}
	return pop
}

func TestFrequencies(t *testing.T) {
	pop := threeCellPopulation(t)
	freqs := Frequencies(pop)

	want := map[int]float64{
		1: 2.0 / 3,
		2: 1.0 / 3,
		3: 1.0 / 3,
		4: 1.0 / 3,
	}
	if len(freqs) != len(want) {
		t.Fatalf("got %d mutations, want %d: %v", len(freqs), len(want), freqs)
	}
	for mut, f := range want {
		if math.Abs(freqs[mut]-f) > 1e-12 {
			t.Errorf("mutation %d frequency = %g, want %g", mut, freqs[mut], f)
		}
	}
}

func TestFrequenciesEmptyPopulation(t *testing.T) {
	if freqs := Frequencies(population.New(5)); freqs != nil {
		t.Errorf("expected nil for empty population, got %v", freqs)
	}
}

func TestHistogram(t *testing.T) {
	pop := threeCellPopulation(t)
	bins, err := Histogram(Frequencies(pop), 4, DefaultPloidy)
	if err != nil {
		t.Fatalf("Histogram: %v", err)
	}
	// VAFs: one at 1/3, three at 1/6; bin width 0.125 over (0, 0.5].
	wantCounts := []int{0, 3, 1, 0}
	for i, b := range bins {
		if b.Count != wantCounts[i] {
			t.Errorf("bin %d count = %d, want %d", i, b.Count, wantCounts[i])
		}
		if want := float64(i) * 0.125; math.Abs(b.Lower-want) > 1e-12 {
			t.Errorf("bin %d lower edge = %g, want %g", i, b.Lower, want)
		}
	}
}

func TestHistogramRejectsBadArguments(t *testing.T) {
	if _, err := Histogram(nil, 0, 2); err == nil {
		t.Error("expected error for zero bins")
	}
	if _, err := Histogram(nil, 10, 0); err == nil {
		t.Error("expected error for zero ploidy")
	}
}

func TestFitOneOverFExactLine(t *testing.T) {
	// Three mutations at each frequency 1/k: the cumulative count at
	// threshold 1/k is 3(k-1), an exact line in 1/f with slope 3.
	freqs := make(map[int]float64)
	id := 0
	for k := 2; k <= 10; k++ {
		for j := 0; j < 3; j++ {
			id++
			freqs[id] = 1 / float64(k)
		}
	}

	fit, err := FitOneOverF(freqs, 0.05, 0.6)
	if err != nil {
		t.Fatalf("FitOneOverF: %v", err)
	}
	if math.Abs(fit.MuPerDivision-3) > 1e-9 {
		t.Errorf("slope = %g, want 3", fit.MuPerDivision)
	}
	if math.Abs(fit.Intercept+3) > 1e-9 {
		t.Errorf("intercept = %g, want -3", fit.Intercept)
	}
	if math.Abs(fit.RSquared-1) > 1e-9 {
		t.Errorf("R² = %g, want 1", fit.RSquared)
	}
	if fit.Points != 9 {
		t.Errorf("points = %d, want 9", fit.Points)
	}
}

func TestFitOneOverFRejections(t *testing.T) {
	freqs := map[int]float64{1: 0.5, 2: 0.25}
	if _, err := FitOneOverF(freqs, 0, 0.5); err == nil {
		t.Error("expected error for zero fmin")
	}
	if _, err := FitOneOverF(freqs, 0.5, 0.1); err == nil {
		t.Error("expected error for inverted window")
	}
	if _, err := FitOneOverF(freqs, 0.9, 0.99); err == nil {
		t.Error("expected error for empty window")
	}
	same := map[int]float64{1: 0.5, 2: 0.5, 3: 0.5}
	if _, err := FitOneOverF(same, 0.1, 0.9); err == nil {
		t.Error("expected error for a single distinct frequency")
	}
}

func TestBurdenSummary(t *testing.T) {
	pop := threeCellPopulation(t)
	s, err := BurdenSummary(pop)
	if err != nil {
		t.Fatalf("BurdenSummary: %v", err)
	}
	// Burdens are 2, 1, 2.
	if math.Abs(s.Mean-5.0/3) > 1e-12 {
		t.Errorf("mean = %g, want %g", s.Mean, 5.0/3)
	}
	if s.Median != 2 || s.Min != 1 || s.Max != 2 || s.N != 3 {
		t.Errorf("summary = %+v", s)
	}
	if math.Abs(s.StdDev-math.Sqrt(2.0/9)) > 1e-9 {
		t.Errorf("stddev = %g, want %g", s.StdDev, math.Sqrt(2.0/9))
	}
}

func TestModuleSizeSummary(t *testing.T) {
	pop := threeCellPopulation(t)
	s, err := ModuleSizeSummary(pop)
	if err != nil {
		t.Fatalf("ModuleSizeSummary: %v", err)
	}
	if s.Mean != 3 || s.N != 1 || s.StdDev != 0 {
		t.Errorf("summary = %+v", s)
	}
}

func TestSummaryEmptySample(t *testing.T) {
	if _, err := BurdenSummary(population.New(5)); err == nil {
		t.Error("expected error for empty population")
	}
}

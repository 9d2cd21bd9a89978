package rng

import "testing"

func TestSameSeedSameStream(t *testing.T) {
	a := New(42)
	b := New(42)
	for i := 0; i < 100; i++ {
		if a.Float64() != b.Float64() {
			t.Fatalf("streams diverged at draw %d", i)
		}
	}
}

func TestExpPositive(t *testing.T) {
	s := New(7)
	for i := 0; i < 1000; i++ {
		if dt := s.Exp(2.5); dt < 0 {
			t.Fatalf("negative waiting time %f", dt)
		}
	}
}

func TestExpMean(t *testing.T) {
	s := New(11)
	const n = 20000
	const rate = 4.0
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += s.Exp(rate)
	}
	mean := sum / n
	if mean < 0.23 || mean > 0.27 {
		t.Errorf("Exp(%v) mean = %f, want around %f", rate, mean, 1/rate)
	}
}

func TestPoissonNonPositiveMean(t *testing.T) {
	s := New(1)
	if got := s.Poisson(0); got != 0 {
		t.Errorf("Poisson(0) = %d, want 0", got)
	}
	if got := s.Poisson(-1); got != 0 {
		t.Errorf("Poisson(-1) = %d, want 0", got)
	}
}

func TestPoissonMean(t *testing.T) {
	s := New(13)
	const n = 20000
	const mean = 3.0
	sum := 0
	for i := 0; i < n; i++ {
		sum += s.Poisson(mean)
	}
	got := float64(sum) / n
	if got < 2.9 || got > 3.1 {
		t.Errorf("Poisson(%v) mean = %f", mean, got)
	}
}

func TestPoissonSameSeedSameStream(t *testing.T) {
	a := New(29)
	b := New(29)
	for i := 0; i < 200; i++ {
		if x, y := a.Poisson(2.0), b.Poisson(2.0); x != y {
			t.Fatalf("Poisson streams diverged at draw %d: %d vs %d", i, x, y)
		}
	}
}

func TestCategoricalSkipsZeroWeights(t *testing.T) {
	s := New(3)
	weights := []float64{0, 2, 0, 1, 0}
	counts := make([]int, len(weights))
	for i := 0; i < 10000; i++ {
		counts[s.Categorical(weights)]++
	}
	if counts[0] != 0 || counts[2] != 0 || counts[4] != 0 {
		t.Errorf("zero-weight index selected: counts = %v", counts)
	}
	// Index 1 should be selected roughly twice as often as index 3.
	ratio := float64(counts[1]) / float64(counts[3])
	if ratio < 1.7 || ratio > 2.3 {
		t.Errorf("selection ratio = %f, want around 2", ratio)
	}
}

func TestCategoricalPanicsOnZeroTotal(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on zero total weight")
		}
	}()
	New(1).Categorical([]float64{0, 0})
}

func TestSampleWithoutReplacementDistinct(t *testing.T) {
	s := New(17)
	for trial := 0; trial < 100; trial++ {
		got := s.SampleWithoutReplacement(10, 10)
		seen := make(map[int]bool, len(got))
		for _, i := range got {
			if i < 0 || i >= 10 {
				t.Fatalf("index %d out of range", i)
			}
			if seen[i] {
				t.Fatalf("index %d drawn twice: %v", i, got)
			}
			seen[i] = true
		}
	}
}

func TestSampleWithoutReplacementSize(t *testing.T) {
	s := New(19)
	if got := s.SampleWithoutReplacement(100, 7); len(got) != 7 {
		t.Errorf("got %d indices, want 7", len(got))
	}
	if got := s.SampleWithoutReplacement(5, 0); len(got) != 0 {
		t.Errorf("got %d indices, want 0", len(got))
	}
}

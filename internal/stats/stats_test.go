package stats_test

import (
	"math"
	"testing"

	"celltide/internal/stats"
)

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestRanksAverageTies(t *testing.T) {
	ranks := stats.Ranks([]float64{3, 1, 1, 2})
	want := []float64{4, 1.5, 1.5, 3}
	for i := range want {
		if ranks[i] != want[i] {
			t.Fatalf("rank[%d] = %v, want %v", i, ranks[i], want[i])
		}
	}
}

func TestSpearmanPerfectMonotone(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	y := []float64{10, 100, 1000, 10000, 100000}
	if rho := stats.SpearmanRho(x, y); !almostEqual(rho, 1, 1e-12) {
		t.Fatalf("expected rho 1, got %v", rho)
	}
	reversed := []float64{5, 4, 3, 2, 1}
	if rho := stats.SpearmanRho(x, reversed); !almostEqual(rho, -1, 1e-12) {
		t.Fatalf("expected rho -1, got %v", rho)
	}
}

func TestSpearmanConstantVectorIsZero(t *testing.T) {
	if rho := stats.SpearmanRho([]float64{1, 1, 1}, []float64{1, 2, 3}); rho != 0 {
		t.Fatalf("expected 0 for constant vector, got %v", rho)
	}
}

func TestMannWhitneySeparatedGroups(t *testing.T) {
	low := []float64{0, 0, 0.1, 0.2, 0, 0.1, 0, 0.3, 0.1, 0}
	high := []float64{4, 5, 4.5, 5.2, 6, 4.8, 5.5, 4.9, 5.1, 6.2}
	p := stats.MannWhitneyU(high, low)
	if p >= 0.01 {
		t.Fatalf("expected small p for separated groups, got %v", p)
	}
	same := stats.MannWhitneyU(low, low)
	if same < 0.9 {
		t.Fatalf("expected p near 1 for identical groups, got %v", same)
	}
}

func TestMannWhitneyEmptyGroup(t *testing.T) {
	if p := stats.MannWhitneyU(nil, []float64{1, 2}); p != 1 {
		t.Fatalf("expected p=1 for empty group, got %v", p)
	}
}

func TestWelchT(t *testing.T) {
	// Clearly separated summary stats.
	p := stats.WelchT(10, 1, 30, 0, 1, 30)
	if p >= 1e-6 {
		t.Fatalf("expected tiny p, got %v", p)
	}
	if p := stats.WelchT(1, 1, 30, 1, 1, 30); p < 0.9 {
		t.Fatalf("expected p near 1 for equal means, got %v", p)
	}
	if p := stats.WelchT(1, 1, 1, 2, 1, 30); p != 1 {
		t.Fatalf("expected p=1 for tiny group, got %v", p)
	}
}

func TestBenjaminiHochberg(t *testing.T) {
	fdr := stats.BenjaminiHochberg([]float64{0.01, 0.04, 0.03, 0.005})
	// Sorted: 0.005, 0.01, 0.03, 0.04 with n=4:
	// raw adjusted: 0.02, 0.02, 0.04, 0.04 (after monotonicity).
	want := map[int]float64{0: 0.02, 1: 0.04, 2: 0.04, 3: 0.02}
	for i, w := range want {
		if !almostEqual(fdr[i], w, 1e-12) {
			t.Fatalf("fdr[%d] = %v, want %v", i, fdr[i], w)
		}
	}
}

func TestBenjaminiHochbergMonotoneAndBounded(t *testing.T) {
	pvals := []float64{0.9, 0.0001, 0.5, 0.02, 0.3}
	fdr := stats.BenjaminiHochberg(pvals)
	for i, f := range fdr {
		if f < pvals[i]-1e-15 {
			t.Fatalf("fdr[%d]=%v below p=%v", i, f, pvals[i])
		}
		if f > 1 {
			t.Fatalf("fdr[%d]=%v above 1", i, f)
		}
	}
}

func TestLog2FC(t *testing.T) {
	if fc := stats.Log2FC(4, 1); !almostEqual(fc, 2, 1e-6) {
		t.Fatalf("expected ~2, got %v", fc)
	}
	if fc := stats.Log2FC(0, 0); fc != 0 {
		t.Fatalf("expected 0 for zero means, got %v", fc)
	}
}

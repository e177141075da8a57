package normalize_test

import (
	"math"
	"testing"

	"celltide/internal/matrix"
	"celltide/internal/normalize"
)

func TestLogNormalizeScalesToDepth(t *testing.T) {
	counts, err := matrix.NewCSC(2, 2, []matrix.Entry{
		{Row: 0, Col: 0, Val: 30},
		{Row: 1, Col: 0, Val: 70},
		{Row: 0, Col: 1, Val: 5},
	})
	if err != nil {
		t.Fatalf("NewCSC failed: %v", err)
	}

	ln := normalize.LogNormalize(counts, 100)
	// Cell 0 depth 100: values stay 30 and 70 before log1p.
	if got, want := ln.At(0, 0), math.Log1p(30); math.Abs(got-want) > 1e-12 {
		t.Fatalf("unexpected normalized value: %v want %v", got, want)
	}
	// Cell 1 depth 5 rescaled to 100.
	if got, want := ln.At(0, 1), math.Log1p(100); math.Abs(got-want) > 1e-12 {
		t.Fatalf("unexpected normalized value: %v want %v", got, want)
	}
	// Sparsity preserved.
	if ln.NNZ() != counts.NNZ() {
		t.Fatalf("normalization changed sparsity: %d vs %d", ln.NNZ(), counts.NNZ())
	}
}

func TestVariableFeaturesRanksDispersedGeneFirst(t *testing.T) {
	// Gene 1 varies wildly across cells; genes 0 and 2 are flat.
	entries := []matrix.Entry{}
	for c := 0; c < 10; c++ {
		entries = append(entries, matrix.Entry{Row: 0, Col: c, Val: 5})
		entries = append(entries, matrix.Entry{Row: 2, Col: c, Val: 5.1})
		if c%2 == 0 {
			entries = append(entries, matrix.Entry{Row: 1, Col: c, Val: 20})
		} else {
			entries = append(entries, matrix.Entry{Row: 1, Col: c, Val: 0.1})
		}
	}
	m, err := matrix.NewCSC(3, 10, entries)
	if err != nil {
		t.Fatalf("NewCSC failed: %v", err)
	}

	ranked := normalize.VariableFeatures(m, 2)
	if len(ranked) == 0 || ranked[0] != 1 {
		t.Fatalf("expected gene 1 ranked first, got %v", ranked)
	}
}

func TestVariableFeaturesDeterministic(t *testing.T) {
	entries := []matrix.Entry{}
	for g := 0; g < 6; g++ {
		for c := 0; c < 8; c++ {
			entries = append(entries, matrix.Entry{Row: g, Col: c, Val: float64((g*7+c*3)%5) + 1})
		}
	}
	m, _ := matrix.NewCSC(6, 8, entries)
	a := normalize.VariableFeatures(m, 3)
	b := normalize.VariableFeatures(m, 3)
	if len(a) != len(b) {
		t.Fatalf("length mismatch: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("ranking not deterministic at %d: %d vs %d", i, a[i], b[i])
		}
	}
}

func TestSelectIntegrationFeaturesPrefersShared(t *testing.T) {
	// Gene 7 is top-ranked in both samples; gene 3 only in one.
	rankings := [][]int{
		{7, 3, 1, 4},
		{7, 5, 2, 4},
	}
	features := normalize.SelectIntegrationFeatures(rankings, 2, 3)
	if len(features) != 3 {
		t.Fatalf("expected 3 features, got %v", features)
	}
	if features[0] != 7 {
		t.Fatalf("expected shared top gene first, got %v", features)
	}
}

func TestSelectIntegrationFeaturesTieBreakByMedianRank(t *testing.T) {
	rankings := [][]int{
		{1, 2, 9, 8},
		{2, 1, 8, 9},
	}
	features := normalize.SelectIntegrationFeatures(rankings, 4, 4)
	// Genes 1 and 2 share median rank 0.5; 8 and 9 share 2.5.
	if features[0] != 1 || features[1] != 2 {
		t.Fatalf("expected genes 1,2 first by median rank, got %v", features)
	}
	if features[2] != 8 || features[3] != 9 {
		t.Fatalf("expected genes 8,9 last, got %v", features)
	}
}

func TestScaleFeaturesZeroMeanUnitVariance(t *testing.T) {
	counts, _ := matrix.NewCSC(2, 4, []matrix.Entry{
		{Row: 0, Col: 0, Val: 1},
		{Row: 0, Col: 1, Val: 2},
		{Row: 0, Col: 2, Val: 3},
		{Row: 0, Col: 3, Val: 4},
	})
	scaled := normalize.ScaleFeatures(counts, []int{0}, 0)
	var sum float64
	for c := 0; c < 4; c++ {
		sum += scaled.At(0, c)
	}
	if math.Abs(sum) > 1e-9 {
		t.Fatalf("scaled row mean not zero: %v", sum)
	}

	var ss float64
	for c := 0; c < 4; c++ {
		ss += scaled.At(0, c) * scaled.At(0, c)
	}
	if math.Abs(ss/3-1) > 1e-9 {
		t.Fatalf("scaled row variance not one: %v", ss/3)
	}
}

func TestScaleFeaturesClips(t *testing.T) {
	entries := []matrix.Entry{{Row: 0, Col: 0, Val: 1000}}
	for c := 1; c < 20; c++ {
		entries = append(entries, matrix.Entry{Row: 0, Col: c, Val: 1})
	}
	counts, _ := matrix.NewCSC(1, 20, entries)
	scaled := normalize.ScaleFeatures(counts, []int{0}, 2)
	if got := scaled.At(0, 0); got != 2 {
		t.Fatalf("expected clipped value 2, got %v", got)
	}
}

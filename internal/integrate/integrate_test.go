package integrate_test

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"celltide/internal/integrate"
	"celltide/internal/matrix"
)

// batchPair builds two samples with the same two cell populations,
// where every query cell carries a constant batch offset.
func batchPair(perType int, seed int64) (ref, query *matrix.Dense) {
	rng := rand.New(rand.NewSource(seed))
	features := 5
	base := [][]float64{
		{5, 0, 0, 0, 0},
		{0, 5, 0, 0, 0},
	}
	offset := []float64{1, 1, 1, 1, 1}

	build := func(shift []float64) *matrix.Dense {
		m := matrix.NewDense(features, 2*perType)
		for c := 0; c < 2*perType; c++ {
			u := base[c/perType]
			for r := 0; r < features; r++ {
				v := u[r] + rng.NormFloat64()*0.1
				if shift != nil {
					v += shift[r]
				}
				m.Set(r, c, v)
			}
		}
		return m
	}
	return build(nil), build(offset)
}

func params() integrate.Params {
	return integrate.Params{Dims: 3, KAnchor: 5, KScore: 10, KWeight: 10, MinScore: 0}
}

func TestIntegratePreservesCellsAndReference(t *testing.T) {
	ref, query := batchPair(15, 1)
	res, err := integrate.Integrate(ref, query, params(), 42)
	if err != nil {
		t.Fatalf("Integrate failed: %v", err)
	}
	if res.Corrected.Rows != ref.Rows || res.Corrected.Cols != ref.Cols+query.Cols {
		t.Fatalf("unexpected corrected dims %dx%d", res.Corrected.Rows, res.Corrected.Cols)
	}
	for c := 0; c < ref.Cols; c++ {
		for r := 0; r < ref.Rows; r++ {
			if res.Corrected.At(r, c) != ref.At(r, c) {
				t.Fatalf("reference cell %d modified", c)
			}
		}
	}
	if len(res.Anchors) == 0 {
		t.Fatal("expected anchors between matching populations")
	}
}

func TestIntegrateReducesBatchOffset(t *testing.T) {
	perType := 15
	ref, query := batchPair(perType, 2)
	res, err := integrate.Integrate(ref, query, params(), 42)
	if err != nil {
		t.Fatalf("Integrate failed: %v", err)
	}
	before := typeGap(ref, query, 0, perType)
	after := typeGap(ref, correctedQuery(res.Corrected, ref.Cols), 0, perType)
	if after >= before {
		t.Fatalf("batch offset not reduced: before %v after %v", before, after)
	}
	before = typeGap(ref, query, perType, perType)
	after = typeGap(ref, correctedQuery(res.Corrected, ref.Cols), perType, perType)
	if after >= before {
		t.Fatalf("second population offset not reduced: before %v after %v", before, after)
	}
}

func TestIntegrateAnchorsMatchPopulations(t *testing.T) {
	perType := 15
	ref, query := batchPair(perType, 3)
	res, err := integrate.Integrate(ref, query, params(), 42)
	if err != nil {
		t.Fatalf("Integrate failed: %v", err)
	}
	for _, a := range res.Anchors {
		if (a.RefCell < perType) != (a.QueryCell < perType) {
			t.Fatalf("anchor crosses populations: ref %d query %d", a.RefCell, a.QueryCell)
		}
		if a.Score < 0 || a.Score > 1 {
			t.Fatalf("anchor score out of range: %v", a.Score)
		}
	}
}

func TestIntegrateNoAnchors(t *testing.T) {
	ref, query := batchPair(10, 4)
	p := params()
	p.MinScore = 1.1 // impossible threshold
	_, err := integrate.Integrate(ref, query, p, 42)
	if !errors.Is(err, integrate.ErrNoAnchors) {
		t.Fatalf("expected ErrNoAnchors, got %v", err)
	}
}

func TestIntegrateRejectsMismatchedFeatures(t *testing.T) {
	ref := matrix.NewDense(4, 10)
	query := matrix.NewDense(5, 10)
	if _, err := integrate.Integrate(ref, query, params(), 42); err == nil {
		t.Fatal("expected feature mismatch error")
	}
}

// typeGap measures the distance between the mean expression of one
// population in the reference and in the query.
func typeGap(ref, query *matrix.Dense, start, count int) float64 {
	var gap float64
	for r := 0; r < ref.Rows; r++ {
		var a, b float64
		for c := start; c < start+count; c++ {
			a += ref.At(r, c)
			b += query.At(r, c)
		}
		d := a/float64(count) - b/float64(count)
		gap += d * d
	}
	return math.Sqrt(gap)
}

func correctedQuery(corrected *matrix.Dense, refCols int) *matrix.Dense {
	cols := make([]int, corrected.Cols-refCols)
	for i := range cols {
		cols[i] = refCols + i
	}
	return corrected.SelectColumnsDense(cols)
}

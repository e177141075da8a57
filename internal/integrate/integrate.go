package integrate

import (
	"errors"
	"fmt"
	"sort"

	"celltide/internal/matrix"
	"celltide/internal/reduce"
)

// ErrNoAnchors reports that no anchor pair survived scoring, so the
// samples cannot be aligned.
var ErrNoAnchors = errors.New("integrate: no anchors found between samples")

// Params control anchor detection and correction.
type Params struct {
	Dims     int     // joint PC space dimensionality
	KAnchor  int     // cross-sample neighbors considered for anchors
	KScore   int     // neighborhood size for anchor scoring
	KWeight  int     // anchors weighted per query cell
	MinScore float64 // anchors below this score are discarded
}

// Anchor is a scored correspondence between a reference cell and a
// query cell. Indices are local to their sample's scaled matrix.
type Anchor struct {
	RefCell   int
	QueryCell int
	Score     float64
}

// Result holds the corrected expression matrix for both samples,
// reference columns first, and the anchors that produced it.
type Result struct {
	Corrected *matrix.Dense
	Anchors   []Anchor
}

// Integrate corrects the query sample toward the reference. Both
// inputs are features-by-cells matrices over the same integration
// features. Reference cells pass through unchanged.
func Integrate(ref, query *matrix.Dense, p Params, seed int64) (*Result, error) {
	if ref == nil || query == nil {
		return nil, errors.New("integrate: nil expression matrix")
	}
	if ref.Rows != query.Rows {
		return nil, fmt.Errorf("integrate: feature mismatch %d vs %d", ref.Rows, query.Rows)
	}
	if ref.Cols == 0 || query.Cols == 0 {
		return nil, errors.New("integrate: empty sample")
	}

	joint, err := matrix.HStackDense(ref, query)
	if err != nil {
		return nil, fmt.Errorf("integrate: %w", err)
	}
	dims := p.Dims
	if dims > joint.Cols {
		dims = joint.Cols
	}
	pca, err := reduce.PCA(joint, dims, seed)
	if err != nil {
		return nil, fmt.Errorf("integrate: joint reduction: %w", err)
	}
	coords, err := pca.CellCoordinates(dims)
	if err != nil {
		return nil, err
	}
	refCoords := coords[:ref.Cols]
	queryCoords := coords[ref.Cols:]

	anchors := findAnchors(refCoords, queryCoords, p.KAnchor)
	anchors = scoreAnchors(anchors, coords, ref.Cols, p.KScore)

	kept := anchors[:0]
	for _, a := range anchors {
		if a.Score >= p.MinScore {
			kept = append(kept, a)
		}
	}
	if len(kept) == 0 {
		return nil, ErrNoAnchors
	}

	corrected := correct(ref, query, queryCoords, refCoords, kept, p.KWeight)
	return &Result{Corrected: corrected, Anchors: kept}, nil
}

// findAnchors returns mutual nearest neighbor pairs across the two
// coordinate sets.
func findAnchors(ref, query [][]float64, k int) []Anchor {
	refToQuery := nearestCross(ref, query, k)
	queryToRef := nearestCross(query, ref, k)

	var anchors []Anchor
	for r, qs := range refToQuery {
		for _, q := range qs {
			for _, back := range queryToRef[q] {
				if back == r {
					anchors = append(anchors, Anchor{RefCell: r, QueryCell: q})
					break
				}
			}
		}
	}
	sort.Slice(anchors, func(i, j int) bool {
		if anchors[i].RefCell != anchors[j].RefCell {
			return anchors[i].RefCell < anchors[j].RefCell
		}
		return anchors[i].QueryCell < anchors[j].QueryCell
	})
	return anchors
}

// scoreAnchors rates each anchor by the Jaccard overlap of the two
// cells' neighborhoods in the joint space. Consistent anchors sit in
// matching neighborhoods on both sides of the batch.
func scoreAnchors(anchors []Anchor, joint [][]float64, refCount, kScore int) []Anchor {
	if len(anchors) == 0 {
		return anchors
	}
	if kScore > len(joint)-1 {
		kScore = len(joint) - 1
	}
	needed := map[int]struct{}{}
	for _, a := range anchors {
		needed[a.RefCell] = struct{}{}
		needed[a.QueryCell+refCount] = struct{}{}
	}
	hoods := map[int]map[int]struct{}{}
	for i := range needed {
		hoods[i] = neighborhood(joint, i, kScore)
	}
	for idx := range anchors {
		a := hoods[anchors[idx].RefCell]
		b := hoods[anchors[idx].QueryCell+refCount]
		inter := 0
		for j := range a {
			if _, ok := b[j]; ok {
				inter++
			}
		}
		union := len(a) + len(b) - inter
		if union > 0 {
			anchors[idx].Score = float64(inter) / float64(union)
		}
	}
	return anchors
}

func neighborhood(points [][]float64, i, k int) map[int]struct{} {
	type cand struct {
		idx  int
		dist float64
	}
	cands := make([]cand, 0, len(points)-1)
	for j := range points {
		if j == i {
			continue
		}
		cands = append(cands, cand{idx: j, dist: sqDist(points[i], points[j])})
	}
	sort.Slice(cands, func(a, b int) bool {
		if cands[a].dist != cands[b].dist {
			return cands[a].dist < cands[b].dist
		}
		return cands[a].idx < cands[b].idx
	})
	out := make(map[int]struct{}, k+1)
	out[i] = struct{}{}
	for j := 0; j < k && j < len(cands); j++ {
		out[cands[j].idx] = struct{}{}
	}
	return out
}

// correct shifts each query cell by a weighted average of anchor
// difference vectors. Anchor weights decay with distance rank and
// scale with anchor score.
func correct(ref, query *matrix.Dense, queryCoords, refCoords [][]float64, anchors []Anchor, kWeight int) *matrix.Dense {
	features := ref.Rows
	out := matrix.NewDense(features, ref.Cols+query.Cols)
	for c := 0; c < ref.Cols; c++ {
		col := ref.Col(c)
		for r := 0; r < features; r++ {
			out.Set(r, c, col[r])
		}
	}

	if kWeight > len(anchors) {
		kWeight = len(anchors)
	}

	// Difference vector per anchor: reference minus query expression.
	deltas := make([][]float64, len(anchors))
	for i, a := range anchors {
		d := make([]float64, features)
		rc := ref.Col(a.RefCell)
		qc := query.Col(a.QueryCell)
		for r := 0; r < features; r++ {
			d[r] = rc[r] - qc[r]
		}
		deltas[i] = d
	}

	type ranked struct {
		anchor int
		dist   float64
	}
	shift := make([]float64, features)
	for c := 0; c < query.Cols; c++ {
		cands := make([]ranked, len(anchors))
		for i, a := range anchors {
			cands[i] = ranked{anchor: i, dist: sqDist(queryCoords[c], queryCoords[a.QueryCell])}
		}
		sort.Slice(cands, func(a, b int) bool {
			if cands[a].dist != cands[b].dist {
				return cands[a].dist < cands[b].dist
			}
			return cands[a].anchor < cands[b].anchor
		})

		for r := range shift {
			shift[r] = 0
		}
		var totalWeight float64
		for rank := 0; rank < kWeight; rank++ {
			a := cands[rank].anchor
			w := anchors[a].Score * (1 - float64(rank)/float64(kWeight))
			if w <= 0 {
				continue
			}
			totalWeight += w
			for r, d := range deltas[a] {
				shift[r] += w * d
			}
		}
		col := query.Col(c)
		for r := 0; r < features; r++ {
			v := col[r]
			if totalWeight > 0 {
				v += shift[r] / totalWeight
			}
			out.Set(r, ref.Cols+c, v)
		}
	}
	return out
}

func sqDist(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// nearestCross returns, for each point in from, the indices of its k
// nearest points in to, ties broken by index.
func nearestCross(from, to [][]float64, k int) [][]int {
	if k > len(to) {
		k = len(to)
	}
	type cand struct {
		idx  int
		dist float64
	}
	out := make([][]int, len(from))
	cands := make([]cand, len(to))
	for i := range from {
		for j := range to {
			cands[j] = cand{idx: j, dist: sqDist(from[i], to[j])}
		}
		sort.Slice(cands, func(a, b int) bool {
			if cands[a].dist != cands[b].dist {
				return cands[a].dist < cands[b].dist
			}
			return cands[a].idx < cands[b].idx
		})
		nbrs := make([]int, k)
		for j := 0; j < k; j++ {
			nbrs[j] = cands[j].idx
		}
		out[i] = nbrs
	}
	return out
}

package graph

import (
	"math"
	"sort"
)

// KNN returns, for each point, the indices of its k nearest neighbors
// by Euclidean distance (self excluded), closest first. Ties break by
// index so the result is deterministic. Exact brute-force search: the
// pipeline runs once per experiment and exactness keeps downstream
// clustering reproducible.
func KNN(points [][]float64, k int) [][]int {
	n := len(points)
	if k >= n {
		k = n - 1
	}
	if k < 1 {
		out := make([][]int, n)
		for i := range out {
			out[i] = []int{}
		}
		return out
	}

	type cand struct {
		idx  int
		dist float64
	}
	out := make([][]int, n)
	cands := make([]cand, 0, n-1)
	for i := 0; i < n; i++ {
		cands = cands[:0]
		for j := 0; j < n; j++ {
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
		neighbors := make([]int, k)
		for j := 0; j < k; j++ {
			neighbors[j] = cands[j].idx
		}
		out[i] = neighbors
	}
	return out
}

// HeuristicNeighbors returns the default neighbor count for n cells:
// sqrt(n) clamped to a sane floor.
func HeuristicNeighbors(n int) int {
	k := int(math.Round(math.Sqrt(float64(n))))
	if k < 5 {
		k = 5
	}
	if k >= n {
		k = n - 1
	}
	return k
}

func sqDist(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

package graph

import "sort"

// Edge is an undirected weighted edge between two cells (A < B).
type Edge struct {
	A, B   int
	Weight float64
}

// SNN derives the shared-nearest-neighbor graph from a kNN result.
// Each cell's neighborhood includes itself; the edge weight between two
// cells is the Jaccard overlap of their neighborhoods. Edges at or
// below the prune threshold are dropped.
func SNN(neighbors [][]int, prune float64) []Edge {
	n := len(neighbors)
	sets := make([]map[int]struct{}, n)
	for i, nbrs := range neighbors {
		set := make(map[int]struct{}, len(nbrs)+1)
		set[i] = struct{}{}
		for _, j := range nbrs {
			set[j] = struct{}{}
		}
		sets[i] = set
	}

	// Only pairs sharing at least one neighborhood member can have a
	// nonzero weight; collect candidates via an inverted index.
	members := make([][]int, n)
	for i, set := range sets {
		for j := range set {
			members[j] = append(members[j], i)
		}
	}
	candidates := map[[2]int]struct{}{}
	for _, cells := range members {
		for x := 0; x < len(cells); x++ {
			for y := x + 1; y < len(cells); y++ {
				a, b := cells[x], cells[y]
				if a > b {
					a, b = b, a
				}
				candidates[[2]int{a, b}] = struct{}{}
			}
		}
	}

	var edges []Edge
	for pair := range candidates {
		a, b := pair[0], pair[1]
		inter := 0
		for j := range sets[a] {
			if _, ok := sets[b][j]; ok {
				inter++
			}
		}
		if inter == 0 {
			continue
		}
		union := len(sets[a]) + len(sets[b]) - inter
		w := float64(inter) / float64(union)
		if w > prune {
			edges = append(edges, Edge{A: a, B: b, Weight: w})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].A != edges[j].A {
			return edges[i].A < edges[j].A
		}
		return edges[i].B < edges[j].B
	})
	return edges
}

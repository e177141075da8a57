package graph

import "sort"

// TreeLevel is one resolution's partition within a cluster tree.
type TreeLevel struct {
	Resolution float64
	Sizes      []int // cells per cluster, indexed by cluster id
}

// TreeEdge links a cluster at one level to a cluster at the next,
// weighted by the number of shared cells.
type TreeEdge struct {
	Level       int // index of the upper (lower-resolution) level
	FromCluster int
	ToCluster   int
	Overlap     int
}

// Tree records how clusters split as resolution increases. Every
// cluster at level l+1 has exactly one incoming edge from the level-l
// cluster contributing most of its cells.
type Tree struct {
	Levels []TreeLevel
	Edges  []TreeEdge
}

// BuildTree runs Louvain at each of the given resolutions over the same
// graph and links consecutive partitions by maximum cell overlap.
// Resolutions are sorted ascending before clustering.
func BuildTree(n int, edges []Edge, resolutions []float64, seed int64) *Tree {
	sorted := append([]float64(nil), resolutions...)
	sort.Float64s(sorted)

	tree := &Tree{}
	var prev []int
	for li, res := range sorted {
		assign := Louvain(n, edges, res, seed)
		tree.Levels = append(tree.Levels, TreeLevel{
			Resolution: res,
			Sizes:      clusterSizes(assign),
		})
		if li > 0 {
			tree.Edges = append(tree.Edges, linkLevels(prev, assign, li-1)...)
		}
		prev = assign
	}
	return tree
}

// linkLevels assigns each cluster in the finer partition a single
// parent: the coarse cluster providing the most of its cells, ties
// broken by lower coarse cluster id.
func linkLevels(coarse, fine []int, level int) []TreeEdge {
	overlap := map[[2]int]int{}
	nFine := 0
	for i := range fine {
		overlap[[2]int{coarse[i], fine[i]}]++
		if fine[i]+1 > nFine {
			nFine = fine[i] + 1
		}
	}
	var out []TreeEdge
	for f := 0; f < nFine; f++ {
		bestParent, bestOverlap := -1, 0
		for pair, count := range overlap {
			if pair[1] != f {
				continue
			}
			if count > bestOverlap || (count == bestOverlap && pair[0] < bestParent) {
				bestParent = pair[0]
				bestOverlap = count
			}
		}
		if bestParent >= 0 {
			out = append(out, TreeEdge{
				Level:       level,
				FromCluster: bestParent,
				ToCluster:   f,
				Overlap:     bestOverlap,
			})
		}
	}
	return out
}

func clusterSizes(assignment []int) []int {
	nComm := 0
	for _, c := range assignment {
		if c+1 > nComm {
			nComm = c + 1
		}
	}
	sizes := make([]int, nComm)
	for _, c := range assignment {
		sizes[c]++
	}
	return sizes
}

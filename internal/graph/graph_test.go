package graph_test

import (
	"math/rand"
	"testing"

	"celltide/internal/graph"
)

// blobs places two well separated point clouds of the given sizes.
func blobs(sizeA, sizeB int, seed int64) [][]float64 {
	rng := rand.New(rand.NewSource(seed))
	points := make([][]float64, 0, sizeA+sizeB)
	for i := 0; i < sizeA; i++ {
		points = append(points, []float64{rng.NormFloat64() * 0.5, rng.NormFloat64() * 0.5})
	}
	for i := 0; i < sizeB; i++ {
		points = append(points, []float64{20 + rng.NormFloat64()*0.5, 20 + rng.NormFloat64()*0.5})
	}
	return points
}

func TestKNNStaysWithinBlob(t *testing.T) {
	points := blobs(15, 15, 1)
	neighbors := graph.KNN(points, 5)
	if len(neighbors) != 30 {
		t.Fatalf("expected 30 neighbor lists, got %d", len(neighbors))
	}
	for i, nbrs := range neighbors {
		if len(nbrs) != 5 {
			t.Fatalf("cell %d has %d neighbors", i, len(nbrs))
		}
		for _, j := range nbrs {
			if j == i {
				t.Fatalf("cell %d listed as its own neighbor", i)
			}
			if (i < 15) != (j < 15) {
				t.Fatalf("cell %d crossed blobs to %d", i, j)
			}
		}
	}
}

func TestKNNDeterministicTies(t *testing.T) {
	// Four equidistant points around the origin force distance ties.
	points := [][]float64{{0, 0}, {1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	a := graph.KNN(points, 2)
	b := graph.KNN(points, 2)
	for i := range a {
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				t.Fatal("KNN not deterministic under ties")
			}
		}
	}
	// All four satellites tie at distance 1 from the center; the two
	// lowest indices win.
	if a[0][0] != 1 || a[0][1] != 2 {
		t.Fatalf("tie break not by index: %v", a[0])
	}
}

func TestKNNSmallInputs(t *testing.T) {
	points := [][]float64{{0, 0}, {1, 1}}
	neighbors := graph.KNN(points, 10)
	if len(neighbors[0]) != 1 || neighbors[0][0] != 1 {
		t.Fatalf("k clamp failed: %v", neighbors[0])
	}
	single := graph.KNN([][]float64{{0, 0}}, 3)
	if len(single[0]) != 0 {
		t.Fatalf("single point should have no neighbors: %v", single[0])
	}
}

func TestSNNJaccardWeights(t *testing.T) {
	// Cells 0 and 1 are mutual neighbors sharing cell 2; neighborhoods
	// including self are {0,1,2} and {1,0,2}, identical, so weight 1.
	neighbors := [][]int{{1, 2}, {0, 2}, {0, 1}}
	edges := graph.SNN(neighbors, 0)
	if len(edges) != 3 {
		t.Fatalf("expected 3 edges, got %d", len(edges))
	}
	for _, e := range edges {
		if e.Weight != 1 {
			t.Fatalf("edge %d-%d weight %v, want 1", e.A, e.B, e.Weight)
		}
		if e.A >= e.B {
			t.Fatalf("edge not ordered: %d-%d", e.A, e.B)
		}
	}
}

func TestSNNPrunesWeakEdges(t *testing.T) {
	points := blobs(12, 12, 2)
	neighbors := graph.KNN(points, 4)
	edges := graph.SNN(neighbors, 1.0/15)
	if len(edges) == 0 {
		t.Fatal("expected edges within blobs")
	}
	for _, e := range edges {
		if e.Weight <= 1.0/15 {
			t.Fatalf("edge %d-%d weight %v at or below prune threshold", e.A, e.B, e.Weight)
		}
		if (e.A < 12) != (e.B < 12) {
			t.Fatalf("pruning kept a cross-blob edge %d-%d", e.A, e.B)
		}
	}
}

func TestLouvainSeparatesBlobs(t *testing.T) {
	points := blobs(20, 12, 3)
	neighbors := graph.KNN(points, 10)
	edges := graph.SNN(neighbors, 1.0/15)
	assign := graph.Louvain(32, edges, 0.8, 42)
	if len(assign) != 32 {
		t.Fatalf("expected 32 assignments, got %d", len(assign))
	}
	// Every cell in a blob shares its blob's cluster.
	for i := 1; i < 20; i++ {
		if assign[i] != assign[0] {
			t.Fatalf("blob A split: cell %d in %d, cell 0 in %d", i, assign[i], assign[0])
		}
	}
	for i := 21; i < 32; i++ {
		if assign[i] != assign[20] {
			t.Fatalf("blob B split: cell %d in %d, cell 20 in %d", i, assign[i], assign[20])
		}
	}
	if assign[0] == assign[20] {
		t.Fatal("blobs merged into one cluster")
	}
	// The larger blob must be cluster 0.
	if assign[0] != 0 || assign[20] != 1 {
		t.Fatalf("clusters not renumbered by size: %d, %d", assign[0], assign[20])
	}
}

func TestLouvainDeterministicForSeed(t *testing.T) {
	points := blobs(25, 25, 4)
	neighbors := graph.KNN(points, 7)
	edges := graph.SNN(neighbors, 1.0/15)
	a := graph.Louvain(50, edges, 1.0, 7)
	b := graph.Louvain(50, edges, 1.0, 7)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Louvain not deterministic at cell %d", i)
		}
	}
}

func TestLouvainIsolatedNodes(t *testing.T) {
	assign := graph.Louvain(4, nil, 1.0, 1)
	if len(assign) != 4 {
		t.Fatalf("expected 4 assignments, got %d", len(assign))
	}
	for i, c := range assign {
		if c < 0 || c > 3 {
			t.Fatalf("cell %d assigned out-of-range cluster %d", i, c)
		}
	}
}

func TestModularityPrefersTruePartition(t *testing.T) {
	points := blobs(15, 15, 5)
	neighbors := graph.KNN(points, 5)
	edges := graph.SNN(neighbors, 1.0/15)

	good := make([]int, 30)
	for i := 15; i < 30; i++ {
		good[i] = 1
	}
	all := make([]int, 30) // everything in one community
	qGood := graph.Modularity(30, edges, good, 1.0)
	qAll := graph.Modularity(30, edges, all, 1.0)
	if qGood <= qAll {
		t.Fatalf("true partition not preferred: %v <= %v", qGood, qAll)
	}
}

func TestBuildTreeLinksLevels(t *testing.T) {
	points := blobs(20, 20, 6)
	neighbors := graph.KNN(points, 6)
	edges := graph.SNN(neighbors, 1.0/15)
	tree := graph.BuildTree(40, edges, []float64{1.2, 0.4}, 42)
	if len(tree.Levels) != 2 {
		t.Fatalf("expected 2 levels, got %d", len(tree.Levels))
	}
	if tree.Levels[0].Resolution != 0.4 || tree.Levels[1].Resolution != 1.2 {
		t.Fatalf("levels not sorted by resolution: %v, %v",
			tree.Levels[0].Resolution, tree.Levels[1].Resolution)
	}
	// Each fine cluster has exactly one parent edge.
	seen := map[int]bool{}
	for _, e := range tree.Edges {
		if e.Level != 0 {
			t.Fatalf("unexpected edge level %d", e.Level)
		}
		if seen[e.ToCluster] {
			t.Fatalf("cluster %d has two parents", e.ToCluster)
		}
		seen[e.ToCluster] = true
		if e.Overlap <= 0 {
			t.Fatalf("edge with nonpositive overlap: %+v", e)
		}
	}
	if len(seen) != len(tree.Levels[1].Sizes) {
		t.Fatalf("edges cover %d of %d fine clusters", len(seen), len(tree.Levels[1].Sizes))
	}
}

func TestHeuristicNeighbors(t *testing.T) {
	if k := graph.HeuristicNeighbors(100); k != 10 {
		t.Fatalf("expected 10 for 100 cells, got %d", k)
	}
	if k := graph.HeuristicNeighbors(4); k != 3 {
		t.Fatalf("expected clamp below n, got %d", k)
	}
}

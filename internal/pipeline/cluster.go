package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"celltide/internal/graph"
	"celltide/internal/logging"
	"celltide/internal/reduce"
)

// layoutIterations is how long the force-directed embedding runs; the
// layout is seeded and initialized from PCs, so it converges quickly.
const layoutIterations = 120

// reduceStage projects the corrected expression matrix onto its
// leading principal components.
type reduceStage struct{}

func (s *reduceStage) Name() string { return StageReduce }

func (s *reduceStage) Prepare(ctx context.Context, st *State) error {
	if st.Data == nil || st.Data.Corrected == nil {
		return errors.New("reduce: no corrected matrix")
	}
	return nil
}

func (s *reduceStage) Execute(ctx context.Context, st *State) error {
	dims := st.Cfg.Integrate.Dims
	res, err := reduce.PCA(st.Data.Corrected, dims, st.Cfg.Cluster.Seed)
	if err != nil {
		return err
	}
	st.Data.PCs = res.Scores
	st.Data.VarExplained = res.VarExplained

	path := filepath.Join(st.Cfg.Paths.OutputDir, "variance_explained.tsv")
	if err := writeVarianceTSV(path, res.VarExplained); err != nil {
		return err
	}
	if err := st.RecordArtifact(ctx, StageReduce, "variance_explained", path); err != nil {
		return err
	}

	var captured float64
	for _, v := range res.VarExplained {
		captured += v
	}
	st.Log.Info("reduction finished",
		logging.Int("components", res.Scores.Rows),
		logging.Float64("variance_captured", captured))
	return nil
}

// writeVarianceTSV exports the per-component variance curve so the
// dimensionality choice can be audited against the elbow.
func writeVarianceTSV(path string, varExplained []float64) error {
	var b strings.Builder
	b.WriteString("component\tvariance_explained\tcumulative\n")
	cumulative := 0.0
	for i, v := range varExplained {
		cumulative += v
		fmt.Fprintf(&b, "%d\t%g\t%g\n", i+1, v, cumulative)
	}
	return writeOutput(path, b.String())
}

// clusterStage builds the SNN graph in PC space, partitions it with
// Louvain at the configured resolution, keeps alternate resolutions
// for the cluster tree, and computes the 2-D embedding.
type clusterStage struct{}

func (s *clusterStage) Name() string { return StageCluster }

func (s *clusterStage) Prepare(ctx context.Context, st *State) error {
	if st.Data == nil || st.Data.PCs == nil {
		return errors.New("cluster: no principal components")
	}
	if st.Cfg.Cluster.Dims > st.Data.PCs.Rows {
		return fmt.Errorf("cluster: %d dims requested, only %d components available",
			st.Cfg.Cluster.Dims, st.Data.PCs.Rows)
	}
	return nil
}

func (s *clusterStage) Execute(ctx context.Context, st *State) error {
	cfg := st.Cfg.Cluster
	res := reduce.PCAResult{Scores: st.Data.PCs, VarExplained: st.Data.VarExplained}
	coords, err := res.CellCoordinates(cfg.Dims)
	if err != nil {
		return err
	}

	k := cfg.Neighbors
	if k <= 0 {
		k = graph.HeuristicNeighbors(len(coords))
	}
	neighbors := graph.KNN(coords, k)
	edges := graph.SNN(neighbors, cfg.SNNPrune)
	if len(edges) == 0 {
		return errors.New("cluster: snn graph has no edges; prune threshold too aggressive")
	}

	n := st.Data.NCells()
	assign := graph.Louvain(n, edges, cfg.Resolution, cfg.Seed)
	name := clusteringName(cfg.Resolution)
	if err := st.Data.SetClustering(name, assign); err != nil {
		return err
	}
	st.Data.Active = name

	q := graph.Modularity(n, edges, assign, cfg.Resolution)
	st.Log.Info("clustering finished",
		logging.String("assignment", name),
		logging.Int("neighbors", k),
		logging.Int("clusters", clusterCount(assign)),
		logging.Float64("modularity", q))

	// Alternate resolutions feed the cluster tree inspection; each is
	// retained under its own name so the chosen one never clobbers
	// them.
	if len(cfg.TreeResolutions) > 0 {
		resolutions := append([]float64(nil), cfg.TreeResolutions...)
		if !containsResolution(resolutions, cfg.Resolution) {
			resolutions = append(resolutions, cfg.Resolution)
		}

		var modularity strings.Builder
		modularity.WriteString("resolution\tclusters\tmodularity\n")
		for _, r := range resolutions {
			alt := assign
			if r != cfg.Resolution {
				alt = graph.Louvain(n, edges, r, cfg.Seed)
				if err := st.Data.SetClustering(clusteringName(r), alt); err != nil {
					return err
				}
			}
			fmt.Fprintf(&modularity, "%g\t%d\t%g\n",
				r, clusterCount(alt), graph.Modularity(n, edges, alt, r))
		}

		modPath := filepath.Join(st.Cfg.Paths.OutputDir, "modularity.tsv")
		if err := writeOutput(modPath, modularity.String()); err != nil {
			return err
		}
		if err := st.RecordArtifact(ctx, StageCluster, "modularity", modPath); err != nil {
			return err
		}

		tree := graph.BuildTree(n, edges, resolutions, cfg.Seed)
		path := filepath.Join(st.Cfg.Paths.OutputDir, "cluster_tree.tsv")
		if err := writeTreeTSV(path, tree); err != nil {
			return err
		}
		if err := st.RecordArtifact(ctx, StageCluster, "cluster_tree", path); err != nil {
			return err
		}
	}

	st.Data.Embedding = reduce.ForceLayout(n, layoutEdges(edges), st.Data.PCs, cfg.Seed, layoutIterations)
	return nil
}

func layoutEdges(edges []graph.Edge) []reduce.LayoutEdge {
	out := make([]reduce.LayoutEdge, len(edges))
	for i, e := range edges {
		out[i] = reduce.LayoutEdge{A: e.A, B: e.B, Weight: e.Weight}
	}
	return out
}

func containsResolution(resolutions []float64, r float64) bool {
	for _, v := range resolutions {
		if v == r {
			return true
		}
	}
	return false
}

func clusteringName(resolution float64) string {
	return "res" + strconv.FormatFloat(resolution, 'g', -1, 64)
}

func clusterCount(assign []int) int {
	max := -1
	for _, c := range assign {
		if c > max {
			max = c
		}
	}
	return max + 1
}

// writeTreeTSV flattens the cluster tree into one table for manual
// resolution selection: every cluster at every resolution with its
// size and the coarser cluster it descends from.
func writeTreeTSV(path string, tree *graph.Tree) error {
	var b strings.Builder
	b.WriteString("resolution\tcluster\tsize\tparent\toverlap\n")
	for li, level := range tree.Levels {
		parents := map[int]graph.TreeEdge{}
		for _, e := range tree.Edges {
			if e.Level == li-1 {
				parents[e.ToCluster] = e
			}
		}
		for c, size := range level.Sizes {
			parent, overlap := "", ""
			if e, ok := parents[c]; ok {
				parent = strconv.Itoa(e.FromCluster)
				overlap = strconv.Itoa(e.Overlap)
			}
			fmt.Fprintf(&b, "%g\t%d\t%d\t%s\t%s\n", level.Resolution, c, size, parent, overlap)
		}
	}
	return writeOutput(path, b.String())
}

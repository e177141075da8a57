package annotate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"celltide/internal/dataset"
	"celltide/internal/logging"
	"celltide/internal/matrix"
)

// Unassigned marks a cluster no strategy could label confidently.
const Unassigned = "unassigned"

// Assignment is one strategy's verdict for one cluster.
type Assignment struct {
	Label  string
	Score  float64
	Pruned bool // true when the label was withheld as ambiguous
}

// MarkerGene is one row of a differential-expression table.
type MarkerGene struct {
	Gene   string
	Log2FC float64
	PValue float64
	FDR    float64
	Pct1   float64 // fraction of in-cluster cells expressing the gene
	Pct2   float64 // fraction of out-of-cluster cells expressing it
}

// Result is one strategy's output over all clusters.
type Result struct {
	Strategy string
	Labels   map[int]Assignment
	Markers  map[int][]MarkerGene // populated by DE-based strategies
	// FullMarkers holds the complete ranked tables when Markers was
	// truncated to a top-N view; nil when Markers is already complete.
	FullMarkers map[int][]MarkerGene
}

// Strategy labels every cluster of a clustered dataset. assign holds
// the active cluster id per cell.
type Strategy interface {
	Name() string
	Annotate(ctx context.Context, ds *dataset.Dataset, assign []int) (*Result, error)
}

// Run executes all strategies concurrently and returns their results
// in strategy order. Strategies are read-only consumers of the
// dataset, so they can share it safely.
func Run(ctx context.Context, logger *slog.Logger, ds *dataset.Dataset, assign []int, strategies []Strategy) ([]*Result, error) {
	if len(strategies) == 0 {
		return nil, errors.New("annotate: no strategies configured")
	}
	results := make([]*Result, len(strategies))
	g, ctx := errgroup.WithContext(ctx)
	for i, s := range strategies {
		g.Go(func() error {
			log := logger.With(logging.FieldStrategy, s.Name())
			log.Info("annotation strategy started")
			res, err := s.Annotate(ctx, ds, assign)
			if err != nil {
				return fmt.Errorf("strategy %s: %w", s.Name(), err)
			}
			if err := checkComplete(res, assign); err != nil {
				return fmt.Errorf("strategy %s: %w", s.Name(), err)
			}
			log.Info("annotation strategy finished", "clusters", len(res.Labels))
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// checkComplete enforces that no cluster was silently omitted.
func checkComplete(res *Result, assign []int) error {
	for _, c := range dataset.ClusterIDs(assign) {
		a, ok := res.Labels[c]
		if !ok {
			return fmt.Errorf("cluster %d has no assignment", c)
		}
		if a.Label == "" {
			return fmt.Errorf("cluster %d has an empty label", c)
		}
	}
	return nil
}

// clusterMeanProfiles averages log-normalized expression of the given
// genes within each cluster. Returns a genes-by-clusters matrix and
// the ordered cluster ids.
func clusterMeanProfiles(ds *dataset.Dataset, assign []int, geneRows []int) (*matrix.Dense, []int) {
	clusters := dataset.ClusterIDs(assign)
	byCluster := dataset.CellsByCluster(assign)
	out := matrix.NewDense(len(geneRows), len(clusters))
	for ci, c := range clusters {
		cells := byCluster[c]
		for gi, row := range geneRows {
			vals := ds.LogNorm.RowValues(row, cells)
			var sum float64
			for _, v := range vals {
				sum += v
			}
			out.Set(gi, ci, sum/float64(len(cells)))
		}
	}
	return out, clusters
}

// geneRowIndex maps gene symbols to their row in the dataset.
func geneRowIndex(genes []string) map[string]int {
	idx := make(map[string]int, len(genes))
	for i, g := range genes {
		idx[g] = i
	}
	return idx
}

// sortedKeys returns map keys in ascending order for deterministic
// iteration.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

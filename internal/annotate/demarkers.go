package annotate

import (
	"context"
	"sort"

	"celltide/internal/dataset"
	"celltide/internal/stats"
)

// DEMarkers computes one-vs-rest differential expression for every
// cluster and keeps the top upregulated genes by effect size. The
// tables are advisory material for manual labeling; the strategy also
// suggests a label by matching significant markers against a curated
// panel of literature-derived marker genes per expected cell type.
type DEMarkers struct {
	name     string
	panel    map[string][]string
	maxP     float64
	minLogFC float64
	topN     int
}

// NewDEMarkers builds the DE strategy. panel maps an expected cell
// type to its curated marker genes; it may be empty, in which case all
// clusters are reported unassigned and only the tables matter.
func NewDEMarkers(panel map[string][]string, maxP, minLogFC float64, topN int) *DEMarkers {
	return &DEMarkers{name: "demarkers", panel: panel, maxP: maxP, minLogFC: minLogFC, topN: topN}
}

func (s *DEMarkers) Name() string { return s.name }

func (s *DEMarkers) Annotate(ctx context.Context, ds *dataset.Dataset, assign []int) (*Result, error) {
	clusters := dataset.ClusterIDs(assign)
	byCluster := dataset.CellsByCluster(assign)

	// Complement cell sets for one-vs-rest tests.
	rest := make(map[int][]int, len(clusters))
	for _, c := range clusters {
		var cells []int
		for _, other := range clusters {
			if other != c {
				cells = append(cells, byCluster[other]...)
			}
		}
		rest[c] = cells
	}

	res := &Result{
		Strategy: s.name,
		Labels:   make(map[int]Assignment, len(clusters)),
		Markers:  make(map[int][]MarkerGene, len(clusters)),
	}
	full := make(map[int][]MarkerGene, len(clusters))
	truncated := false
	for _, c := range clusters {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		table := s.oneVsRest(ds, byCluster[c], rest[c])
		significant := make(map[string]struct{}, len(table))
		for _, m := range table {
			significant[m.Gene] = struct{}{}
		}
		full[c] = table
		if s.topN > 0 && len(table) > s.topN {
			table = table[:s.topN]
			truncated = true
		}
		res.Markers[c] = table
		res.Labels[c] = s.scorePanel(significant)
	}
	if truncated {
		res.FullMarkers = full
	}
	return res, nil
}

// oneVsRest tests every gene in the cluster against all remaining
// cells and returns the significant upregulated genes ordered by fold
// change. FDR correction runs over all tested genes.
func (s *DEMarkers) oneVsRest(ds *dataset.Dataset, own, rest []int) []MarkerGene {
	if len(rest) == 0 {
		return nil
	}
	table := make([]MarkerGene, 0, 64)
	pvals := make([]float64, 0, len(ds.Genes))
	candidates := make([]MarkerGene, 0, len(ds.Genes))
	for row, gene := range ds.Genes {
		ownVals := ds.LogNorm.RowValues(row, own)
		restVals := ds.LogNorm.RowValues(row, rest)
		fc := stats.Log2FC(stats.Mean(ownVals), stats.Mean(restVals))
		p := stats.MannWhitneyU(ownVals, restVals)
		pvals = append(pvals, p)
		candidates = append(candidates, MarkerGene{
			Gene:   gene,
			Log2FC: fc,
			PValue: p,
			Pct1:   stats.FractionPositive(ownVals),
			Pct2:   stats.FractionPositive(restVals),
		})
	}
	fdrs := stats.BenjaminiHochberg(pvals)
	for i := range candidates {
		candidates[i].FDR = fdrs[i]
		if candidates[i].FDR < s.maxP && candidates[i].Log2FC > s.minLogFC {
			table = append(table, candidates[i])
		}
	}
	sort.Slice(table, func(i, j int) bool {
		if table[i].Log2FC != table[j].Log2FC {
			return table[i].Log2FC > table[j].Log2FC
		}
		return table[i].Gene < table[j].Gene
	})
	return table
}

// scorePanel suggests the panel cell type with the largest fraction of
// its curated markers among the cluster's significant genes.
func (s *DEMarkers) scorePanel(significant map[string]struct{}) Assignment {
	best := Assignment{Label: Unassigned, Pruned: true}
	for _, cellType := range sortedKeys(s.panel) {
		genes := s.panel[cellType]
		if len(genes) == 0 {
			continue
		}
		hits := 0
		for _, g := range genes {
			if _, ok := significant[g]; ok {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		score := float64(hits) / float64(len(genes))
		if score > best.Score {
			best = Assignment{Label: cellType, Score: score}
		}
	}
	return best
}

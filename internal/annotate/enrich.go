package annotate

import (
	"context"
	"sort"

	"celltide/internal/dataset"
	"celltide/internal/reference"
	"celltide/internal/stats"
)

// Enrich derives each cluster's marker genes by pairwise differential
// expression and scores the marker set against a tissue-restricted
// cell-type taxonomy. A gene qualifies as a cluster marker only when
// it is significantly overexpressed against every other cluster.
type Enrich struct {
	name     string
	taxonomy *reference.Taxonomy
	maxP     float64
	minLogFC float64
}

// NewEnrich builds the taxonomy-enrichment strategy. The taxonomy
// should already be restricted to plausible tissues.
func NewEnrich(taxonomy *reference.Taxonomy, maxP, minLogFC float64) *Enrich {
	return &Enrich{name: "enrich", taxonomy: taxonomy, maxP: maxP, minLogFC: minLogFC}
}

func (s *Enrich) Name() string { return s.name }

func (s *Enrich) Annotate(ctx context.Context, ds *dataset.Dataset, assign []int) (*Result, error) {
	clusters := dataset.ClusterIDs(assign)
	byCluster := dataset.CellsByCluster(assign)

	res := &Result{
		Strategy: s.name,
		Labels:   make(map[int]Assignment, len(clusters)),
		Markers:  make(map[int][]MarkerGene, len(clusters)),
	}
	for _, c := range clusters {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		markers := s.pairwiseMarkers(ds, clusters, byCluster, c)
		res.Markers[c] = markers
		res.Labels[c] = s.scoreTaxonomy(markers)
	}
	return res, nil
}

// pairwiseMarkers returns genes overexpressed in cluster c against
// every other cluster, ordered by their weakest pairwise fold change.
func (s *Enrich) pairwiseMarkers(ds *dataset.Dataset, clusters []int, byCluster map[int][]int, c int) []MarkerGene {
	if len(clusters) < 2 {
		// No other cluster to compare against, so nothing qualifies.
		return nil
	}
	own := byCluster[c]
	var out []MarkerGene
	for row, gene := range ds.Genes {
		ownVals := ds.LogNorm.RowValues(row, own)
		ownMean := stats.Mean(ownVals)

		qualifies := true
		worstFC := 0.0
		worstP := 0.0
		first := true
		for _, other := range clusters {
			if other == c {
				continue
			}
			otherVals := ds.LogNorm.RowValues(row, byCluster[other])
			fc := stats.Log2FC(ownMean, stats.Mean(otherVals))
			if fc <= s.minLogFC {
				qualifies = false
				break
			}
			p := stats.MannWhitneyU(ownVals, otherVals)
			if p >= s.maxP {
				qualifies = false
				break
			}
			if first || fc < worstFC {
				worstFC = fc
			}
			if first || p > worstP {
				worstP = p
			}
			first = false
		}
		if !qualifies {
			continue
		}
		out = append(out, MarkerGene{
			Gene:   gene,
			Log2FC: worstFC,
			PValue: worstP,
			Pct1:   stats.FractionPositive(ownVals),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Log2FC != out[j].Log2FC {
			return out[i].Log2FC > out[j].Log2FC
		}
		return out[i].Gene < out[j].Gene
	})
	return out
}

// scoreTaxonomy matches a marker set against each taxonomy entry by
// Jaccard overlap and returns the best label, or unassigned when no
// entry overlaps at all.
func (s *Enrich) scoreTaxonomy(markers []MarkerGene) Assignment {
	markerSet := make(map[string]struct{}, len(markers))
	for _, m := range markers {
		markerSet[m.Gene] = struct{}{}
	}

	best := Assignment{Label: Unassigned, Pruned: true}
	for _, entry := range s.taxonomy.Entries {
		inter := 0
		for _, g := range entry.Markers {
			if _, ok := markerSet[g]; ok {
				inter++
			}
		}
		if inter == 0 {
			continue
		}
		union := len(markerSet) + len(entry.Markers) - inter
		score := float64(inter) / float64(union)
		if score > best.Score || (score == best.Score && best.Pruned) {
			best = Assignment{Label: entry.CellType, Score: score}
		}
	}
	return best
}

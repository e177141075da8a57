package annotate

import (
	"context"
	"fmt"

	"celltide/internal/dataset"
	"celltide/internal/reference"
	"celltide/internal/stats"
)

// minCommonMarkers is the fewest shared marker genes a reference
// correlation can be trusted with.
const minCommonMarkers = 3

// RefCor assigns each cluster the reference label whose profile best
// rank-correlates with the cluster's mean expression, restricted to
// genes that discriminate between reference labels. When the margin
// between the top two labels is too small the cluster is pruned to
// unassigned instead of forced onto the closest label.
type RefCor struct {
	name           string
	ref            *reference.ProfileSet
	pruneMargin    float64
	markersPerPair int
	perCell        bool
}

// NewRefCor builds a reference-correlation strategy. markersPerPair
// controls how many discriminating genes each reference label pair
// contributes; zero picks a default.
func NewRefCor(name string, ref *reference.ProfileSet, pruneMargin float64, markersPerPair int) *RefCor {
	return &RefCor{name: name, ref: ref, pruneMargin: pruneMargin, markersPerPair: markersPerPair}
}

// PerCell switches to per-cell scoring: every cell is correlated
// individually and a cluster takes its cells' majority label. Noisier
// than cluster-mean profiles but independent of cluster quality.
func (s *RefCor) PerCell() *RefCor {
	s.perCell = true
	return s
}

func (s *RefCor) Name() string { return s.name }

func (s *RefCor) Annotate(ctx context.Context, ds *dataset.Dataset, assign []int) (*Result, error) {
	markers := s.ref.DiscriminatingGenes(s.markersPerPair)

	// Restrict to marker genes present in both dataset and reference.
	dsIndex := geneRowIndex(ds.Genes)
	var dsRows, refRows []int
	for _, g := range markers {
		dsRow, ok := dsIndex[g]
		if !ok {
			continue
		}
		dsRows = append(dsRows, dsRow)
		refRows = append(refRows, s.ref.GeneIndex(g))
	}
	if len(dsRows) < minCommonMarkers {
		return nil, fmt.Errorf("reference %s shares only %d marker genes with the dataset", s.ref.Name, len(dsRows))
	}

	refVecs := make([][]float64, len(s.ref.Labels))
	for l := range s.ref.Labels {
		vec := make([]float64, len(refRows))
		col := s.ref.Profile(l)
		for i, row := range refRows {
			vec[i] = col[row]
		}
		refVecs[l] = vec
	}

	if s.perCell {
		return s.annotatePerCell(ctx, ds, assign, dsRows, refVecs)
	}

	profiles, clusters := clusterMeanProfiles(ds, assign, dsRows)

	res := &Result{Strategy: s.name, Labels: make(map[int]Assignment, len(clusters))}
	for ci, c := range clusters {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		clusterVec := profiles.Col(ci)
		best, second := -2.0, -2.0
		bestLabel := ""
		for l, refVec := range refVecs {
			rho := stats.SpearmanRho(clusterVec, refVec)
			if rho > best {
				second = best
				best = rho
				bestLabel = s.ref.Labels[l]
			} else if rho > second {
				second = rho
			}
		}
		a := Assignment{Label: bestLabel, Score: best}
		if len(refVecs) > 1 && best-second < s.pruneMargin {
			a = Assignment{Label: Unassigned, Score: best, Pruned: true}
		}
		res.Labels[c] = a
	}
	return res, nil
}

// annotatePerCell scores every cell against the reference and labels
// each cluster with its cells' majority vote. Cells whose top margin
// is below the prune threshold vote unassigned.
func (s *RefCor) annotatePerCell(ctx context.Context, ds *dataset.Dataset, assign []int, dsRows []int, refVecs [][]float64) (*Result, error) {
	clusters := dataset.ClusterIDs(assign)
	byCluster := dataset.CellsByCluster(assign)

	cellVec := make([]float64, len(dsRows))
	res := &Result{Strategy: s.name, Labels: make(map[int]Assignment, len(clusters))}
	for _, c := range clusters {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		votes := map[string]int{}
		scoreSums := map[string]float64{}
		for _, cell := range byCluster[c] {
			for i, row := range dsRows {
				cellVec[i] = ds.LogNorm.At(row, cell)
			}
			best, second := -2.0, -2.0
			bestLabel := ""
			for l, refVec := range refVecs {
				rho := stats.SpearmanRho(cellVec, refVec)
				if rho > best {
					second = best
					best = rho
					bestLabel = s.ref.Labels[l]
				} else if rho > second {
					second = rho
				}
			}
			if len(refVecs) > 1 && best-second < s.pruneMargin {
				bestLabel = Unassigned
			}
			votes[bestLabel]++
			scoreSums[bestLabel] += best
		}

		winner, count := "", -1
		for _, label := range sortedKeys(votes) {
			if votes[label] > count {
				winner = label
				count = votes[label]
			}
		}
		a := Assignment{Label: winner, Score: scoreSums[winner] / float64(count)}
		if winner == Unassigned {
			a.Pruned = true
		}
		res.Labels[c] = a
	}
	return res, nil
}

// NewMultiRef builds one independently named correlation strategy per
// atlas so each produces its own label column.
func NewMultiRef(atlases []*reference.ProfileSet, pruneMargin float64, markersPerPair int) []Strategy {
	out := make([]Strategy, len(atlases))
	for i, atlas := range atlases {
		out[i] = NewRefCor("refcor:"+atlas.Name, atlas, pruneMargin, markersPerPair)
	}
	return out
}

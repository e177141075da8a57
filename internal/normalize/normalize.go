package normalize

import (
	"math"
	"sort"

	"celltide/internal/matrix"
)

// LogNormalize rescales each cell to the given total depth and applies
// log1p. Zeros are preserved, so the result stays sparse.
func LogNormalize(counts *matrix.CSC, scaleFactor float64) *matrix.CSC {
	factors := make([]float64, counts.Cols)
	for c := 0; c < counts.Cols; c++ {
		if sum := counts.ColSum(c); sum > 0 {
			factors[c] = scaleFactor / sum
		}
	}
	return counts.ScaleColumns(factors).Map(math.Log1p)
}

// VariableFeatures ranks genes by standardized dispersion, best first.
// Dispersion is log(variance/mean) z-scored within equal-frequency mean
// bins, which keeps highly expressed housekeeping genes from dominating
// the ranking. The result is deterministic: ties break by gene index.
func VariableFeatures(lognorm *matrix.CSC, nBins int) []int {
	if nBins <= 0 {
		nBins = 20
	}
	means, variances := lognorm.RowStats()

	type geneStat struct {
		gene       int
		mean       float64
		dispersion float64
	}
	stats := make([]geneStat, 0, lognorm.Rows)
	for g := 0; g < lognorm.Rows; g++ {
		if means[g] <= 0 || variances[g] <= 0 {
			continue
		}
		stats = append(stats, geneStat{
			gene:       g,
			mean:       means[g],
			dispersion: math.Log(variances[g] / means[g]),
		})
	}
	if len(stats) == 0 {
		return nil
	}

	// Equal-frequency binning by mean.
	byMean := make([]int, len(stats))
	for i := range byMean {
		byMean[i] = i
	}
	sort.Slice(byMean, func(i, j int) bool {
		a, b := stats[byMean[i]], stats[byMean[j]]
		if a.mean != b.mean {
			return a.mean < b.mean
		}
		return a.gene < b.gene
	})
	if nBins > len(stats) {
		nBins = len(stats)
	}
	binOf := make([]int, len(stats))
	for pos, i := range byMean {
		binOf[i] = pos * nBins / len(stats)
	}

	// Z-score dispersion within each bin.
	binSum := make([]float64, nBins)
	binSumSq := make([]float64, nBins)
	binN := make([]int, nBins)
	for i, s := range stats {
		b := binOf[i]
		binSum[b] += s.dispersion
		binSumSq[b] += s.dispersion * s.dispersion
		binN[b]++
	}
	standardized := make([]float64, len(stats))
	for i, s := range stats {
		b := binOf[i]
		n := float64(binN[b])
		mu := binSum[b] / n
		sd := 0.0
		if binN[b] > 1 {
			v := (binSumSq[b] - n*mu*mu) / (n - 1)
			if v > 0 {
				sd = math.Sqrt(v)
			}
		}
		if sd > 0 {
			standardized[i] = (s.dispersion - mu) / sd
		}
	}

	order := make([]int, len(stats))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		if standardized[order[i]] != standardized[order[j]] {
			return standardized[order[i]] > standardized[order[j]]
		}
		return stats[order[i]].gene < stats[order[j]].gene
	})

	ranked := make([]int, len(order))
	for pos, i := range order {
		ranked[pos] = stats[i].gene
	}
	return ranked
}

// TopFeatures returns the first n entries of a ranking.
func TopFeatures(ranked []int, n int) []int {
	if n > len(ranked) {
		n = len(ranked)
	}
	return append([]int(nil), ranked[:n]...)
}

// SelectIntegrationFeatures chooses the n genes recurrently ranked
// highly across all per-sample rankings. Genes are ordered first by how
// many samples rank them within the top window, then by median rank
// across samples, then by gene index.
func SelectIntegrationFeatures(rankings [][]int, window, n int) []int {
	if len(rankings) == 0 || n <= 0 {
		return nil
	}

	type candidate struct {
		gene   int
		count  int
		median float64
	}

	rankOf := make([]map[int]int, len(rankings))
	for s, ranked := range rankings {
		rankOf[s] = make(map[int]int, len(ranked))
		for pos, gene := range ranked {
			rankOf[s][gene] = pos
		}
	}

	seen := map[int]struct{}{}
	var candidates []candidate
	for s := range rankings {
		limit := window
		if limit > len(rankings[s]) {
			limit = len(rankings[s])
		}
		for _, gene := range rankings[s][:limit] {
			if _, dup := seen[gene]; dup {
				continue
			}
			seen[gene] = struct{}{}

			count := 0
			var ranks []float64
			for _, m := range rankOf {
				pos, ok := m[gene]
				if !ok {
					continue
				}
				ranks = append(ranks, float64(pos))
				if pos < window {
					count++
				}
			}
			candidates = append(candidates, candidate{gene: gene, count: count, median: median(ranks)})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].count != candidates[j].count {
			return candidates[i].count > candidates[j].count
		}
		if candidates[i].median != candidates[j].median {
			return candidates[i].median < candidates[j].median
		}
		return candidates[i].gene < candidates[j].gene
	})

	if n > len(candidates) {
		n = len(candidates)
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		out[i] = candidates[i].gene
	}
	return out
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return math.Inf(1)
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// ScaleFeatures z-scores each selected gene across cells of the
// log-normalized matrix, producing the dense features-by-cells matrix
// integration and PCA operate on. Values are clipped to ±maxValue.
func ScaleFeatures(lognorm *matrix.CSC, features []int, maxValue float64) *matrix.Dense {
	out := matrix.NewDense(len(features), lognorm.Cols)
	means, variances := lognorm.RowStats()
	for fi, gene := range features {
		mu := means[gene]
		sd := math.Sqrt(variances[gene])
		for c := 0; c < lognorm.Cols; c++ {
			v := lognorm.At(gene, c)
			var z float64
			if sd > 0 {
				z = (v - mu) / sd
			}
			if maxValue > 0 {
				if z > maxValue {
					z = maxValue
				} else if z < -maxValue {
					z = -maxValue
				}
			}
			out.Set(fi, c, z)
		}
	}
	return out
}

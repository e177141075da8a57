package stats

import (
	"math"
	"sort"
)

// Ranks assigns 1-based ranks to values, averaging ties.
func Ranks(values []float64) []float64 {
	n := len(values)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return values[idx[i]] < values[idx[j]] })

	ranks := make([]float64, n)
	i := 0
	for i < n {
		j := i
		for j < n && values[idx[j]] == values[idx[i]] {
			j++
		}
		avg := float64(i+j+1) / 2.0
		for k := i; k < j; k++ {
			ranks[idx[k]] = avg
		}
		i = j
	}
	return ranks
}

// SpearmanRho computes the Spearman rank correlation between two
// equal-length vectors. Returns 0 when either vector is constant.
func SpearmanRho(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0
	}
	rx := Ranks(x)
	ry := Ranks(y)
	return pearson(rx, ry)
}

func pearson(x, y []float64) float64 {
	n := float64(len(x))
	var sx, sy float64
	for i := range x {
		sx += x[i]
		sy += y[i]
	}
	mx, my := sx/n, sy/n
	var cov, vx, vy float64
	for i := range x {
		dx := x[i] - mx
		dy := y[i] - my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx <= 0 || vy <= 0 {
		return 0
	}
	return cov / math.Sqrt(vx*vy)
}

// Mean returns the arithmetic mean, zero for empty input.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Variance returns the sample variance, zero when fewer than two values.
func Variance(values []float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	mu := Mean(values)
	var sum float64
	for _, v := range values {
		d := v - mu
		sum += d * d
	}
	return sum / float64(n-1)
}

// Log2FC computes the log2 fold change between two means with a small
// pseudocount to keep zero means finite.
func Log2FC(mean1, mean2 float64) float64 {
	const eps = 1e-9
	if mean1 <= eps && mean2 <= eps {
		return 0
	}
	return math.Log2((mean1 + eps) / (mean2 + eps))
}

// FractionPositive returns the fraction of values above zero.
func FractionPositive(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	n := 0
	for _, v := range values {
		if v > 0 {
			n++
		}
	}
	return float64(n) / float64(len(values))
}

// MannWhitneyU computes the two-tailed p-value of the Mann-Whitney U
// test using the normal approximation with tie and continuity
// corrections.
func MannWhitneyU(group1, group2 []float64) float64 {
	n1, n2 := len(group1), len(group2)
	if n1 == 0 || n2 == 0 {
		return 1.0
	}

	combined := make([]float64, 0, n1+n2)
	combined = append(combined, group1...)
	combined = append(combined, group2...)
	ranks := Ranks(combined)

	var r1 float64
	for i := 0; i < n1; i++ {
		r1 += ranks[i]
	}

	n1f, n2f := float64(n1), float64(n2)
	u1 := r1 - n1f*(n1f+1)/2
	u2 := n1f*n2f - u1
	u := math.Min(u1, u2)
	muU := n1f * n2f / 2

	// Tie correction over the pooled sample.
	sorted := make([]float64, len(combined))
	copy(sorted, combined)
	sort.Float64s(sorted)
	tieSum := 0.0
	i := 0
	for i < len(sorted) {
		j := i
		for j < len(sorted) && sorted[j] == sorted[i] {
			j++
		}
		t := float64(j - i)
		if t > 1 {
			tieSum += t*t*t - t
		}
		i = j
	}

	nf := n1f + n2f
	sigmaU := math.Sqrt(n1f * n2f * ((nf + 1) - tieSum/(nf*(nf-1))) / 12)
	if sigmaU < 1e-10 {
		return 1.0
	}

	z := (u - muU + 0.5) / sigmaU
	return 2 * NormalCDF(-math.Abs(z))
}

// WelchT computes the two-tailed p-value for Welch's unequal-variance
// t-test from summary statistics.
func WelchT(mean1, var1 float64, n1 int, mean2, var2 float64, n2 int) float64 {
	if n1 < 2 || n2 < 2 {
		return 1.0
	}
	if var1 <= 0 && var2 <= 0 {
		if mean1 == mean2 {
			return 1.0
		}
		return 0.0
	}

	se1 := var1 / float64(n1)
	se2 := var2 / float64(n2)
	seDiff := math.Sqrt(se1 + se2)
	if seDiff < 1e-15 {
		if mean1 == mean2 {
			return 1.0
		}
		return 0.0
	}

	t := (mean1 - mean2) / seDiff

	num := (se1 + se2) * (se1 + se2)
	den := 0.0
	if se1 > 0 {
		den += se1 * se1 / float64(n1-1)
	}
	if se2 > 0 {
		den += se2 * se2 / float64(n2-1)
	}
	if den < 1e-15 {
		return 1.0
	}
	df := num / den
	if df < 1 {
		df = 1
	}

	return 2 * studentTCDF(-math.Abs(t), df)
}

// NormalCDF is the standard normal cumulative distribution function.
func NormalCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

func studentTCDF(t, df float64) float64 {
	if df <= 0 {
		return 0.5
	}
	x := df / (df + t*t)
	beta := incompleteBeta(x, df/2, 0.5)
	if t < 0 {
		return 0.5 * beta
	}
	return 1 - 0.5*beta
}

// incompleteBeta evaluates the regularized incomplete beta function via
// a continued fraction expansion.
func incompleteBeta(x, a, b float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}
	if x > (a+1)/(a+b+2) {
		return 1 - incompleteBeta(1-x, b, a)
	}

	const maxIter = 200
	const eps = 1e-10

	lnBeta := lgamma(a) + lgamma(b) - lgamma(a+b)
	front := math.Exp(a*math.Log(x) + b*math.Log(1-x) - lnBeta)

	f, c, d := 1.0, 1.0, 0.0
	for i := 0; i <= maxIter; i++ {
		m := float64(i / 2)
		var num float64
		switch {
		case i == 0:
			num = 1.0
		case i%2 == 0:
			num = m * (b - m) * x / ((a + 2*m - 1) * (a + 2*m))
		default:
			num = -((a + m) * (a + b + m) * x) / ((a + 2*m) * (a + 2*m + 1))
		}

		d = 1 + num*d
		if math.Abs(d) < eps {
			d = eps
		}
		d = 1 / d

		c = 1 + num/c
		if math.Abs(c) < eps {
			c = eps
		}

		f *= d * c
		if math.Abs(d*c-1) < eps {
			break
		}
	}
	return front * (f - 1) / a
}

func lgamma(x float64) float64 {
	g, _ := math.Lgamma(x)
	return g
}

// BenjaminiHochberg adjusts p-values for multiple testing, returning
// FDR values aligned with the input order.
func BenjaminiHochberg(pvals []float64) []float64 {
	n := len(pvals)
	if n == 0 {
		return nil
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return pvals[idx[i]] < pvals[idx[j]] })

	fdr := make([]float64, n)
	minP := 1.0
	for i := n - 1; i >= 0; i-- {
		orig := idx[i]
		adjusted := pvals[orig] * float64(n) / float64(i+1)
		if adjusted > 1 {
			adjusted = 1
		}
		if adjusted < minP {
			minP = adjusted
		} else {
			adjusted = minP
		}
		fdr[orig] = adjusted
	}
	return fdr
}

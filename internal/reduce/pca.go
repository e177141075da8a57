package reduce

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"celltide/internal/matrix"
)

// PCAResult holds the principal component projection of a dataset.
type PCAResult struct {
	// Scores is components-by-cells: row j holds every cell's
	// coordinate on component j.
	Scores *matrix.Dense
	// VarExplained is the fraction of total variance captured by each
	// component, in component order.
	VarExplained []float64
}

// PCA projects a features-by-cells matrix onto its top components.
// Rows are centered first. The decomposition runs seeded subspace
// iteration followed by a Jacobi rotation of the restricted covariance,
// so results are deterministic for a fixed seed.
func PCA(x *matrix.Dense, nComponents int, seed int64) (*PCAResult, error) {
	if x == nil || x.Rows == 0 || x.Cols == 0 {
		return nil, errors.New("empty matrix")
	}
	if nComponents <= 0 {
		return nil, errors.New("component count must be positive")
	}
	if nComponents > x.Cols {
		nComponents = x.Cols
	}
	if nComponents > x.Rows {
		nComponents = x.Rows
	}

	centered := centerRows(x)
	totalVar := frobeniusSq(centered)
	if totalVar <= 0 {
		return nil, errors.New("matrix has no variance")
	}

	n := centered.Cols
	k := nComponents
	rng := rand.New(rand.NewSource(seed))

	// V spans the current estimate of the top right-singular subspace.
	v := make([][]float64, n)
	for i := range v {
		v[i] = make([]float64, k)
		for j := range v[i] {
			v[i][j] = rng.NormFloat64()
		}
	}
	orthonormalize(v)

	const maxIter = 100
	const tol = 1e-10
	prev := math.Inf(1)
	for iter := 0; iter < maxIter; iter++ {
		u := multiply(centered, v)          // features x k
		w := multiplyTranspose(centered, u) // cells x k
		orthonormalize(w)

		drift := subspaceDrift(v, w)
		v = w
		if math.Abs(prev-drift) < tol || drift < tol {
			break
		}
		prev = drift
	}

	// Rotate the converged subspace onto principal axes.
	u := multiply(centered, v)
	cov := gram(u) // k x k
	eigvals, rot := jacobiEigen(cov)

	order := sortDesc(eigvals)
	result := &PCAResult{
		Scores:       matrix.NewDense(k, n),
		VarExplained: make([]float64, k),
	}
	for outJ, j := range order {
		lambda := eigvals[j]
		if lambda < 0 {
			lambda = 0
		}
		sigma := math.Sqrt(lambda)
		result.VarExplained[outJ] = lambda / totalVar

		// Cell scores along this component: (V * R_j) * sigma.
		col := make([]float64, n)
		for i := 0; i < n; i++ {
			var s float64
			for l := 0; l < k; l++ {
				s += v[i][l] * rot[l][j]
			}
			col[i] = s * sigma
		}
		fixSign(col)
		for i := 0; i < n; i++ {
			result.Scores.Set(outJ, i, col[i])
		}
	}
	return result, nil
}

// CellCoordinates returns the per-cell vectors (cells-by-dims) for the
// first dims components.
func (r *PCAResult) CellCoordinates(dims int) ([][]float64, error) {
	if dims > r.Scores.Rows {
		return nil, fmt.Errorf("requested %d dims, have %d components", dims, r.Scores.Rows)
	}
	out := make([][]float64, r.Scores.Cols)
	for c := 0; c < r.Scores.Cols; c++ {
		vec := make([]float64, dims)
		for j := 0; j < dims; j++ {
			vec[j] = r.Scores.At(j, c)
		}
		out[c] = vec
	}
	return out, nil
}

func centerRows(x *matrix.Dense) *matrix.Dense {
	out := x.Clone()
	for r := 0; r < out.Rows; r++ {
		var sum float64
		for c := 0; c < out.Cols; c++ {
			sum += out.At(r, c)
		}
		mean := sum / float64(out.Cols)
		for c := 0; c < out.Cols; c++ {
			out.Set(r, c, out.At(r, c)-mean)
		}
	}
	return out
}

func frobeniusSq(x *matrix.Dense) float64 {
	var sum float64
	for _, v := range x.Data {
		sum += v * v
	}
	return sum
}

// multiply computes X * V for V given as row slices (cells x k),
// returning features x k.
func multiply(x *matrix.Dense, v [][]float64) [][]float64 {
	k := len(v[0])
	out := make([][]float64, x.Rows)
	for r := range out {
		out[r] = make([]float64, k)
	}
	for c := 0; c < x.Cols; c++ {
		col := x.Col(c)
		for r, xv := range col {
			if xv == 0 {
				continue
			}
			for j := 0; j < k; j++ {
				out[r][j] += xv * v[c][j]
			}
		}
	}
	return out
}

// multiplyTranspose computes Xᵀ * U (cells x k).
func multiplyTranspose(x *matrix.Dense, u [][]float64) [][]float64 {
	k := len(u[0])
	out := make([][]float64, x.Cols)
	for c := 0; c < x.Cols; c++ {
		out[c] = make([]float64, k)
		col := x.Col(c)
		for r, xv := range col {
			if xv == 0 {
				continue
			}
			for j := 0; j < k; j++ {
				out[c][j] += xv * u[r][j]
			}
		}
	}
	return out
}

// orthonormalize applies modified Gram-Schmidt to the columns of v.
func orthonormalize(v [][]float64) {
	n := len(v)
	if n == 0 {
		return
	}
	k := len(v[0])
	for j := 0; j < k; j++ {
		for p := 0; p < j; p++ {
			var dot float64
			for i := 0; i < n; i++ {
				dot += v[i][j] * v[i][p]
			}
			for i := 0; i < n; i++ {
				v[i][j] -= dot * v[i][p]
			}
		}
		var norm float64
		for i := 0; i < n; i++ {
			norm += v[i][j] * v[i][j]
		}
		norm = math.Sqrt(norm)
		if norm < 1e-14 {
			// Degenerate direction: reset to a unit basis vector.
			for i := 0; i < n; i++ {
				v[i][j] = 0
			}
			v[j%n][j] = 1
			continue
		}
		for i := 0; i < n; i++ {
			v[i][j] /= norm
		}
	}
}

func subspaceDrift(a, b [][]float64) float64 {
	var drift float64
	for i := range a {
		for j := range a[i] {
			d := math.Abs(a[i][j]) - math.Abs(b[i][j])
			drift += d * d
		}
	}
	return drift
}

func gram(u [][]float64) [][]float64 {
	k := len(u[0])
	out := make([][]float64, k)
	for i := range out {
		out[i] = make([]float64, k)
	}
	for _, row := range u {
		for i := 0; i < k; i++ {
			if row[i] == 0 {
				continue
			}
			for j := i; j < k; j++ {
				out[i][j] += row[i] * row[j]
			}
		}
	}
	for i := 0; i < k; i++ {
		for j := 0; j < i; j++ {
			out[i][j] = out[j][i]
		}
	}
	return out
}

// jacobiEigen diagonalizes a small symmetric matrix with cyclic Jacobi
// rotations, returning eigenvalues and the rotation matrix (columns are
// eigenvectors).
func jacobiEigen(a [][]float64) ([]float64, [][]float64) {
	k := len(a)
	m := make([][]float64, k)
	rot := make([][]float64, k)
	for i := range m {
		m[i] = append([]float64(nil), a[i]...)
		rot[i] = make([]float64, k)
		rot[i][i] = 1
	}

	const sweeps = 50
	for sweep := 0; sweep < sweeps; sweep++ {
		var off float64
		for i := 0; i < k; i++ {
			for j := i + 1; j < k; j++ {
				off += m[i][j] * m[i][j]
			}
		}
		if off < 1e-20 {
			break
		}
		for p := 0; p < k; p++ {
			for q := p + 1; q < k; q++ {
				if math.Abs(m[p][q]) < 1e-18 {
					continue
				}
				theta := (m[q][q] - m[p][p]) / (2 * m[p][q])
				t := math.Copysign(1, theta) / (math.Abs(theta) + math.Sqrt(theta*theta+1))
				c := 1 / math.Sqrt(t*t+1)
				s := t * c
				for i := 0; i < k; i++ {
					mip, miq := m[i][p], m[i][q]
					m[i][p] = c*mip - s*miq
					m[i][q] = s*mip + c*miq
				}
				for i := 0; i < k; i++ {
					mpi, mqi := m[p][i], m[q][i]
					m[p][i] = c*mpi - s*mqi
					m[q][i] = s*mpi + c*mqi
				}
				for i := 0; i < k; i++ {
					rip, riq := rot[i][p], rot[i][q]
					rot[i][p] = c*rip - s*riq
					rot[i][q] = s*rip + c*riq
				}
			}
		}
	}

	eig := make([]float64, k)
	for i := 0; i < k; i++ {
		eig[i] = m[i][i]
	}
	return eig, rot
}

func sortDesc(values []float64) []int {
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	for i := 0; i < len(order); i++ {
		for j := i + 1; j < len(order); j++ {
			if values[order[j]] > values[order[i]] {
				order[i], order[j] = order[j], order[i]
			}
		}
	}
	return order
}

// fixSign flips a component so its largest-magnitude coordinate is
// positive, removing the sign ambiguity of eigenvectors.
func fixSign(col []float64) {
	maxAbs, maxVal := 0.0, 0.0
	for _, v := range col {
		if math.Abs(v) > maxAbs {
			maxAbs = math.Abs(v)
			maxVal = v
		}
	}
	if maxVal < 0 {
		for i := range col {
			col[i] = -col[i]
		}
	}
}

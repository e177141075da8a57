package reduce

import (
	"math"
	"math/rand"

	"celltide/internal/matrix"
)

// LayoutEdge is a weighted attraction between two cells in the 2-D
// embedding, taken from the SNN graph.
type LayoutEdge struct {
	A, B   int
	Weight float64
}

// ForceLayout computes a seeded 2-D embedding of the neighbor graph
// with Fruchterman-Reingold iterations. Positions initialize from the
// first two principal components so the layout is stable across reruns;
// the result is for visualization only.
func ForceLayout(n int, edges []LayoutEdge, initial *matrix.Dense, seed int64, iterations int) *matrix.Dense {
	if iterations <= 0 {
		iterations = 50
	}
	pos := matrix.NewDense(2, n)
	rng := rand.New(rand.NewSource(seed))
	if initial != nil && initial.Rows >= 2 && initial.Cols == n {
		scale := maxAbs(initial)
		if scale == 0 {
			scale = 1
		}
		for c := 0; c < n; c++ {
			pos.Set(0, c, initial.At(0, c)/scale)
			pos.Set(1, c, initial.At(1, c)/scale)
		}
	} else {
		for c := 0; c < n; c++ {
			pos.Set(0, c, rng.Float64()*2-1)
			pos.Set(1, c, rng.Float64()*2-1)
		}
	}

	if n < 2 {
		return pos
	}

	k := math.Sqrt(4.0 / float64(n))
	temperature := 0.1
	cool := temperature / float64(iterations+1)

	dispX := make([]float64, n)
	dispY := make([]float64, n)
	for iter := 0; iter < iterations; iter++ {
		for i := range dispX {
			dispX[i] = 0
			dispY[i] = 0
		}

		// Repulsion between all pairs.
		for i := 0; i < n; i++ {
			xi, yi := pos.At(0, i), pos.At(1, i)
			for j := i + 1; j < n; j++ {
				dx := xi - pos.At(0, j)
				dy := yi - pos.At(1, j)
				distSq := dx*dx + dy*dy
				if distSq < 1e-12 {
					// Coincident points: nudge apart deterministically.
					dx = (rng.Float64() - 0.5) * 1e-4
					dy = (rng.Float64() - 0.5) * 1e-4
					distSq = dx*dx + dy*dy
				}
				force := k * k / distSq
				dispX[i] += dx * force
				dispY[i] += dy * force
				dispX[j] -= dx * force
				dispY[j] -= dy * force
			}
		}

		// Attraction along weighted edges.
		for _, e := range edges {
			dx := pos.At(0, e.A) - pos.At(0, e.B)
			dy := pos.At(1, e.A) - pos.At(1, e.B)
			dist := math.Sqrt(dx*dx+dy*dy) + 1e-12
			force := dist * e.Weight / k
			fx := dx / dist * force
			fy := dy / dist * force
			dispX[e.A] -= fx
			dispY[e.A] -= fy
			dispX[e.B] += fx
			dispY[e.B] += fy
		}

		for i := 0; i < n; i++ {
			dist := math.Sqrt(dispX[i]*dispX[i]+dispY[i]*dispY[i]) + 1e-12
			step := math.Min(dist, temperature)
			pos.Set(0, i, pos.At(0, i)+dispX[i]/dist*step)
			pos.Set(1, i, pos.At(1, i)+dispY[i]/dist*step)
		}
		temperature -= cool
		if temperature < 1e-4 {
			temperature = 1e-4
		}
	}
	return pos
}

func maxAbs(m *matrix.Dense) float64 {
	var out float64
	for _, v := range m.Data {
		if math.Abs(v) > out {
			out = math.Abs(v)
		}
	}
	return out
}

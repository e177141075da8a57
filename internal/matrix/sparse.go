package matrix

import (
	"fmt"
	"sort"
)

// CSC is a compressed sparse column matrix. Rows are genes, columns are
// cells. Entries within a column are ordered by row index.
type CSC struct {
	Rows   int
	Cols   int
	ColPtr []int
	RowIdx []int
	Val    []float64
}

// Entry is a single (row, col, value) triplet.
type Entry struct {
	Row int
	Col int
	Val float64
}

// NewCSC builds a CSC matrix from unordered triplets. Duplicate
// coordinates are summed.
func NewCSC(rows, cols int, entries []Entry) (*CSC, error) {
	for _, e := range entries {
		if e.Row < 0 || e.Row >= rows || e.Col < 0 || e.Col >= cols {
			return nil, fmt.Errorf("entry (%d,%d) outside %dx%d matrix", e.Row, e.Col, rows, cols)
		}
	}
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Col != sorted[j].Col {
			return sorted[i].Col < sorted[j].Col
		}
		return sorted[i].Row < sorted[j].Row
	})

	m := &CSC{
		Rows:   rows,
		Cols:   cols,
		ColPtr: make([]int, cols+1),
		RowIdx: make([]int, 0, len(sorted)),
		Val:    make([]float64, 0, len(sorted)),
	}
	col := 0
	for i := 0; i < len(sorted); {
		e := sorted[i]
		val := e.Val
		j := i + 1
		for j < len(sorted) && sorted[j].Col == e.Col && sorted[j].Row == e.Row {
			val += sorted[j].Val
			j++
		}
		for col < e.Col {
			col++
			m.ColPtr[col] = len(m.RowIdx)
		}
		m.RowIdx = append(m.RowIdx, e.Row)
		m.Val = append(m.Val, val)
		i = j
	}
	for col < cols {
		col++
		m.ColPtr[col] = len(m.RowIdx)
	}
	return m, nil
}

// NNZ returns the number of stored entries.
func (m *CSC) NNZ() int { return len(m.Val) }

// At returns the value at (row, col), zero when absent.
func (m *CSC) At(row, col int) float64 {
	start, end := m.ColPtr[col], m.ColPtr[col+1]
	idx := sort.SearchInts(m.RowIdx[start:end], row)
	if idx < end-start && m.RowIdx[start+idx] == row {
		return m.Val[start+idx]
	}
	return 0
}

// Column invokes fn for every stored entry in a column.
func (m *CSC) Column(col int, fn func(row int, val float64)) {
	for i := m.ColPtr[col]; i < m.ColPtr[col+1]; i++ {
		fn(m.RowIdx[i], m.Val[i])
	}
}

// ColSum returns the sum of a column's values.
func (m *CSC) ColSum(col int) float64 {
	var sum float64
	for i := m.ColPtr[col]; i < m.ColPtr[col+1]; i++ {
		sum += m.Val[i]
	}
	return sum
}

// ColNNZ returns the number of stored entries in a column.
func (m *CSC) ColNNZ(col int) int {
	return m.ColPtr[col+1] - m.ColPtr[col]
}

// SelectColumns returns a new matrix holding only the given columns, in
// the given order.
func (m *CSC) SelectColumns(cols []int) *CSC {
	out := &CSC{
		Rows:   m.Rows,
		Cols:   len(cols),
		ColPtr: make([]int, len(cols)+1),
	}
	for i, col := range cols {
		start, end := m.ColPtr[col], m.ColPtr[col+1]
		out.RowIdx = append(out.RowIdx, m.RowIdx[start:end]...)
		out.Val = append(out.Val, m.Val[start:end]...)
		out.ColPtr[i+1] = len(out.RowIdx)
	}
	return out
}

// Map returns a new matrix with fn applied to every stored value.
// Zeros stay zeros, so sparsity-preserving transforms (such as log1p of
// scaled counts) keep the structure intact.
func (m *CSC) Map(fn func(float64) float64) *CSC {
	out := &CSC{
		Rows:   m.Rows,
		Cols:   m.Cols,
		ColPtr: append([]int(nil), m.ColPtr...),
		RowIdx: append([]int(nil), m.RowIdx...),
		Val:    make([]float64, len(m.Val)),
	}
	for i, v := range m.Val {
		out.Val[i] = fn(v)
	}
	return out
}

// ScaleColumns returns a new matrix with every column multiplied by the
// corresponding factor.
func (m *CSC) ScaleColumns(factors []float64) *CSC {
	out := &CSC{
		Rows:   m.Rows,
		Cols:   m.Cols,
		ColPtr: append([]int(nil), m.ColPtr...),
		RowIdx: append([]int(nil), m.RowIdx...),
		Val:    make([]float64, len(m.Val)),
	}
	for col := 0; col < m.Cols; col++ {
		for i := m.ColPtr[col]; i < m.ColPtr[col+1]; i++ {
			out.Val[i] = m.Val[i] * factors[col]
		}
	}
	return out
}

// HStack concatenates matrices left to right. All must share a row count.
func HStack(mats ...*CSC) (*CSC, error) {
	if len(mats) == 0 {
		return nil, fmt.Errorf("hstack of zero matrices")
	}
	rows := mats[0].Rows
	out := &CSC{Rows: rows, ColPtr: []int{0}}
	for _, m := range mats {
		if m.Rows != rows {
			return nil, fmt.Errorf("hstack row mismatch: %d vs %d", rows, m.Rows)
		}
		out.Cols += m.Cols
		out.RowIdx = append(out.RowIdx, m.RowIdx...)
		out.Val = append(out.Val, m.Val...)
		base := out.ColPtr[len(out.ColPtr)-1]
		for col := 0; col < m.Cols; col++ {
			out.ColPtr = append(out.ColPtr, base+m.ColPtr[col+1])
		}
	}
	return out, nil
}

// RowStats returns per-row mean and sample variance across all columns
// (zeros included).
func (m *CSC) RowStats() (means, variances []float64) {
	means = make([]float64, m.Rows)
	sumsq := make([]float64, m.Rows)
	for i, row := range m.RowIdx {
		means[row] += m.Val[i]
		sumsq[row] += m.Val[i] * m.Val[i]
	}
	variances = make([]float64, m.Rows)
	n := float64(m.Cols)
	if n == 0 {
		return means, variances
	}
	for row := 0; row < m.Rows; row++ {
		mu := means[row] / n
		means[row] = mu
		if n > 1 {
			variances[row] = (sumsq[row] - n*mu*mu) / (n - 1)
			if variances[row] < 0 {
				variances[row] = 0
			}
		}
	}
	return means, variances
}

// RowValues gathers a full dense row (zeros included) for the given row
// over the given columns. Used by rank tests that need the complete
// expression vector for a gene.
func (m *CSC) RowValues(row int, cols []int) []float64 {
	out := make([]float64, len(cols))
	for i, col := range cols {
		out[i] = m.At(row, col)
	}
	return out
}

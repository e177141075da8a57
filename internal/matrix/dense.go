package matrix

import "fmt"

// Dense is a column-major dense matrix. As with CSC, rows are features
// and columns are cells, so a cell's vector is contiguous.
type Dense struct {
	Rows int
	Cols int
	Data []float64
}

// NewDense allocates a zeroed rows-by-cols matrix.
func NewDense(rows, cols int) *Dense {
	return &Dense{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// At returns the value at (row, col).
func (m *Dense) At(row, col int) float64 { return m.Data[col*m.Rows+row] }

// Set stores a value at (row, col).
func (m *Dense) Set(row, col int, v float64) { m.Data[col*m.Rows+row] = v }

// Col returns the backing slice for one column. The slice aliases the
// matrix; callers must not grow it.
func (m *Dense) Col(col int) []float64 {
	return m.Data[col*m.Rows : (col+1)*m.Rows]
}

// Clone returns a deep copy.
func (m *Dense) Clone() *Dense {
	out := &Dense{Rows: m.Rows, Cols: m.Cols, Data: make([]float64, len(m.Data))}
	copy(out.Data, m.Data)
	return out
}

// SelectColumnsDense returns a new dense matrix holding only the given
// columns in order.
func (m *Dense) SelectColumnsDense(cols []int) *Dense {
	out := NewDense(m.Rows, len(cols))
	for i, col := range cols {
		copy(out.Col(i), m.Col(col))
	}
	return out
}

// HStackDense concatenates dense matrices left to right.
func HStackDense(mats ...*Dense) (*Dense, error) {
	if len(mats) == 0 {
		return nil, fmt.Errorf("hstack of zero matrices")
	}
	rows := mats[0].Rows
	cols := 0
	for _, m := range mats {
		if m.Rows != rows {
			return nil, fmt.Errorf("hstack row mismatch: %d vs %d", rows, m.Rows)
		}
		cols += m.Cols
	}
	out := NewDense(rows, cols)
	offset := 0
	for _, m := range mats {
		copy(out.Data[offset:], m.Data)
		offset += len(m.Data)
	}
	return out, nil
}

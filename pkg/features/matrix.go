package features

import (
	"errors"
	"fmt"
)

// ErrShape reports a matrix whose shape differs from the configured fixed
// shape. It indicates an internal defect and must be checked before
// batching, since a silent mismatch would corrupt training.
var ErrShape = errors.New("features: shape invariant violation")

// Matrix is a dense row-major 2-D array of coefficients.
//
// An extractor output is (coefficients × frames). After [Matrix.Transpose]
// it is time-major (frames × coefficients), the orientation fed to the
// classifier.
type Matrix struct {
	Rows int       `msgpack:"rows"`
	Cols int       `msgpack:"cols"`
	Data []float64 `msgpack:"data"`
}

// NewMatrix allocates a zero-filled rows×cols matrix.
func NewMatrix(rows, cols int) *Matrix {
	return &Matrix{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// Shape returns (rows, cols).
func (m *Matrix) Shape() (int, int) { return m.Rows, m.Cols }

// At returns the element at (r, c).
func (m *Matrix) At(r, c int) float64 { return m.Data[r*m.Cols+c] }

// Set stores v at (r, c).
func (m *Matrix) Set(r, c int, v float64) { m.Data[r*m.Cols+c] = v }

// Row returns row r as a slice sharing the matrix storage.
func (m *Matrix) Row(r int) []float64 { return m.Data[r*m.Cols : (r+1)*m.Cols] }

// RowViews returns every row as a slice sharing the matrix storage.
func (m *Matrix) RowViews() [][]float64 {
	rows := make([][]float64, m.Rows)
	for r := range rows {
		rows[r] = m.Row(r)
	}
	return rows
}

// Transpose returns a new matrix with rows and columns swapped.
func (m *Matrix) Transpose() *Matrix {
	t := NewMatrix(m.Cols, m.Rows)
	for r := 0; r < m.Rows; r++ {
		for c := 0; c < m.Cols; c++ {
			t.Data[c*m.Rows+r] = m.Data[r*m.Cols+c]
		}
	}
	return t
}

// Equal reports whether m and o have the same shape and identical values.
func (m *Matrix) Equal(o *Matrix) bool {
	if m.Rows != o.Rows || m.Cols != o.Cols || len(m.Data) != len(o.Data) {
		return false
	}
	for i, v := range m.Data {
		if o.Data[i] != v {
			return false
		}
	}
	return true
}

// CheckShape returns an error wrapping ErrShape unless m is rows×cols with
// consistent backing storage.
func CheckShape(m *Matrix, rows, cols int) error {
	if m == nil {
		return fmt.Errorf("%w: nil matrix", ErrShape)
	}
	if m.Rows != rows || m.Cols != cols || len(m.Data) != rows*cols {
		return fmt.Errorf("%w: got (%d, %d) with %d values, want (%d, %d)",
			ErrShape, m.Rows, m.Cols, len(m.Data), rows, cols)
	}
	return nil
}

// PadTruncate fixes the column (frame) count of m to n. Missing trailing
// columns are zero; surplus columns beyond the first n are dropped.
func PadTruncate(m *Matrix, n int) *Matrix {
	out := NewMatrix(m.Rows, n)
	keep := min(m.Cols, n)
	for r := 0; r < m.Rows; r++ {
		copy(out.Data[r*n:r*n+keep], m.Data[r*m.Cols:r*m.Cols+keep])
	}
	return out
}

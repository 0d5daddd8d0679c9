package nn

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// param is a trainable tensor with its gradient and Adam moments.
type param struct {
	name string
	w    *mat.Dense
	g    *mat.Dense
	m, v []float64
}

func newParam(name string, rows, cols int) *param {
	return &param{
		name: name,
		w:    mat.NewDense(rows, cols, nil),
		g:    mat.NewDense(rows, cols, nil),
	}
}

func (p *param) zeroGrad() { p.g.Zero() }

// glorotUniform fills w from U(-l, l) with l = sqrt(6 / (fanIn + fanOut)).
func glorotUniform(w *mat.Dense, r *rand.Rand) {
	rows, cols := w.Dims()
	limit := math.Sqrt(6 / float64(rows+cols))
	data := w.RawMatrix().Data
	for i := range data {
		data[i] = (2*r.Float64() - 1) * limit
	}
}

// orthogonal fills w with a (semi-)orthogonal matrix taken from the QR
// factorization of a Gaussian matrix.
func orthogonal(w *mat.Dense, r *rand.Rand) {
	rows, cols := w.Dims()
	n, k := max(rows, cols), min(rows, cols)
	a := mat.NewDense(n, k, nil)
	data := a.RawMatrix().Data
	for i := range data {
		data[i] = r.NormFloat64()
	}
	var qr mat.QR
	qr.Factorize(a)
	var q, rr mat.Dense
	qr.QTo(&q)
	qr.RTo(&rr)
	for j := 0; j < k; j++ {
		s := 1.0
		if rr.At(j, j) < 0 {
			s = -1
		}
		for i := 0; i < n; i++ {
			v := s * q.At(i, j)
			if rows >= cols {
				w.Set(i, j, v)
			} else {
				w.Set(j, i, v)
			}
		}
	}
}

package nn

import "math"

// Adam hyperparameters other than the learning rate.
const (
	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEpsilon = 1e-7
)

type adam struct {
	lr float64
	t  int
}

func newAdam(lr float64) *adam { return &adam{lr: lr} }

// step applies one bias-corrected Adam update from the accumulated
// gradients.
func (a *adam) step(ps []*param) {
	a.t++
	t := float64(a.t)
	lrT := a.lr * math.Sqrt(1-math.Pow(adamBeta2, t)) / (1 - math.Pow(adamBeta1, t))
	for _, p := range ps {
		w := p.w.RawMatrix().Data
		g := p.g.RawMatrix().Data
		if p.m == nil {
			p.m = make([]float64, len(w))
			p.v = make([]float64, len(w))
		}
		for i, gi := range g {
			p.m[i] = adamBeta1*p.m[i] + (1-adamBeta1)*gi
			p.v[i] = adamBeta2*p.v[i] + (1-adamBeta2)*gi*gi
			w[i] -= lrT * p.m[i] / (math.Sqrt(p.v[i]) + adamEpsilon)
		}
	}
}

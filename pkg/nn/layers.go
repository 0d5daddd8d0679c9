package nn

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// lstm is a single LSTM layer with Keras gate order (i, f, c, o).
type lstm struct {
	in, units int
	w         *param // in × 4·units
	u         *param // units × 4·units
	b         *param // 1 × 4·units
}

func newLSTM(name string, in, units int, r *rand.Rand) *lstm {
	l := &lstm{
		in:    in,
		units: units,
		w:     newParam(name+"/kernel", in, 4*units),
		u:     newParam(name+"/recurrent_kernel", units, 4*units),
		b:     newParam(name+"/bias", 1, 4*units),
	}
	if r != nil {
		glorotUniform(l.w.w, r)
		orthogonal(l.u.w, r)
		bias := l.b.w.RawRowView(0)
		for j := units; j < 2*units; j++ {
			bias[j] = 1
		}
	}
	return l
}

func (l *lstm) params() []*param { return []*param{l.w, l.u, l.b} }

// lstmCache keeps what backward needs. hs and cs have one extra leading
// zero state.
type lstmCache struct {
	xs    []*mat.Dense
	hs    []*mat.Dense
	cs    []*mat.Dense
	gates []*mat.Dense
}

// forward runs the layer over xs (one B×in matrix per step) and returns
// the hidden state at every step.
func (l *lstm) forward(xs []*mat.Dense, keep bool) ([]*mat.Dense, *lstmCache) {
	batch, _ := xs[0].Dims()
	H := l.units
	h := mat.NewDense(batch, H, nil)
	c := mat.NewDense(batch, H, nil)

	var cache *lstmCache
	if keep {
		cache = &lstmCache{
			xs:    xs,
			hs:    make([]*mat.Dense, len(xs)+1),
			cs:    make([]*mat.Dense, len(xs)+1),
			gates: make([]*mat.Dense, len(xs)),
		}
		cache.hs[0], cache.cs[0] = h, c
	}

	out := make([]*mat.Dense, len(xs))
	z := mat.NewDense(batch, 4*H, nil)
	rec := mat.NewDense(batch, 4*H, nil)
	bias := l.b.w.RawRowView(0)
	for t, x := range xs {
		z.Mul(x, l.w.w)
		rec.Mul(h, l.u.w)
		z.Add(z, rec)

		gates := mat.NewDense(batch, 4*H, nil)
		hn := mat.NewDense(batch, H, nil)
		cn := mat.NewDense(batch, H, nil)
		zr, ar := z.RawMatrix().Data, gates.RawMatrix().Data
		cp, cr, hr := c.RawMatrix().Data, cn.RawMatrix().Data, hn.RawMatrix().Data
		for bi := 0; bi < batch; bi++ {
			row := bi * 4 * H
			for j := 0; j < H; j++ {
				i := sigmoid(zr[row+j] + bias[j])
				f := sigmoid(zr[row+H+j] + bias[H+j])
				g := math.Tanh(zr[row+2*H+j] + bias[2*H+j])
				o := sigmoid(zr[row+3*H+j] + bias[3*H+j])
				ar[row+j], ar[row+H+j], ar[row+2*H+j], ar[row+3*H+j] = i, f, g, o
				k := bi*H + j
				cr[k] = f*cp[k] + i*g
				hr[k] = o * math.Tanh(cr[k])
			}
		}
		h, c = hn, cn
		out[t] = h
		if keep {
			cache.gates[t] = gates
			cache.hs[t+1], cache.cs[t+1] = h, c
		}
	}
	return out, cache
}

// backward accumulates parameter gradients given dL/dh for each step (nil
// entries mean no gradient at that step) and returns dL/dx per step when
// needDx is set.
func (l *lstm) backward(cache *lstmCache, dhs []*mat.Dense, needDx bool) []*mat.Dense {
	T := len(cache.xs)
	batch, _ := cache.xs[0].Dims()
	H := l.units

	dhNext := mat.NewDense(batch, H, nil)
	dcNext := make([]float64, batch*H)
	dz := mat.NewDense(batch, 4*H, nil)
	gw := mat.NewDense(l.in, 4*H, nil)
	gu := mat.NewDense(H, 4*H, nil)
	db := l.b.g.RawRowView(0)

	var dxs []*mat.Dense
	if needDx {
		dxs = make([]*mat.Dense, T)
	}
	for t := T - 1; t >= 0; t-- {
		ar := cache.gates[t].RawMatrix().Data
		cprev := cache.cs[t].RawMatrix().Data
		ccur := cache.cs[t+1].RawMatrix().Data
		dzr := dz.RawMatrix().Data
		dhn := dhNext.RawMatrix().Data
		var dh []float64
		if dhs[t] != nil {
			dh = dhs[t].RawMatrix().Data
		}
		for bi := 0; bi < batch; bi++ {
			row := bi * 4 * H
			for j := 0; j < H; j++ {
				k := bi*H + j
				d := dhn[k]
				if dh != nil {
					d += dh[k]
				}
				i, f, g, o := ar[row+j], ar[row+H+j], ar[row+2*H+j], ar[row+3*H+j]
				tc := math.Tanh(ccur[k])
				dc := dcNext[k] + d*o*(1-tc*tc)
				dzr[row+j] = dc * g * i * (1 - i)
				dzr[row+H+j] = dc * cprev[k] * f * (1 - f)
				dzr[row+2*H+j] = dc * i * (1 - g*g)
				dzr[row+3*H+j] = d * tc * o * (1 - o)
				dcNext[k] = dc * f
			}
		}

		gw.Mul(cache.xs[t].T(), dz)
		l.w.g.Add(l.w.g, gw)
		gu.Mul(cache.hs[t].T(), dz)
		l.u.g.Add(l.u.g, gu)
		for bi := 0; bi < batch; bi++ {
			row := dzr[bi*4*H : (bi+1)*4*H]
			for j, v := range row {
				db[j] += v
			}
		}

		if needDx {
			dx := mat.NewDense(batch, l.in, nil)
			dx.Mul(dz, l.w.w.T())
			dxs[t] = dx
		}
		dhNext.Mul(dz, l.u.w.T())
	}
	return dxs
}

// dense is a fully connected layer y = xW + b.
type dense struct {
	in, out int
	w       *param
	b       *param
}

func newDense(name string, in, out int, r *rand.Rand) *dense {
	d := &dense{
		in:  in,
		out: out,
		w:   newParam(name+"/kernel", in, out),
		b:   newParam(name+"/bias", 1, out),
	}
	if r != nil {
		glorotUniform(d.w.w, r)
	}
	return d
}

func (d *dense) params() []*param { return []*param{d.w, d.b} }

func (d *dense) forward(x *mat.Dense) *mat.Dense {
	batch, _ := x.Dims()
	y := mat.NewDense(batch, d.out, nil)
	y.Mul(x, d.w.w)
	bias := d.b.w.RawRowView(0)
	for bi := 0; bi < batch; bi++ {
		row := y.RawRowView(bi)
		for j := range row {
			row[j] += bias[j]
		}
	}
	return y
}

func (d *dense) backward(x, dy *mat.Dense) *mat.Dense {
	gw := mat.NewDense(d.in, d.out, nil)
	gw.Mul(x.T(), dy)
	d.w.g.Add(d.w.g, gw)
	db := d.b.g.RawRowView(0)
	batch, _ := dy.Dims()
	for bi := 0; bi < batch; bi++ {
		for j, v := range dy.RawRowView(bi) {
			db[j] += v
		}
	}
	dx := mat.NewDense(batch, d.in, nil)
	dx.Mul(dy, d.w.w.T())
	return dx
}

// dropout applies inverted dropout and returns the output with the mask
// used. A nil rng or zero rate is the identity with a nil mask.
func dropout(x *mat.Dense, rate float64, r *rand.Rand) (*mat.Dense, []float64) {
	if r == nil || rate == 0 {
		return x, nil
	}
	rows, cols := x.Dims()
	out := mat.NewDense(rows, cols, nil)
	mask := make([]float64, rows*cols)
	keep := 1 / (1 - rate)
	xr, or := x.RawMatrix().Data, out.RawMatrix().Data
	for i := range mask {
		if r.Float64() >= rate {
			mask[i] = keep
		}
		or[i] = xr[i] * mask[i]
	}
	return out, mask
}

// applyMask multiplies d in place by mask. A nil mask is a no-op.
func applyMask(d *mat.Dense, mask []float64) {
	if mask == nil {
		return
	}
	dr := d.RawMatrix().Data
	for i := range dr {
		dr[i] *= mask[i]
	}
}

func relu(x *mat.Dense) *mat.Dense {
	rows, cols := x.Dims()
	out := mat.NewDense(rows, cols, nil)
	xr, or := x.RawMatrix().Data, out.RawMatrix().Data
	for i, v := range xr {
		if v > 0 {
			or[i] = v
		}
	}
	return out
}

// reluBackward zeroes dy where the pre-activation z was not positive.
func reluBackward(z, dy *mat.Dense) {
	zr, dr := z.RawMatrix().Data, dy.RawMatrix().Data
	for i, v := range zr {
		if v <= 0 {
			dr[i] = 0
		}
	}
}

// Softmax returns the normalized exponentials of logits.
func Softmax(logits []float64) []float64 {
	out := make([]float64, len(logits))
	peak := math.Inf(-1)
	for _, v := range logits {
		peak = max(peak, v)
	}
	sum := 0.0
	for i, v := range logits {
		out[i] = math.Exp(v - peak)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// Argmax returns the index of the largest value, preferring the lowest
// index on ties.
func Argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

// CrossEntropy returns -log p[label] with p clipped away from zero.
func CrossEntropy(p []float64, label int) float64 {
	const eps = 1e-7
	return -math.Log(min(max(p[label], eps), 1-eps))
}

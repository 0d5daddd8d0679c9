package nn

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// ErrInput is returned when an input batch does not match the model.
var ErrInput = errors.New("nn: invalid input")

// Model is the LSTM emotion classifier.
type Model struct {
	cfg Config

	lstm1  *lstm
	lstm2  *lstm
	hidden *dense
	out    *dense

	opt *adam

	// Meta is free-form provenance stored with the model file.
	Meta map[string]string
}

// New creates a model with freshly initialized weights drawn from a PCG
// generator seeded with seed.
func New(cfg Config, seed uint64) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return build(cfg, r), nil
}

// build allocates the layers. A nil r leaves weights zero.
func build(cfg Config, r *rand.Rand) *Model {
	return &Model{
		cfg:    cfg,
		lstm1:  newLSTM("lstm1", cfg.InputSize, cfg.LSTM1, r),
		lstm2:  newLSTM("lstm2", cfg.LSTM1, cfg.LSTM2, r),
		hidden: newDense("dense1", cfg.LSTM2, cfg.Dense, r),
		out:    newDense("dense2", cfg.Dense, cfg.Classes, r),
		Meta:   map[string]string{},
	}
}

// Config returns the model architecture.
func (m *Model) Config() Config { return m.cfg }

func (m *Model) params() []*param {
	var ps []*param
	ps = append(ps, m.lstm1.params()...)
	ps = append(ps, m.lstm2.params()...)
	ps = append(ps, m.hidden.params()...)
	ps = append(ps, m.out.params()...)
	return ps
}

// NumParams returns the number of trainable scalars.
func (m *Model) NumParams() int {
	n := 0
	for _, p := range m.params() {
		r, c := p.w.Dims()
		n += r * c
	}
	return n
}

// Forward returns class probabilities for one (InputSteps, InputSize)
// sequence. Dropout is disabled.
func (m *Model) Forward(x [][]float64) ([]float64, error) {
	out, err := m.ForwardBatch([][][]float64{x})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// ForwardBatch returns class probabilities for each sequence in xs.
func (m *Model) ForwardBatch(xs [][][]float64) ([][]float64, error) {
	steps, err := m.steps(xs)
	if err != nil {
		return nil, err
	}
	p := m.forward(steps, nil, false)
	return probabilities(p.logits), nil
}

// pass holds the activations of one forward pass.
type pass struct {
	c1     *lstmCache
	m1     [][]float64
	seq    []*mat.Dense // dropped lstm1 outputs
	c2     *lstmCache
	last   *mat.Dense // dropped lstm2 final state
	m2     []float64
	z3     *mat.Dense
	a3     *mat.Dense // dropped relu(z3)
	m3     []float64
	logits *mat.Dense
}

func (m *Model) forward(steps []*mat.Dense, r *rand.Rand, keep bool) *pass {
	rate := m.cfg.Dropout
	p := &pass{}

	h1, c1 := m.lstm1.forward(steps, keep)
	p.c1 = c1
	p.seq = make([]*mat.Dense, len(h1))
	if r != nil && rate > 0 {
		p.m1 = make([][]float64, len(h1))
	}
	for t, h := range h1 {
		var mask []float64
		p.seq[t], mask = dropout(h, rate, r)
		if p.m1 != nil {
			p.m1[t] = mask
		}
	}

	h2, c2 := m.lstm2.forward(p.seq, keep)
	p.c2 = c2
	p.last, p.m2 = dropout(h2[len(h2)-1], rate, r)

	p.z3 = m.hidden.forward(p.last)
	p.a3, p.m3 = dropout(relu(p.z3), rate, r)
	p.logits = m.out.forward(p.a3)
	return p
}

// backprop runs a training forward pass with dropout drawn from r,
// accumulates mean gradients into the params and returns the mean loss.
func (m *Model) backprop(xs [][][]float64, labels []int, r *rand.Rand) (float64, error) {
	steps, err := m.steps(xs)
	if err != nil {
		return 0, err
	}
	if len(labels) != len(xs) {
		return 0, fmt.Errorf("%w: %d labels for %d inputs", ErrInput, len(labels), len(xs))
	}
	for _, l := range labels {
		if l < 0 || l >= m.cfg.Classes {
			return 0, fmt.Errorf("%w: label %d out of range", ErrInput, l)
		}
	}

	for _, ps := range m.params() {
		ps.zeroGrad()
	}
	p := m.forward(steps, r, true)

	batch := len(xs)
	probs := probabilities(p.logits)
	dlogits := mat.NewDense(batch, m.cfg.Classes, nil)
	loss := 0.0
	for bi, pr := range probs {
		loss += CrossEntropy(pr, labels[bi])
		row := dlogits.RawRowView(bi)
		for j, v := range pr {
			row[j] = v / float64(batch)
		}
		row[labels[bi]] -= 1 / float64(batch)
	}
	loss /= float64(batch)

	da3 := m.out.backward(p.a3, dlogits)
	applyMask(da3, p.m3)
	reluBackward(p.z3, da3)
	dlast := m.hidden.backward(p.last, da3)
	applyMask(dlast, p.m2)

	dh2 := make([]*mat.Dense, len(steps))
	dh2[len(dh2)-1] = dlast
	dseq := m.lstm2.backward(p.c2, dh2, true)
	if p.m1 != nil {
		for t, d := range dseq {
			applyMask(d, p.m1[t])
		}
	}
	m.lstm1.backward(p.c1, dseq, false)
	return loss, nil
}

// TrainStep performs one Adam update on a mini-batch and returns the mean
// cross-entropy loss before the update. Dropout masks are drawn from r; a
// nil r disables dropout. A non-finite loss is returned without updating
// the weights.
func (m *Model) TrainStep(xs [][][]float64, labels []int, r *rand.Rand) (float64, error) {
	loss, err := m.backprop(xs, labels, r)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return loss, nil
	}
	if m.opt == nil {
		m.opt = newAdam(m.cfg.LearningRate)
	}
	m.opt.step(m.params())
	return loss, nil
}

// steps converts a batch of sequences into one B×InputSize matrix per
// time step.
func (m *Model) steps(xs [][][]float64) ([]*mat.Dense, error) {
	if len(xs) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrInput)
	}
	T, D := m.cfg.InputSteps, m.cfg.InputSize
	out := make([]*mat.Dense, T)
	for t := range out {
		out[t] = mat.NewDense(len(xs), D, nil)
	}
	for bi, x := range xs {
		if len(x) != T {
			return nil, fmt.Errorf("%w: sequence %d has %d steps, want %d", ErrInput, bi, len(x), T)
		}
		for t, row := range x {
			if len(row) != D {
				return nil, fmt.Errorf("%w: sequence %d step %d has %d features, want %d", ErrInput, bi, t, len(row), D)
			}
			copy(out[t].RawRowView(bi), row)
		}
	}
	return out, nil
}

func probabilities(logits *mat.Dense) [][]float64 {
	batch, _ := logits.Dims()
	out := make([][]float64, batch)
	for bi := range out {
		out[bi] = Softmax(logits.RawRowView(bi))
	}
	return out
}

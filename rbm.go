package boltzmann

import (
	"encoding/gob"
	"os"
	"time"

	rng "github.com/leesper/go_rng"
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
	"gorgonia.org/tensor/native"
	"gorgonia.org/vecf32"
)

// RBM is a restricted Boltzmann machine with binary visible and hidden units.
//
// W is laid out hidden×visible. W2 and W3 hold the elementwise square and
// cube of W; they may be nil until a TAP approximation first needs them, and
// are refreshed on every weight commit while one is active. The gradient
// buffers and the persistent chain are owned by the model and are only ever
// mutated by fitBatch and Fit.
type RBM struct {
	W  *tensor.Dense
	W2 *tensor.Dense
	W3 *tensor.Dense

	Vbias *tensor.Dense
	Hbias *tensor.Dense

	Momentum float32

	// gradient buffer and its previous value, for the momentum term
	dW     *tensor.Dense
	dWPrev *tensor.Dense

	// persistent chain, nil until Fit seeds it
	chainVis *tensor.Dense
	chainHid *tensor.Dense

	rnd *rng.UniformGenerator
}

type rbmOpts struct {
	seed     int64
	momentum float32
	init     G.InitWFn
}

// RBMOpt is a construction option for NewRBM.
type RBMOpt func(*rbmOpts)

// WithSeed fixes the RNG seed of the model's sampling stream.
func WithSeed(seed int64) RBMOpt {
	return func(o *rbmOpts) { o.seed = seed }
}

// WithMomentum sets the momentum coefficient. The default is 0.5.
func WithMomentum(m float32) RBMOpt {
	return func(o *rbmOpts) { o.momentum = m }
}

// WithInit sets the weight initializer. The default is Gaussian(0, 0.01).
func WithInit(fn G.InitWFn) RBMOpt {
	return func(o *rbmOpts) { o.init = fn }
}

// NewRBM creates a model with nVisible×nHidden units, Gaussian weights and
// zero biases.
func NewRBM(nVisible, nHidden int, opts ...RBMOpt) *RBM {
	o := rbmOpts{
		seed:     time.Now().UnixNano(),
		momentum: 0.5,
		init:     G.Gaussian(0, 0.01),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &RBM{
		W:        tensor.New(tensor.WithShape(nHidden, nVisible), tensor.WithBacking(o.init(Float, nHidden, nVisible))),
		Vbias:    tensor.New(tensor.WithShape(nVisible), tensor.Of(Float)),
		Hbias:    tensor.New(tensor.WithShape(nHidden), tensor.Of(Float)),
		Momentum: o.momentum,
		dW:       tensor.New(tensor.WithShape(nHidden, nVisible), tensor.Of(Float)),
		dWPrev:   tensor.New(tensor.WithShape(nHidden, nVisible), tensor.Of(Float)),
		rnd:      rng.NewUniformGenerator(o.seed),
	}
}

func (r *RBM) NVisible() int { return r.W.Shape()[1] }
func (r *RBM) NHidden() int  { return r.W.Shape()[0] }

func (r *RBM) checkVis(v *tensor.Dense) error {
	if v.Dims() != 2 || v.Shape()[0] != r.NVisible() {
		return errors.Errorf("visible matrix shape %v does not match %d visible units", v.Shape(), r.NVisible())
	}
	return nil
}

func (r *RBM) checkHid(h *tensor.Dense) error {
	if h.Dims() != 2 || h.Shape()[0] != r.NHidden() {
		return errors.Errorf("hidden matrix shape %v does not match %d hidden units", h.Shape(), r.NHidden())
	}
	return nil
}

// ProbHidCondOnVis returns P(h=1|v) for every column of vis.
func (r *RBM) ProbHidCondOnVis(vis *tensor.Dense) (*tensor.Dense, error) {
	if err := r.checkVis(vis); err != nil {
		return nil, err
	}
	prod, err := tensor.MatMul(r.W, vis)
	if err != nil {
		return nil, errors.Wrapf(err, "W·v: %v·%v", r.W.Shape(), vis.Shape())
	}
	means := prod.(*tensor.Dense)
	addBiasSigmoid(means, r.Hbias)
	return means, nil
}

// ProbVisCondOnHid returns P(v=1|h) for every column of hid.
func (r *RBM) ProbVisCondOnHid(hid *tensor.Dense) (*tensor.Dense, error) {
	if err := r.checkHid(hid); err != nil {
		return nil, err
	}
	wT, err := transposed(r.W)
	if err != nil {
		return nil, err
	}
	prod, err := tensor.MatMul(wT, hid)
	if err != nil {
		return nil, errors.Wrapf(err, "Wᵀ·h: %v·%v", wT.Shape(), hid.Shape())
	}
	means := prod.(*tensor.Dense)
	addBiasSigmoid(means, r.Vbias)
	return means, nil
}

// SampleHiddens draws a binary hidden state from P(h|v) and also returns the
// conditional means.
func (r *RBM) SampleHiddens(vis *tensor.Dense) (samples, means *tensor.Dense, err error) {
	if means, err = r.ProbHidCondOnVis(vis); err != nil {
		return nil, nil, err
	}
	return r.bernoulli(means), means, nil
}

// SampleVisibles draws a binary visible state from P(v|h) and also returns
// the conditional means.
func (r *RBM) SampleVisibles(hid *tensor.Dense) (samples, means *tensor.Dense, err error) {
	if means, err = r.ProbVisCondOnHid(hid); err != nil {
		return nil, nil, err
	}
	return r.bernoulli(means), means, nil
}

func (r *RBM) bernoulli(p *tensor.Dense) *tensor.Dense {
	out := p.Clone().(*tensor.Dense)
	d := out.Data().([]float32)
	for i, q := range d {
		if r.rnd.Float32() < q {
			d[i] = 1
		} else {
			d[i] = 0
		}
	}
	return out
}

// Transform returns the hidden representation (conditional means) of X.
func (r *RBM) Transform(X *tensor.Dense) (*tensor.Dense, error) {
	return r.ProbHidCondOnVis(X)
}

// Generate draws visible samples by running a Gibbs chain for nGibbs steps
// starting from vis.
func (r *RBM) Generate(vis *tensor.Dense, nGibbs int) (*tensor.Dense, error) {
	hSamples, _, err := r.SampleHiddens(vis)
	if err != nil {
		return nil, err
	}
	vNeg, _, err := r.gibbs(hSamples, nGibbs)
	return vNeg, err
}

// FreeEnergy returns the free energy of every column of vis:
// F(v) = −vᵀ·vbias − Σ softplus(W·v + hbias).
func (r *RBM) FreeEnergy(vis *tensor.Dense) ([]float32, error) {
	if err := r.checkVis(vis); err != nil {
		return nil, err
	}
	prod, err := tensor.MatMul(r.W, vis)
	if err != nil {
		return nil, errors.Wrapf(err, "W·v: %v·%v", r.W.Shape(), vis.Shape())
	}
	pm, err := native.MatrixF32(prod.(*tensor.Dense))
	if err != nil {
		return nil, errors.Wrap(err, "free energy")
	}
	vm, err := native.MatrixF32(vis)
	if err != nil {
		return nil, errors.Wrap(err, "free energy")
	}
	vb := r.Vbias.Data().([]float32)
	hb := r.Hbias.Data().([]float32)
	fe := make([]float32, vis.Shape()[1])
	for i, row := range vm {
		for j, x := range row {
			fe[j] -= vb[i] * x
		}
	}
	for k, row := range pm {
		for j, x := range row {
			fe[j] -= softplus(x + hb[k])
		}
	}
	return fe, nil
}

// ScoreSamples returns a pseudo likelihood proxy for the mean log likelihood
// of X: one randomly chosen unit per sample is flipped and the free energy
// gap to the original is scored.
func (r *RBM) ScoreSamples(X *tensor.Dense) (float32, error) {
	fe, err := r.FreeEnergy(X)
	if err != nil {
		return 0, err
	}
	corrupted := X.Clone().(*tensor.Dense)
	cm, err := native.MatrixF32(corrupted)
	if err != nil {
		return 0, errors.Wrap(err, "score")
	}
	nVis := r.NVisible()
	for j := range fe {
		i := int(r.rnd.Int32n(int32(nVis)))
		cm[i][j] = 1 - cm[i][j]
	}
	feFlip, err := r.FreeEnergy(corrupted)
	if err != nil {
		return 0, err
	}
	var total float32
	for j := range fe {
		// log σ(Δ) = −softplus(−Δ)
		total -= float32(nVis) * softplus(-(feFlip[j] - fe[j]))
	}
	return total / float32(len(fe)), nil
}

// refreshPowers recomputes W2 (and W3 for third order) from W. Stale powers
// after a weight commit are a correctness bug, so this runs on every commit
// while a TAP approximation is active. Missing matrices are allocated here,
// which is what makes a hand built model without a W3 work on its first
// third order batch.
func (r *RBM) refreshPowers(a Approx) {
	if !a.tap() {
		return
	}
	if r.W2 == nil {
		r.W2 = r.W.Clone().(*tensor.Dense)
	}
	w := r.W.Data().([]float32)
	w2 := r.W2.Data().([]float32)
	copy(w2, w)
	vecf32.Mul(w2, w)
	if a != Tap3 {
		return
	}
	if r.W3 == nil {
		r.W3 = r.W.Clone().(*tensor.Dense)
	}
	w3 := r.W3.Data().([]float32)
	copy(w3, w2)
	vecf32.Mul(w3, w)
}

// initChain seeds the persistent chain from a random column subsample of X
// and its hidden conditional expectation. Fit calls this once, before the
// first epoch.
func (r *RBM) initChain(X *tensor.Dense, batchSize int) error {
	xm, err := native.MatrixF32(X)
	if err != nil {
		return errors.Wrap(err, "chain init")
	}
	nSamples := X.Shape()[1]
	chain := tensor.New(tensor.WithShape(r.NVisible(), batchSize), tensor.Of(Float))
	cm, err := native.MatrixF32(chain)
	if err != nil {
		return errors.Wrap(err, "chain init")
	}
	for j := 0; j < batchSize; j++ {
		col := int(r.rnd.Int32n(int32(nSamples)))
		for i := range cm {
			cm[i][j] = xm[i][col]
		}
	}
	hid, err := r.ProbHidCondOnVis(chain)
	if err != nil {
		return errors.Wrap(err, "chain init")
	}
	r.chainVis = chain
	r.chainHid = hid
	return nil
}

// Save writes the model parameters to filename.
func (r *RBM) Save(filename string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrapf(err, "save %q", filename)
	}
	defer f.Close()

	enc := gob.NewEncoder(f)
	return enc.Encode(r)
}

// LoadRBM reads a model saved by Save. The RNG stream is reseeded and the
// gradient buffers start out zeroed.
func LoadRBM(filename string) (*RBM, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	r := new(RBM)
	dec := gob.NewDecoder(f)
	if err = dec.Decode(r); err != nil {
		return nil, errors.Wrapf(err, "load %q", filename)
	}
	s := r.W.Shape()
	r.dW = tensor.New(tensor.WithShape(s[0], s[1]), tensor.Of(Float))
	r.dWPrev = tensor.New(tensor.WithShape(s[0], s[1]), tensor.Of(Float))
	r.rnd = rng.NewUniformGenerator(time.Now().UnixNano())
	return r, nil
}

package boltzmann

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// negativePhase produces the model driven visible/hidden matrices for one
// mini batch. CD ignores vInit: the Gibbs chain starts from the hidden layer.
func negativePhase(r *RBM, vInit, hInit *tensor.Dense, approx Approx, iters int) (vNeg, hNeg *tensor.Dense, err error) {
	if approx.meanField() {
		return r.equilibrate(vInit, hInit, approx, iters)
	}
	return r.gibbs(hInit, iters)
}

// gibbs runs alternating Gibbs sampling starting from the hidden layer. The
// returned visible state is the sampled (binary) draw while the hidden state
// is the conditional mean: the visible samples carry the noise CD calls for,
// the hidden means keep the gradient variance down.
func (r *RBM) gibbs(hid *tensor.Dense, iters int) (vNeg, hNeg *tensor.Dense, err error) {
	if iters < 1 {
		return nil, nil, errors.Errorf("gibbs sampling needs at least 1 step, got %d", iters)
	}
	h := hid
	for i := 0; i < iters; i++ {
		var vSamples, hSamples, hMeans *tensor.Dense
		if vSamples, _, err = r.SampleVisibles(h); err != nil {
			return nil, nil, errors.Wrapf(err, "gibbs step %d", i)
		}
		if hSamples, hMeans, err = r.SampleHiddens(vSamples); err != nil {
			return nil, nil, errors.Wrapf(err, "gibbs step %d", i)
		}
		vNeg, hNeg = vSamples, hMeans
		h = hSamples
	}
	return vNeg, hNeg, nil
}

// equilibrate runs the deterministic mean field fixed point iteration for the
// requested number of steps and returns the magnetizations. The visible
// update runs first, mirroring the Gibbs chain order.
func (r *RBM) equilibrate(vInit, hInit *tensor.Dense, approx Approx, iters int) (mVis, mHid *tensor.Dense, err error) {
	mVis = vInit.Clone().(*tensor.Dense)
	mHid = hInit.Clone().(*tensor.Dense)
	for i := 0; i < iters; i++ {
		if err = r.magnetizeVis(mVis, mHid, approx); err != nil {
			return nil, nil, errors.Wrapf(err, "equilibration step %d", i)
		}
		if err = r.magnetizeHid(mHid, mVis, approx); err != nil {
			return nil, nil, errors.Wrapf(err, "equilibration step %d", i)
		}
	}
	return mVis, mHid, nil
}

// magnetizeVis updates the visible magnetizations in place:
//
//	m_v = σ( Wᵀ·m_h + vbias
//	       + (½−m_v)∘(W2ᵀ·(m_h−m_h²))                    [tap2, tap3]
//	       + (⅓−2(m_v−m_v²))∘(W3ᵀ·((m_h−m_h²)∘(½−m_h))) ) [tap3]
//
// The correction terms are the stationarity conditions of the second and
// third order Georges–Yedidia expansion of the free energy, the same
// expansion the TAP weight gradient corrections come from.
func (r *RBM) magnetizeVis(mVis, mHid *tensor.Dense, approx Approx) error {
	wT, err := transposed(r.W)
	if err != nil {
		return err
	}
	prod, err := tensor.MatMul(wT, mHid)
	if err != nil {
		return errors.Wrapf(err, "Wᵀ·h: %v·%v", wT.Shape(), mHid.Shape())
	}
	arg := prod.(*tensor.Dense).Data().([]float32)

	var s2, s3 []float32
	if approx.tap() {
		w2T, err := transposed(r.W2)
		if err != nil {
			return err
		}
		p2, err := tensor.MatMul(w2T, fluctuation(mHid))
		if err != nil {
			return errors.Wrap(err, "W2ᵀ·(h−h²)")
		}
		s2 = p2.(*tensor.Dense).Data().([]float32)
	}
	if approx == Tap3 {
		w3T, err := transposed(r.W3)
		if err != nil {
			return err
		}
		hf := fluctuation(mHid)
		mulHalfMinus(hf, mHid)
		p3, err := tensor.MatMul(w3T, hf)
		if err != nil {
			return errors.Wrap(err, "W3ᵀ·((h−h²)∘(½−h))")
		}
		s3 = p3.(*tensor.Dense).Data().([]float32)
	}

	mv := mVis.Data().([]float32)
	bias := r.Vbias.Data().([]float32)
	cols := mVis.Shape()[1]
	for i := range arg {
		x := arg[i] + bias[i/cols]
		if s2 != nil {
			x += (0.5 - mv[i]) * s2[i]
		}
		if s3 != nil {
			x += (1.0/3.0 - 2*(mv[i]-mv[i]*mv[i])) * s3[i]
		}
		mv[i] = sigmoid(x)
	}
	return nil
}

// magnetizeHid updates the hidden magnetizations in place. Mirror image of
// magnetizeVis.
func (r *RBM) magnetizeHid(mHid, mVis *tensor.Dense, approx Approx) error {
	prod, err := tensor.MatMul(r.W, mVis)
	if err != nil {
		return errors.Wrapf(err, "W·v: %v·%v", r.W.Shape(), mVis.Shape())
	}
	arg := prod.(*tensor.Dense).Data().([]float32)

	var s2, s3 []float32
	if approx.tap() {
		p2, err := tensor.MatMul(r.W2, fluctuation(mVis))
		if err != nil {
			return errors.Wrap(err, "W2·(v−v²)")
		}
		s2 = p2.(*tensor.Dense).Data().([]float32)
	}
	if approx == Tap3 {
		vf := fluctuation(mVis)
		mulHalfMinus(vf, mVis)
		p3, err := tensor.MatMul(r.W3, vf)
		if err != nil {
			return errors.Wrap(err, "W3·((v−v²)∘(½−v))")
		}
		s3 = p3.(*tensor.Dense).Data().([]float32)
	}

	mh := mHid.Data().([]float32)
	bias := r.Hbias.Data().([]float32)
	cols := mHid.Shape()[1]
	for i := range arg {
		x := arg[i] + bias[i/cols]
		if s2 != nil {
			x += (0.5 - mh[i]) * s2[i]
		}
		if s3 != nil {
			x += (1.0/3.0 - 2*(mh[i]-mh[i]*mh[i])) * s3[i]
		}
		mh[i] = sigmoid(x)
	}
	return nil
}

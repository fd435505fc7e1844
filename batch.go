package boltzmann

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// fitBatch runs one mini batch update: positive phase, negative phase,
// gradient, regularization, commit, bias update. It mutates only the model's
// weights, biases, gradient buffers and (in persistent mode) the stored
// chain; the input batch is never written to.
func fitBatch(r *RBM, vis *tensor.Dense, conf Config, persistent bool, lr float32) error {
	if err := r.checkVis(vis); err != nil {
		return err
	}
	r.refreshPowers(conf.Approx)

	vPos := vis
	hSamples, hPos, err := r.SampleHiddens(vis)
	if err != nil {
		return errors.Wrap(err, "positive phase")
	}

	// Seeding of the negative phase. The CD branches differ from the mean
	// field ones on purpose: CD starts its chain from the hidden layer, so
	// vInit is set but never consumed, and in persistent mode the chain
	// state flows through a fresh hidden draw off the stored visible chain.
	var vInit, hInit *tensor.Dense
	switch {
	case persistent && conf.Approx == CD:
		vInit = vis
		if hInit, _, err = r.SampleHiddens(r.chainVis); err != nil {
			return errors.Wrap(err, "persistent chain")
		}
	case persistent:
		vInit = r.chainVis
		hInit = r.chainHid
	case conf.Approx == CD:
		vInit = vis
		hInit = hSamples
	default:
		vInit = vis
		hInit = hPos
	}

	vNeg, hNeg, err := negativePhase(r, vInit, hInit, conf.Approx, conf.ApproxIters)
	if err != nil {
		return errors.Wrap(err, "negative phase")
	}

	if persistent {
		copy(r.chainVis.Data().([]float32), vNeg.Data().([]float32))
		copy(r.chainHid.Data().([]float32), hNeg.Data().([]float32))
	}

	if err = r.computeGradient(hPos, vPos, hNeg, vNeg, lr, conf.Approx); err != nil {
		return err
	}
	r.regularize(conf.Decay, conf.DecayMagnitude, lr)
	r.commit(conf.Approx)
	return r.updateBiases(vPos, hPos, vNeg, hNeg, lr)
}

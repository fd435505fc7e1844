package boltzmann

import (
	"gorgonia.org/tensor"
	"gorgonia.org/vecf32"
)

// computeGradient fills the model's gradient buffer from one batch worth of
// positive and negative phase matrices:
//
//	dW = lr·(h_pos·v_posᵀ − h_neg·v_negᵀ)
//	   − lr·[(h_neg−h_neg²)·(v_neg−v_neg²)ᵀ] ∘ W                          [tap2, tap3]
//	   − 2·lr·[((h_neg−h_neg²)∘(½−h_neg))·((v_neg−v_neg²)∘(½−v_neg))ᵀ] ∘ W2 [tap3]
//	   + momentum·dW_prev
//
// The correction coefficients and signs are Taylor terms of the mean field
// free energy and are not tunable. Only the gradient buffer is written;
// committing the update is a separate step so regularization can run in
// between.
func (r *RBM) computeGradient(hPos, vPos, hNeg, vNeg *tensor.Dense, lr float32, approx Approx) error {
	pos, err := matmulT(hPos, vPos)
	if err != nil {
		return err
	}
	neg, err := matmulT(hNeg, vNeg)
	if err != nil {
		return err
	}
	dw := r.dW.Data().([]float32)
	copy(dw, pos.Data().([]float32))
	vecf32.Sub(dw, neg.Data().([]float32))
	vecf32.Scale(dw, lr)

	if approx.tap() {
		corr, err := matmulT(fluctuation(hNeg), fluctuation(vNeg))
		if err != nil {
			return err
		}
		c := corr.Data().([]float32)
		vecf32.Mul(c, r.W.Data().([]float32))
		vecf32.Scale(c, lr)
		vecf32.Sub(dw, c)
	}
	if approx == Tap3 {
		hf := fluctuation(hNeg)
		mulHalfMinus(hf, hNeg)
		vf := fluctuation(vNeg)
		mulHalfMinus(vf, vNeg)
		corr, err := matmulT(hf, vf)
		if err != nil {
			return err
		}
		c := corr.Data().([]float32)
		vecf32.Mul(c, r.W2.Data().([]float32))
		vecf32.Scale(c, 2*lr)
		vecf32.Sub(dw, c)
	}

	if r.Momentum != 0 {
		prev := make([]float32, len(dw))
		copy(prev, r.dWPrev.Data().([]float32))
		vecf32.Scale(prev, r.Momentum)
		vecf32.Add(dw, prev)
	}
	return nil
}

// commit applies the gradient buffer to the weights, saves it for the next
// momentum term and refreshes the derived weight powers.
func (r *RBM) commit(approx Approx) {
	vecf32.Add(r.W.Data().([]float32), r.dW.Data().([]float32))
	copy(r.dWPrev.Data().([]float32), r.dW.Data().([]float32))
	r.refreshPowers(approx)
}

// updateBiases moves the bias vectors by the summed per sample difference
// between positive and negative phase. The two phases may have different
// sample counts (short last batch against a full sized persistent chain), so
// each side is reduced before subtracting.
func (r *RBM) updateBiases(vPos, hPos, vNeg, hNeg *tensor.Dense, lr float32) error {
	vp, err := tensor.Sum(vPos, 1)
	if err != nil {
		return err
	}
	vn, err := tensor.Sum(vNeg, 1)
	if err != nil {
		return err
	}
	hp, err := tensor.Sum(hPos, 1)
	if err != nil {
		return err
	}
	hn, err := tensor.Sum(hNeg, 1)
	if err != nil {
		return err
	}
	vb := r.Vbias.Data().([]float32)
	vpD := vp.Data().([]float32)
	vnD := vn.Data().([]float32)
	for i := range vb {
		vb[i] += lr * (vpD[i] - vnD[i])
	}
	hb := r.Hbias.Data().([]float32)
	hpD := hp.Data().([]float32)
	hnD := hn.Data().([]float32)
	for i := range hb {
		hb[i] += lr * (hpD[i] - hnD[i])
	}
	return nil
}

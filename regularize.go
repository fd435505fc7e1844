package boltzmann

import "github.com/chewxy/math32"

// regularize applies the configured weight decay to the gradient buffer in
// place. A NaN magnitude means no decay was configured and is distinct from
// an explicit zero, which is applied (to no effect) like any other value.
// The operation is stateless: applying it twice doubles the shrinkage.
//
// Dropout is recognized as a configuration option but is not implemented.
// Fit reports it once through the Observer; there is deliberately no dropout
// branch here.
func (r *RBM) regularize(kind Decay, magnitude, lr float32) {
	if math32.IsNaN(magnitude) {
		return
	}
	dw := r.dW.Data().([]float32)
	w := r.W.Data().([]float32)
	switch kind {
	case DecayL2:
		for i := range dw {
			dw[i] -= lr * magnitude * w[i]
		}
	case DecayL1:
		for i := range dw {
			dw[i] -= lr * magnitude * sign(w[i])
		}
	}
}

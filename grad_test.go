package boltzmann

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
)

// outerDiff computes lr·(hp·vpᵀ − hn·vnᵀ) by hand, row major hid×vis.
func outerDiff(hp, vp, hn, vn []float32, nHid, nVis, n int, lr float32) []float32 {
	out := make([]float32, nHid*nVis)
	for i := 0; i < nHid; i++ {
		for j := 0; j < nVis; j++ {
			var acc float32
			for k := 0; k < n; k++ {
				acc += hp[i*n+k]*vp[j*n+k] - hn[i*n+k]*vn[j*n+k]
			}
			out[i*nVis+j] = lr * acc
		}
	}
	return out
}

func TestGradientCD(t *testing.T) {
	r := testRBM(3, 2)
	hPos := mat(2, 2, 0.9, 0.1, 0.2, 0.8)
	vPos := mat(3, 2, 1, 0, 0, 1, 1, 1)
	hNeg := mat(2, 2, 0.5, 0.5, 0.4, 0.6)
	vNeg := mat(3, 2, 0, 1, 1, 0, 0, 1)
	const lr = 0.5

	if err := r.computeGradient(hPos, vPos, hNeg, vNeg, lr, CD); err != nil {
		t.Fatalf("%+v", err)
	}
	want := outerDiff(f32s(hPos), f32s(vPos), f32s(hNeg), f32s(vNeg), 2, 3, 2, lr)
	assert.InDeltaSlice(t, want, f32s(r.dW), 1e-5)
}

func TestGradientMomentumLinearity(t *testing.T) {
	hPos, vPos := uniformMat(2, 4), uniformMat(3, 4)
	hNeg, vNeg := uniformMat(2, 4), uniformMat(3, 4)
	const lr = 0.1

	plain := testRBM(3, 2)
	if err := plain.computeGradient(hPos, vPos, hNeg, vNeg, lr, CD); err != nil {
		t.Fatalf("%+v", err)
	}

	prev := []float32{1, -2, 3, -4, 5, -6}
	withM := testRBM(3, 2, WithMomentum(0.7))
	copy(f32s(withM.dWPrev), prev)
	if err := withM.computeGradient(hPos, vPos, hNeg, vNeg, lr, CD); err != nil {
		t.Fatalf("%+v", err)
	}

	want := make([]float32, len(prev))
	for i, p := range f32s(plain.dW) {
		want[i] = p + 0.7*prev[i]
	}
	assert.InDeltaSlice(t, want, f32s(withM.dW), 1e-5)
}

func TestGradientTap2Correction(t *testing.T) {
	r := testRBM(3, 2)
	r.refreshPowers(Tap2)
	hPos, vPos := uniformMat(2, 4), uniformMat(3, 4)
	hNeg, vNeg := uniformMat(2, 4), uniformMat(3, 4)
	const lr = 0.2

	if err := r.computeGradient(hPos, vPos, hNeg, vNeg, lr, CD); err != nil {
		t.Fatalf("%+v", err)
	}
	cdTerm := append([]float32(nil), f32s(r.dW)...)

	if err := r.computeGradient(hPos, vPos, hNeg, vNeg, lr, Tap2); err != nil {
		t.Fatalf("%+v", err)
	}

	// correction = lr·[(h−h²)(v−v²)ᵀ] ∘ W, subtracted from the CD term
	hn, vn, w := f32s(hNeg), f32s(vNeg), f32s(r.W)
	want := make([]float32, len(cdTerm))
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			var acc float32
			for k := 0; k < 4; k++ {
				h := hn[i*4+k]
				v := vn[j*4+k]
				acc += (h - h*h) * (v - v*v)
			}
			want[i*3+j] = cdTerm[i*3+j] - lr*acc*w[i*3+j]
		}
	}
	assert.InDeltaSlice(t, want, f32s(r.dW), 1e-5)
}

func TestTap2RefreshesPowers(t *testing.T) {
	r := testRBM(4, 3)
	conf := Config{LearnRate: 0.1, BatchSize: 5, Approx: Tap2, ApproxIters: 3}.withDefaults()
	if err := fitBatch(r, uniformMat(4, 5), conf, false, 0.02); err != nil {
		t.Fatalf("%+v", err)
	}
	w := f32s(r.W)
	for i, x := range f32s(r.W2) {
		if x != w[i]*w[i] {
			t.Fatalf("W2[%d] = %v, want exactly %v", i, x, w[i]*w[i])
		}
	}
}

func TestTap3LazyPowers(t *testing.T) {
	r := testRBM(4, 3)
	if r.W2 != nil || r.W3 != nil {
		t.Fatal("fresh model should not carry precomputed powers")
	}
	conf := Config{LearnRate: 0.1, BatchSize: 5, Approx: Tap3, ApproxIters: 2}.withDefaults()
	if err := fitBatch(r, uniformMat(4, 5), conf, false, 0.02); err != nil {
		t.Fatalf("%+v", err)
	}
	for i, x := range f32s(r.dW) {
		if math32.IsNaN(x) || math32.IsInf(x, 0) {
			t.Fatalf("dW[%d] = %v, want finite", i, x)
		}
	}
	if r.W3 == nil {
		t.Fatal("third order batch must have materialized W3")
	}
	w := f32s(r.W)
	for i, x := range f32s(r.W3) {
		if x != w[i]*w[i]*w[i] {
			t.Fatalf("W3[%d] = %v, want exactly %v", i, x, w[i]*w[i]*w[i])
		}
	}
}

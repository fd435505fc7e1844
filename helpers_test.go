package boltzmann

import (
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func mat(rows, cols int, vals ...float32) *tensor.Dense {
	return tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(vals))
}

func uniformMat(rows, cols int) *tensor.Dense {
	return tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(G.Uniform(0, 1)(Float, rows, cols)))
}

func testRBM(nVis, nHid int, opts ...RBMOpt) *RBM {
	opts = append([]RBMOpt{WithSeed(1337), WithMomentum(0)}, opts...)
	return NewRBM(nVis, nHid, opts...)
}

func f32s(t *tensor.Dense) []float32 {
	return t.Data().([]float32)
}

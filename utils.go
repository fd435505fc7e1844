package boltzmann

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
	"gorgonia.org/tensor/native"
)

// Float is the element type of every matrix in this package.
var Float = tensor.Float32

type slicer struct {
	v   tensor.View
	err error
}

func (s *slicer) Slice(a *tensor.Dense, slices ...tensor.Slice) *tensor.Dense {
	if s.err != nil {
		return nil
	}
	if s.v, s.err = a.Slice(slices...); s.err != nil {
		s.err = errors.Wrapf(s.err, "Slicer failed") // get a stack trace
		return nil
	}
	return s.v.(*tensor.Dense)
}

type rs struct {
	start, end, step int
}

func (s rs) Start() int { return s.start }
func (s rs) End() int   { return s.end }
func (s rs) Step() int  { return s.step }

// sli creates a ranged slice. It takes an optional step param.
func sli(start, end int, opts ...int) rs {
	step := 1
	if len(opts) > 0 {
		step = opts[0]
	}
	return rs{
		start: start,
		end:   end,
		step:  step,
	}
}

func sigmoid(x float32) float32 {
	return 1 / (1 + math32.Exp(-x))
}

func softplus(x float32) float32 {
	if x > 30 {
		return x
	}
	return math32.Log1p(math32.Exp(x))
}

func sign(x float32) float32 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

// transposed returns a contiguous copy of aᵀ.
func transposed(a *tensor.Dense) (*tensor.Dense, error) {
	am, err := native.MatrixF32(a)
	if err != nil {
		return nil, errors.Wrapf(err, "transpose of %v", a.Shape())
	}
	s := a.Shape()
	out := tensor.New(tensor.WithShape(s[1], s[0]), tensor.Of(Float))
	om, err := native.MatrixF32(out)
	if err != nil {
		return nil, errors.Wrapf(err, "transpose of %v", a.Shape())
	}
	for i := range am {
		for j, x := range am[i] {
			om[j][i] = x
		}
	}
	return out, nil
}

// matmulT computes a·bᵀ.
func matmulT(a, b *tensor.Dense) (*tensor.Dense, error) {
	bt, err := transposed(b)
	if err != nil {
		return nil, err
	}
	prod, err := tensor.MatMul(a, bt)
	if err != nil {
		return nil, errors.Wrapf(err, "matmul %v·%vᵀ", a.Shape(), b.Shape())
	}
	return prod.(*tensor.Dense), nil
}

// fluctuation returns m−m² elementwise.
func fluctuation(m *tensor.Dense) *tensor.Dense {
	out := m.Clone().(*tensor.Dense)
	d := out.Data().([]float32)
	for i, x := range d {
		d[i] = x - x*x
	}
	return out
}

// mulHalfMinus scales dst elementwise by ½−m.
func mulHalfMinus(dst, m *tensor.Dense) {
	d := dst.Data().([]float32)
	md := m.Data().([]float32)
	for i := range d {
		d[i] *= 0.5 - md[i]
	}
}

// addBiasSigmoid applies σ(x+b) in place, one bias entry per row.
func addBiasSigmoid(m *tensor.Dense, bias *tensor.Dense) {
	d := m.Data().([]float32)
	b := bias.Data().([]float32)
	cols := m.Shape()[1]
	for i := range d {
		d[i] = sigmoid(d[i] + b[i/cols])
	}
}

package boltzmann

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// DBM is a stack of RBM layers coupled by their conditional probabilities.
// Layers are pretrained greedily, bottom up, each on the hidden means of the
// layer below; there is no joint training pass.
type DBM struct {
	Layers []*RBM
}

// NewDBM builds a stack from unit counts: sizes[0] is the visible width,
// each following entry the width of one hidden layer.
func NewDBM(sizes []int, opts ...RBMOpt) (*DBM, error) {
	if len(sizes) < 2 {
		return nil, errors.New("dbm: need a visible width and at least one hidden width")
	}
	d := new(DBM)
	for i := 0; i < len(sizes)-1; i++ {
		d.Layers = append(d.Layers, NewRBM(sizes[i], sizes[i+1], opts...))
	}
	return d, nil
}

// Fit pretrains the stack layer by layer, propagating the data upward
// through each freshly trained layer's visible→hidden conditional. A
// validation set rides along the same way, so every layer scores against its
// own representation of it. The hidden means are probabilities, so every
// layer sees valid [0,1] input.
func (d *DBM) Fit(X *tensor.Dense, conf Config) ([]*Monitor, error) {
	data := X
	validation := conf.Validation
	monitors := make([]*Monitor, 0, len(d.Layers))
	for i, layer := range d.Layers {
		layerConf := conf
		layerConf.Validation = validation
		mon, err := Fit(layer, data, layerConf)
		if err != nil {
			return monitors, errors.Wrapf(err, "layer %d", i)
		}
		monitors = append(monitors, mon)
		if i < len(d.Layers)-1 {
			if data, err = layer.Transform(data); err != nil {
				return monitors, errors.Wrapf(err, "layer %d transform", i)
			}
			if validation != nil {
				if validation, err = layer.Transform(validation); err != nil {
					return monitors, errors.Wrapf(err, "layer %d validation transform", i)
				}
			}
		}
	}
	return monitors, nil
}

// Transform maps X through every layer's conditional means.
func (d *DBM) Transform(X *tensor.Dense) (*tensor.Dense, error) {
	data := X
	var err error
	for i, layer := range d.Layers {
		if data, err = layer.Transform(data); err != nil {
			return nil, errors.Wrapf(err, "layer %d transform", i)
		}
	}
	return data, nil
}

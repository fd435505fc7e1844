// Package boltzmann trains restricted Boltzmann machines with contrastive
// divergence and extended mean field (TAP) approximations, following
// "Training Restricted Boltzmann Machines via the Thouless-Anderson-Palmer
// Free Energy" (Gabrié, Tramel, Krzakala, 2015).
package boltzmann

import (
	"log"
	"os"
	"time"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Observer receives training lifecycle events. Implementations must be cheap:
// they run inline with the training loop.
type Observer interface {
	EpochStart(epoch, total int)
	BatchDone(epoch, batch int)
	EpochDone(rec EpochRecord)
	CheckpointWritten(epoch int, key string, err error)
	Notice(format string, args ...interface{})
}

type logObserver struct {
	l *log.Logger
}

func (o logObserver) EpochStart(epoch, total int) {
	o.l.Printf("epoch %d/%d", epoch, total)
}

func (o logObserver) BatchDone(epoch, batch int) {}

func (o logObserver) EpochDone(rec EpochRecord) {
	if math32.IsNaN(rec.ValidationScore) {
		o.l.Printf("epoch %d done in %v, score %.4f", rec.Epoch, rec.Elapsed, rec.Score)
		return
	}
	o.l.Printf("epoch %d done in %v, score %.4f, validation %.4f", rec.Epoch, rec.Elapsed, rec.Score, rec.ValidationScore)
}

func (o logObserver) CheckpointWritten(epoch int, key string, err error) {
	if err != nil {
		o.l.Printf("checkpoint %s failed: %v", key, err)
		return
	}
	o.l.Printf("checkpoint %s written", key)
}

func (o logObserver) Notice(format string, args ...interface{}) {
	o.l.Printf(format, args...)
}

type silentObserver struct{}

func (silentObserver) EpochStart(epoch, total int)                      {}
func (silentObserver) BatchDone(epoch, batch int)                       {}
func (silentObserver) EpochDone(rec EpochRecord)                        {}
func (silentObserver) CheckpointWritten(epoch int, key string, err error) {}
func (silentObserver) Notice(format string, args ...interface{})        {}

// Fit trains the model on X (features × samples, every value in [0,1]) and
// returns the completed monitor. The model is mutated in place: weights,
// biases, gradient buffers and the persistent chain. Checkpoint write
// failures are logged and skipped; everything else is fatal.
func Fit(r *RBM, X *tensor.Dense, conf Config) (*Monitor, error) {
	conf = conf.withDefaults()
	if err := conf.check(); err != nil {
		return nil, err
	}
	if err := r.checkVis(X); err != nil {
		return nil, err
	}
	if err := checkUnitRange(X); err != nil {
		return nil, err
	}
	if conf.Validation != nil {
		if err := r.checkVis(conf.Validation); err != nil {
			return nil, errors.Wrap(err, "validation set")
		}
		if err := checkUnitRange(conf.Validation); err != nil {
			return nil, errors.Wrap(err, "validation set")
		}
	}

	obs := conf.Observer
	if obs == nil {
		if conf.Silent {
			obs = silentObserver{}
		} else {
			obs = logObserver{l: log.New(os.Stderr, "", log.Ltime)}
		}
	}
	if conf.Dropout > 0 {
		obs.Notice("dropout %.2f requested but dropout is not implemented; ignoring", conf.Dropout)
	}

	// keeps the per sample gradient magnitude comparable across batch sizes
	lr := conf.LearnRate / float32(conf.BatchSize)
	nSamples := X.Shape()[1]

	if err := r.initChain(X, conf.BatchSize); err != nil {
		return nil, err
	}

	mon := new(Monitor)
	s := new(slicer)
	for epoch := 1; epoch <= conf.Epochs; epoch++ {
		obs.EpochStart(epoch, conf.Epochs)
		start := time.Now()
		persistent := conf.Persist && epoch >= conf.PersistStart

		for b, batchStart := 0, 0; batchStart < nSamples; b, batchStart = b+1, batchStart+conf.BatchSize {
			batchEnd := batchStart + conf.BatchSize
			if batchEnd > nSamples {
				batchEnd = nSamples
			}
			view := s.Slice(X, nil, sli(batchStart, batchEnd))
			if s.err != nil {
				return mon, s.err
			}
			batch := view.Materialize().(*tensor.Dense)
			if err := fitBatch(r, batch, conf, persistent, lr); err != nil {
				return mon, errors.Wrapf(err, "epoch %d batch %d", epoch, b)
			}
			obs.BatchDone(epoch, b)
		}
		elapsed := time.Since(start)

		if epoch%conf.MonitorEvery == 0 {
			score, err := r.ScoreSamples(X)
			if err != nil {
				return mon, err
			}
			rec := EpochRecord{
				Epoch:           epoch,
				Elapsed:         elapsed,
				Score:           score,
				ValidationScore: math32.NaN(),
			}
			if conf.Validation != nil {
				if rec.ValidationScore, err = r.ScoreSamples(conf.Validation); err != nil {
					return mon, err
				}
			}
			mon.append(rec)
			obs.EpochDone(rec)
		}

		if conf.SaveFile != "" && conf.SaveEvery > 0 && epoch%conf.SaveEvery == 0 {
			saveCheckpoint(r, conf.SaveFile, epoch, obs)
		}
	}
	return mon, nil
}

// checkUnitRange rejects data outside [0,1] before any training happens.
func checkUnitRange(X *tensor.Dense) error {
	for _, x := range X.Data().([]float32) {
		if x < 0 || x > 1 || math32.IsNaN(x) {
			return errors.Errorf("training data must lie in [0,1], found %v", x)
		}
	}
	return nil
}

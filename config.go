package boltzmann

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Approx selects how the negative phase of the gradient is produced.
type Approx int

const (
	// CD runs stochastic alternating Gibbs sampling (contrastive divergence).
	CD Approx = iota
	// Naive runs a naive mean field equilibration.
	Naive
	// Tap2 runs a mean field equilibration with the second order TAP term.
	Tap2
	// Tap3 additionally carries the third order TAP term.
	Tap3
)

func (a Approx) String() string {
	switch a {
	case CD:
		return "CD"
	case Naive:
		return "naive"
	case Tap2:
		return "tap2"
	case Tap3:
		return "tap3"
	}
	return "unknown"
}

// meanField reports whether the negative phase is a deterministic equilibration.
func (a Approx) meanField() bool { return a != CD }

// tap reports whether the second order weight correction applies.
func (a Approx) tap() bool { return a == Tap2 || a == Tap3 }

// Decay selects the weight decay penalty applied to the gradient buffer.
type Decay int

const (
	DecayNone Decay = iota
	DecayL1
	DecayL2
)

// Config configures a Fit run. LearnRate and BatchSize are required; every
// other field has a usable zero value or is filled in from defaults before
// training starts. The zero Config is invalid.
type Config struct {
	LearnRate float32 // required. Scaled by 1/BatchSize before use.
	BatchSize int     // required

	Epochs      int    // number of passes over the data. Default 10.
	Approx      Approx // negative phase strategy. Default CD.
	ApproxIters int    // Gibbs steps or fixed point iterations. Default 1.

	Persist      bool // carry the negative chain across batches
	PersistStart int  // first epoch (1-based) persistence is active. Default 1.

	Decay          Decay
	DecayMagnitude float32 // NaN means no decay was configured
	Dropout        float32 // recognized but not implemented; see RBM.regularize

	Validation   *tensor.Dense // optional held out set, features × samples
	MonitorEvery int           // record scores every n epochs. Default 1.
	Silent       bool          // suppress the default progress logging

	SaveEvery int    // checkpoint every n epochs. 0 = never.
	SaveFile  string // checkpoint store path. "" disables checkpointing.

	Observer Observer // nil = log backed default (silent when Silent is set)
}

// DefaultConfig returns a Config with every optional field at its default.
// LearnRate and BatchSize still have to be set by the caller.
func DefaultConfig() Config {
	return Config{
		Epochs:         10,
		Approx:         CD,
		ApproxIters:    1,
		PersistStart:   1,
		DecayMagnitude: math32.NaN(),
		MonitorEvery:   1,
	}
}

// withDefaults merges the defaults into zero-valued optional fields, so a
// Config built as a struct literal behaves the same as one built from
// DefaultConfig.
func (c Config) withDefaults() Config {
	if c.Epochs == 0 {
		c.Epochs = 10
	}
	if c.ApproxIters == 0 {
		c.ApproxIters = 1
	}
	if c.PersistStart == 0 {
		c.PersistStart = 1
	}
	if c.MonitorEvery == 0 {
		c.MonitorEvery = 1
	}
	if c.Decay == DecayNone && c.DecayMagnitude == 0 {
		c.DecayMagnitude = math32.NaN()
	}
	return c
}

// check fails fast on missing required fields and nonsensical values.
func (c Config) check() error {
	if c.LearnRate <= 0 {
		return errors.New("config: LearnRate is required and must be positive")
	}
	if c.BatchSize < 1 {
		return errors.New("config: BatchSize is required and must be at least 1")
	}
	if c.Epochs < 1 {
		return errors.Errorf("config: Epochs must be at least 1, got %d", c.Epochs)
	}
	if c.ApproxIters < 1 {
		return errors.Errorf("config: ApproxIters must be at least 1, got %d", c.ApproxIters)
	}
	if c.PersistStart < 1 {
		return errors.Errorf("config: PersistStart must be at least 1, got %d", c.PersistStart)
	}
	if c.MonitorEvery < 1 {
		return errors.Errorf("config: MonitorEvery must be at least 1, got %d", c.MonitorEvery)
	}
	if c.Dropout < 0 || c.Dropout > 1 {
		return errors.Errorf("config: Dropout must lie in [0,1], got %v", c.Dropout)
	}
	if c.SaveEvery < 0 {
		return errors.Errorf("config: SaveEvery must not be negative, got %d", c.SaveEvery)
	}
	return nil
}

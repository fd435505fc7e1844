package boltzmann

import (
	"encoding/gob"
	"fmt"
	"os"
	"sort"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// checkpointEntry is one serialized numeric array.
type checkpointEntry struct {
	Shape []int
	Data  []float32
}

// CheckpointStore is a string keyed container of numeric arrays backed by a
// single gob file. Opening an existing file loads its entries first, so
// writes append across epochs and across runs.
type CheckpointStore struct {
	path    string
	entries map[string]checkpointEntry
}

// OpenCheckpoints opens the store at path, creating an empty one if the file
// does not exist yet.
func OpenCheckpoints(path string) (*CheckpointStore, error) {
	s := &CheckpointStore{
		path:    path,
		entries: make(map[string]checkpointEntry),
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "open checkpoint store %q", path)
	}
	defer f.Close()
	dec := gob.NewDecoder(f)
	if err := dec.Decode(&s.entries); err != nil {
		return nil, errors.Wrapf(err, "decode checkpoint store %q", path)
	}
	return s, nil
}

// Put stores a copy of t under key, overwriting any existing entry.
func (s *CheckpointStore) Put(key string, t *tensor.Dense) {
	s.entries[key] = checkpointEntry{
		Shape: append([]int(nil), t.Shape()...),
		Data:  append([]float32(nil), t.Data().([]float32)...),
	}
}

// Get returns the array stored under key.
func (s *CheckpointStore) Get(key string) (*tensor.Dense, bool) {
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	backing := append([]float32(nil), e.Data...)
	return tensor.New(tensor.WithShape(e.Shape...), tensor.WithBacking(backing)), true
}

// Keys returns every key in the store, sorted.
func (s *CheckpointStore) Keys() []string {
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Flush rewrites the backing file.
func (s *CheckpointStore) Flush() error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrapf(err, "write checkpoint store %q", s.path)
	}
	defer f.Close()
	enc := gob.NewEncoder(f)
	return enc.Encode(s.entries)
}

// checkpointKey formats the store key for one field of one epoch.
func checkpointKey(epoch int, field string) string {
	return fmt.Sprintf("Epoch%04d__%s", epoch, field)
}

// saveCheckpoint persists the model parameters for one epoch. I/O failures
// are reported through the observer and never interrupt training; the in
// memory model is untouched either way.
func saveCheckpoint(r *RBM, path string, epoch int, obs Observer) {
	key := checkpointKey(epoch, "W")
	store, err := OpenCheckpoints(path)
	if err != nil {
		obs.CheckpointWritten(epoch, key, err)
		return
	}
	store.Put(key, r.W)
	store.Put(checkpointKey(epoch, "vbias"), r.Vbias)
	store.Put(checkpointKey(epoch, "hbias"), r.Hbias)
	obs.CheckpointWritten(epoch, key, store.Flush())
}

package boltzmann

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"github.com/chewxy/math32"
)

// EpochRecord is one row of training diagnostics. ValidationScore is NaN
// when no validation set was supplied for the run.
type EpochRecord struct {
	Epoch           int
	Elapsed         time.Duration
	Score           float32
	ValidationScore float32
}

// Monitor collects per epoch diagnostics during a Fit run. Records are
// append only; reporting collaborators read them during or after training.
type Monitor struct {
	Records []EpochRecord
}

func (m *Monitor) append(rec EpochRecord) {
	m.Records = append(m.Records, rec)
}

// Last returns the most recent record.
func (m *Monitor) Last() (EpochRecord, bool) {
	if len(m.Records) == 0 {
		return EpochRecord{}, false
	}
	return m.Records[len(m.Records)-1], true
}

// Dump writes the collected records as CSV. The validation column is left
// empty for runs without a validation set.
func (m *Monitor) Dump(filename string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write([]string{"epoch", "elapsed", "score", "validation"}); err != nil {
		return err
	}
	var records [][]string
	for _, rec := range m.Records {
		validation := ""
		if !math32.IsNaN(rec.ValidationScore) {
			validation = strconv.FormatFloat(float64(rec.ValidationScore), 'f', 6, 32)
		}
		records = append(records, []string{
			strconv.Itoa(rec.Epoch),
			rec.Elapsed.String(),
			strconv.FormatFloat(float64(rec.Score), 'f', 6, 32),
			validation,
		})
	}
	if err := w.WriteAll(records); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

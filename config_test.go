package boltzmann

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestWithDefaults(t *testing.T) {
	got := Config{LearnRate: 0.1, BatchSize: 10}.withDefaults()
	want := DefaultConfig()
	want.LearnRate = 0.1
	want.BatchSize = 10
	if diff := cmp.Diff(want, got, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("defaults not merged (-want +got):\n%s", diff)
	}
	if err := got.check(); err != nil {
		t.Errorf("merged config should be valid, got %v", err)
	}
}

func TestWithDefaultsKeepsOverrides(t *testing.T) {
	c := Config{LearnRate: 0.1, BatchSize: 10, Epochs: 3, ApproxIters: 7, MonitorEvery: 2, PersistStart: 4}
	got := c.withDefaults()
	if got.Epochs != 3 || got.ApproxIters != 7 || got.MonitorEvery != 2 || got.PersistStart != 4 {
		t.Errorf("overrides were clobbered: %+v", got)
	}
}

var badConfigs = []struct {
	name string
	conf Config
	want string
}{
	{"missing learn rate", Config{BatchSize: 10}, "LearnRate"},
	{"missing batch size", Config{LearnRate: 0.1}, "BatchSize"},
	{"negative learn rate", Config{LearnRate: -1, BatchSize: 10}, "LearnRate"},
	{"negative save every", Config{LearnRate: 0.1, BatchSize: 10, SaveEvery: -1}, "SaveEvery"},
	{"negative monitor cadence", Config{LearnRate: 0.1, BatchSize: 10, MonitorEvery: -1}, "MonitorEvery"},
	{"dropout above one", Config{LearnRate: 0.1, BatchSize: 10, Dropout: 1.5}, "Dropout"},
	{"negative dropout", Config{LearnRate: 0.1, BatchSize: 10, Dropout: -0.1}, "Dropout"},
}

func TestConfigCheck(t *testing.T) {
	for _, c := range badConfigs {
		err := c.conf.withDefaults().check()
		if err == nil {
			t.Errorf("%s: expected an error", c.name)
			continue
		}
		if !strings.Contains(err.Error(), c.want) {
			t.Errorf("%s: error %q does not mention %s", c.name, err, c.want)
		}
	}
}

func TestApproxString(t *testing.T) {
	for a, want := range map[Approx]string{CD: "CD", Naive: "naive", Tap2: "tap2", Tap3: "tap3"} {
		if got := a.String(); got != want {
			t.Errorf("Approx(%d).String() = %q, want %q", a, got, want)
		}
	}
}

func TestApproxDispatch(t *testing.T) {
	if CD.meanField() || CD.tap() {
		t.Error("CD must be neither mean field nor tap")
	}
	if !Naive.meanField() || Naive.tap() {
		t.Error("naive is mean field without the tap correction")
	}
	if !Tap2.meanField() || !Tap2.tap() {
		t.Error("tap2 is mean field with the tap correction")
	}
	if !Tap3.meanField() || !Tap3.tap() {
		t.Error("tap3 is mean field with the tap correction")
	}
}

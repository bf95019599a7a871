package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newGauge(v float64) prometheus.Collector {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: "entries", Help: "test"}, func() float64 { return v })
}

func TestRegisterReplacesExisting(t *testing.T) {
	reg := prometheus.NewRegistry()
	wrapped := prometheus.WrapRegistererWithPrefix("test_", reg)

	if _, err := Register(wrapped, newGauge(1)); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	unregister, err := Register(wrapped, newGauge(2))
	if err != nil {
		t.Fatalf("second Register failed: %v", err)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	if len(mfs) != 1 || mfs[0].GetMetric()[0].GetGauge().GetValue() != 2 {
		t.Fatalf("expected the replacing gauge to report 2, got %v", mfs)
	}

	unregister()
	if n, err := testutil.GatherAndCount(reg); err != nil || n != 0 {
		t.Fatalf("expected no metrics after unregister, got %d (%v)", n, err)
	}
}

func TestRegisterNilRegisterer(t *testing.T) {
	unregister, err := Register(nil, newGauge(1))
	if err != nil {
		t.Fatal(err)
	}
	unregister()
}

func TestRegisterRollsBackOnError(t *testing.T) {
	reg := prometheus.NewRegistry()
	good := newGauge(1)
	// same name, different help: inconsistent with the collector before it
	bad := prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: "entries", Help: "other"}, func() float64 { return 0 })
	other := prometheus.NewCounter(prometheus.CounterOpts{Name: "other_total", Help: "test"})

	if _, err := Register(reg, other, good, bad); err == nil {
		t.Fatal("expected inconsistent descriptors to fail")
	}
	if n, err := testutil.GatherAndCount(reg); err != nil || n != 0 {
		t.Fatalf("expected partial registration to be undone, got %d (%v)", n, err)
	}
}

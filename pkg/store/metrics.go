package store

import (
	"lsmcore/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

func registerMetrics(registerer prometheus.Registerer, s *Store) (func(), error) {
	if registerer == nil {
		return func() {}, nil
	}

	entries := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "entries",
		Help: "Number of keys in the active memtable, tombstones included.",
	}, func() float64 {
		return float64(s.mt.Load().Len())
	})

	size := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "bytes",
		Help: "Approximate size of the active memtable in bytes.",
	}, func() float64 {
		return float64(s.mt.Load().Size())
	})

	return metrics.Register(prometheus.WrapRegistererWithPrefix("lsmdb_memtable_", registerer), entries, size)
}

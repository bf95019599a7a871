package wal

import (
	"lsmcore/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

type walMetrics struct {
	appends        *prometheus.CounterVec
	appendFailures prometheus.Counter
	fsyncDuration  prometheus.Histogram
	replayed       prometheus.Counter
	clears         prometheus.Counter

	unregister func()
}

func newWALMetrics(registerer prometheus.Registerer) (*walMetrics, error) {
	m := &walMetrics{}

	m.appends = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "appends_total",
		Help: "Total number of records appended to the write-ahead log.",
	}, []string{"kind"})

	m.appendFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "append_failures_total",
		Help: "Total number of appends that failed and were not committed.",
	})

	m.fsyncDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fsync_duration_seconds",
		Help:    "Duration of write-ahead log fsync.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	})

	m.replayed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "replayed_records_total",
		Help: "Total number of records delivered by replay.",
	})

	m.clears = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "clears_total",
		Help: "Total number of times the log was cleared after a flush.",
	})

	if registerer != nil {
		registerer = prometheus.WrapRegistererWithPrefix("lsmdb_wal_", registerer)
	}
	unregister, err := metrics.Register(registerer,
		m.appends,
		m.appendFailures,
		m.fsyncDuration,
		m.replayed,
		m.clears,
	)
	if err != nil {
		return nil, err
	}
	m.unregister = unregister

	return m, nil
}

// Package metrics exposes Prometheus instrumentation for the harvester.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder tracks cycle outcomes and signal throughput.
type Recorder struct {
	cyclesTotal   *prometheus.CounterVec
	signalsNew    *prometheus.CounterVec
	signalsDup    *prometheus.CounterVec
	cycleDuration *prometheus.HistogramVec
	pollInterval  *prometheus.GaugeVec
}

// New creates a Recorder registered with reg. Tests pass their own
// prometheus.NewRegistry so recorders never collide on metric names.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		cyclesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradebot_cycles_total",
				Help: "Scrape cycles run, by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		signalsNew: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradebot_signals_new_total",
				Help: "New signals persisted",
			},
			[]string{"source"},
		),
		signalsDup: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradebot_signals_duplicate_total",
				Help: "Candidates suppressed as duplicates",
			},
			[]string{"source"},
		),
		cycleDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradebot_cycle_duration_seconds",
				Help:    "Full cycle duration, fetch through notify",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		pollInterval: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tradebot_poll_interval_seconds",
				Help: "Current adaptive poll interval",
			},
			[]string{"source"},
		),
	}
}

// RecordCycle records one completed cycle.
func (r *Recorder) RecordCycle(source, outcome string, seconds float64) {
	r.cyclesTotal.WithLabelValues(source, outcome).Inc()
	r.cycleDuration.WithLabelValues(source).Observe(seconds)
}

// RecordSignals records the new/duplicate split of a cycle's candidates.
func (r *Recorder) RecordSignals(source string, newCount, duplicates int) {
	r.signalsNew.WithLabelValues(source).Add(float64(newCount))
	r.signalsDup.WithLabelValues(source).Add(float64(duplicates))
}

// RecordPollInterval records the interval the controller settled on.
func (r *Recorder) RecordPollInterval(source string, seconds int) {
	r.pollInterval.WithLabelValues(source).Set(float64(seconds))
}

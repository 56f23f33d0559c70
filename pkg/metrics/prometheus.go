package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	cyclesTotal  *prometheus.CounterVec
	sourceFetch  *prometheus.CounterVec
	alertsTotal  *prometheus.CounterVec
	consensus    *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		cyclesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "greypulse_tracking_cycles_total",
				Help: "Total tracking cycles run per instrument and outcome",
			},
			[]string{"instrument", "outcome"},
		),
		sourceFetch: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "greypulse_source_fetch_total",
				Help: "Source fetch attempts by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		alertsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "greypulse_alerts_total",
				Help: "Alerts emitted by type",
			},
			[]string{"type"},
		),
		consensus: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "greypulse_consensus_value",
				Help: "Last consensus value per symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "greypulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordCycle records one tracking cycle outcome for an instrument.
func (r *Recorder) RecordCycle(instrumentID string, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	r.cyclesTotal.WithLabelValues(instrumentID, outcome).Inc()
}

// RecordSourceFetch records a single source fetch attempt.
func (r *Recorder) RecordSourceFetch(source, outcome string) {
	r.sourceFetch.WithLabelValues(source, outcome).Inc()
}

// RecordConsensus records the last consensus value for a symbol.
func (r *Recorder) RecordConsensus(symbol string, value float64) {
	r.consensus.WithLabelValues(symbol).Set(value)
}

// RecordAlert records an emitted alert.
func (r *Recorder) RecordAlert(kind string) {
	r.alertsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

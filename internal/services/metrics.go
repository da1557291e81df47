package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the ledger's prometheus collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	created       *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	sweepDuration prometheus.Histogram
	sweepSkipped  prometheus.Counter
}

func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "points_ledger_transactions_created_total",
			Help: "Point transactions recorded, by initial status.",
		}, []string{"status"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "points_ledger_transitions_total",
			Help: "Status transitions applied, by target status and initiator.",
		}, []string{"status", "source"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "points_ledger_sweep_duration_seconds",
			Help:    "Duration of expiry sweeps.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		sweepSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "points_ledger_sweep_skipped_total",
			Help: "Sweeps skipped because another instance held the lease.",
		}),
	}
	reg.MustRegister(m.created, m.transitions, m.sweepDuration, m.sweepSkipped)
	return m
}

func (m *Metrics) transactionCreated(status string) {
	if m == nil {
		return
	}
	m.created.WithLabelValues(status).Inc()
}

func (m *Metrics) transitionApplied(status, source string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status, source).Inc()
}

func (m *Metrics) sweepFinished(seconds float64) {
	if m == nil {
		return
	}
	m.sweepDuration.Observe(seconds)
}

func (m *Metrics) sweepLeaseHeld() {
	if m == nil {
		return
	}
	m.sweepSkipped.Inc()
}

package adapter

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for audited economy decisions.
type Metrics struct {
	// Decisions by engine and verdict, counted only after the audit commit.
	Decisions *prometheus.CounterVec

	// Evaluations that returned an error, by engine and kind.
	Errors *prometheus.CounterVec

	PersistFailures *prometheus.CounterVec
	OutboxDropped   *prometheus.CounterVec
	PersistDuration prometheus.Histogram
	EvaluateLatency *prometheus.HistogramVec
}

// NewMetrics registers the adapter metrics with the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mgcore_economy_decisions_total",
			Help: "Total committed economy decisions by engine and verdict",
		}, []string{"engine", "verdict"}),

		Errors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mgcore_economy_evaluation_errors_total",
			Help: "Total economy evaluations that returned no decision, by engine and kind",
		}, []string{"engine", "kind"}), // kind: "persistence", "deadline", "canon", "forbidden", "invalid"

		PersistFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mgcore_economy_audit_persist_failures_total",
			Help: "Total audit trails that failed to commit, by engine",
		}, []string{"engine"}),

		OutboxDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mgcore_economy_outbox_dropped_total",
			Help: "Committed audit events not handed to the outbox, by engine",
		}, []string{"engine"}),

		PersistDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "mgcore_economy_audit_persist_duration_seconds",
			Help:    "Duration of sequential audit persistence for one evaluation",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		EvaluateLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mgcore_economy_evaluate_duration_seconds",
			Help:    "Duration of a full audited evaluation by engine",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"engine"}),
	}
}

func (m *Metrics) IncrementDecision(engine, verdict string) {
	if m != nil {
		m.Decisions.WithLabelValues(engine, verdict).Inc()
	}
}

func (m *Metrics) IncrementError(engine, kind string) {
	if m != nil {
		m.Errors.WithLabelValues(engine, kind).Inc()
	}
}

func (m *Metrics) IncrementPersistFailure(engine string) {
	if m != nil {
		m.PersistFailures.WithLabelValues(engine).Inc()
	}
}

func (m *Metrics) IncrementOutboxDropped(engine string) {
	if m != nil {
		m.OutboxDropped.WithLabelValues(engine).Inc()
	}
}

func (m *Metrics) ObservePersistDuration(d time.Duration) {
	if m != nil {
		m.PersistDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveEvaluateLatency(engine string, d time.Duration) {
	if m != nil {
		m.EvaluateLatency.WithLabelValues(engine).Observe(d.Seconds())
	}
}

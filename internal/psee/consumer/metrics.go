package consumer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Polls         *prometheus.CounterVec
	EventsApplied prometheus.Counter
	EventsSkipped prometheus.Counter
}

// NewMetrics registers the consumer's collectors with the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		Polls: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mgcore_psee_polls_total",
			Help: "PSEE polls by result (ok, error, dropped)",
		}, []string{"result"}),
		EventsApplied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mgcore_psee_events_applied_total",
			Help: "PSEE events projected into the read model",
		}),
		EventsSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mgcore_psee_events_skipped_total",
			Help: "PSEE events rejected by the read model",
		}),
	}
}

func (m *Metrics) IncrementPoll(result string) {
	if m == nil {
		return
	}
	m.Polls.WithLabelValues(result).Inc()
}

func (m *Metrics) AddApplied(n int) {
	if m == nil || n == 0 {
		return
	}
	m.EventsApplied.Add(float64(n))
}

func (m *Metrics) AddSkipped(n int) {
	if m == nil || n == 0 {
		return
	}
	m.EventsSkipped.Add(float64(n))
}

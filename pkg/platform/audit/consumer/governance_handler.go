package consumer

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	audit "mgcore/pkg/platform/audit"
)

// GovernanceMetrics counts advisory governance and recognition signals.
type GovernanceMetrics struct {
	Signals *prometheus.CounterVec
}

func NewGovernanceMetrics() *GovernanceMetrics {
	return &GovernanceMetrics{
		Signals: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mgcore_governance_signals_total",
			Help: "Committed governance and recognition audit events by action",
		}, []string{"action"}),
	}
}

// GovernanceHandler surfaces flags and violations for human review. It only
// observes; nothing it does feeds back into a decision.
type GovernanceHandler struct {
	logger  *slog.Logger
	metrics *GovernanceMetrics
}

func NewGovernanceHandler(logger *slog.Logger, metrics *GovernanceMetrics) *GovernanceHandler {
	return &GovernanceHandler{logger: logger, metrics: metrics}
}

func (h *GovernanceHandler) Handle(ctx context.Context, event audit.Event) error {
	if h.metrics != nil {
		h.metrics.Signals.WithLabelValues(string(event.Action)).Inc()
	}

	switch event.Action {
	case audit.ActionGovernanceViolation:
		h.logger.WarnContext(ctx, "governance violation recorded",
			"event_id", event.ID,
			"subject_id", event.SubjectID,
			"reason", event.Details["violation_reason"],
		)
	case audit.ActionGovernanceFlagged, audit.ActionRecognitionFlagged:
		h.logger.InfoContext(ctx, "flagged for review",
			"event_id", event.ID,
			"action", event.Action,
			"subject_id", event.SubjectID,
		)
	}
	return nil
}

package consumer

import (
	"context"
	"fmt"
	"log/slog"

	audit "mgcore/pkg/platform/audit"
)

// ComplianceHandler mirrors committed compliance events into a secondary
// store for long-term retention. The mirror is idempotent by event id.
type ComplianceHandler struct {
	store  audit.Store
	logger *slog.Logger
}

// NewComplianceHandler creates a compliance mirror handler.
func NewComplianceHandler(store audit.Store, logger *slog.Logger) *ComplianceHandler {
	return &ComplianceHandler{
		store:  store,
		logger: logger,
	}
}

// Handle stores a compliance audit event in the mirror.
func (h *ComplianceHandler) Handle(ctx context.Context, event audit.Event) error {
	if err := event.Validate(); err != nil {
		h.logger.Error("CRITICAL: malformed compliance event reached the outbox",
			"event_id", event.ID,
			"action", event.Action,
			"error", err,
		)
		return nil
	}

	if err := h.store.SaveAuditEvent(ctx, event); err != nil {
		h.logger.Error("failed to mirror compliance event",
			"event_id", event.ID,
			"action", event.Action,
			"error", err,
		)
		return fmt.Errorf("mirror compliance event: %w", err)
	}

	h.logger.Debug("mirrored compliance event",
		"event_id", event.ID,
		"action", event.Action,
		"subject_id", event.SubjectID,
	)
	return nil
}

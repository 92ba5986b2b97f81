package adapter

import (
	"context"
	"fmt"

	"mgcore/internal/economy/models"
	dErrors "mgcore/pkg/domain-errors"
	"mgcore/pkg/platform/audit"
	"mgcore/pkg/platform/sentinel"
)

const (
	DefaultRecentLimit = 50
	MaxRecentLimit     = 500
)

// WithAuditReader enables the review reads. The store passed to New is used
// when it implements audit.Reader itself.
func WithAuditReader(r audit.Reader) Option {
	return func(a *Adapter) { a.reader = r }
}

// AuditTrail lists the committed audit events of subjectID in commit order.
// It reads for review only; nothing it returns feeds a decision.
func (a *Adapter) AuditTrail(ctx context.Context, caller models.Caller, subjectID string) ([]audit.Event, error) {
	if subjectID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "subject id is required")
	}
	if err := a.authorize(caller, CapReadAudit, subjectID); err != nil {
		return nil, err
	}
	if a.reader == nil {
		return nil, fmt.Errorf("audit trail: %w", sentinel.ErrUnavailable)
	}
	ctx, cancel := a.withDeadline(ctx)
	defer cancel()
	events, err := a.reader.ListBySubject(ctx, subjectID)
	if err != nil {
		return nil, fmt.Errorf("audit trail for %s: %w", subjectID, deadline(err))
	}
	return events, nil
}

// RecentAudit lists up to limit committed audit events, newest first. A
// non-positive limit means DefaultRecentLimit.
func (a *Adapter) RecentAudit(ctx context.Context, caller models.Caller, limit int) ([]audit.Event, error) {
	if err := a.authorize(caller, CapReadRecentAudit, ""); err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = DefaultRecentLimit
	case limit > MaxRecentLimit:
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("limit must not exceed %d", MaxRecentLimit))
	}
	if a.reader == nil {
		return nil, fmt.Errorf("recent audit: %w", sentinel.ErrUnavailable)
	}
	ctx, cancel := a.withDeadline(ctx)
	defer cancel()
	events, err := a.reader.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("recent audit: %w", deadline(err))
	}
	return events, nil
}

// Package compliance provides a fail-closed audit writer for economy decisions.
//
// Publisher persists each event synchronously and returns the store error
// unchanged in its chain. The caller MUST treat a failure as the decision not
// having happened.
package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	audit "mgcore/pkg/platform/audit"
)

// Publisher validates and writes audit events through an underlying store.
// It satisfies audit.Store so it can be dropped in front of any backend.
type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// New creates a compliance publisher over store.
func New(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store: store,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SaveAuditEvent validates and synchronously persists event.
func (p *Publisher) SaveAuditEvent(ctx context.Context, event audit.Event) error {
	start := time.Now()

	if err := event.Validate(); err != nil {
		return fmt.Errorf("compliance audit rejected: %w", err)
	}

	if err := p.store.SaveAuditEvent(ctx, event); err != nil {
		if p.metrics != nil {
			p.metrics.IncPersistFailures()
		}
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "CRITICAL: compliance audit failed",
				"action", event.Action,
				"event_id", event.ID,
				"subject_id", event.SubjectID,
				"error", err,
			)
		}
		return fmt.Errorf("compliance audit persistence failed: %w", err)
	}

	if p.metrics != nil {
		p.metrics.ObservePersistDuration(time.Since(start).Seconds())
		p.metrics.IncEventsEmitted(event.Category)
	}

	return nil
}

// Package consumer holds the downstream handlers that receive committed audit
// events from the outbox worker.
package consumer

import (
	"context"
	"log/slog"

	audit "mgcore/pkg/platform/audit"
	"mgcore/pkg/platform/audit/worker"
)

// Router dispatches events to category-specific handlers.
type Router struct {
	handlers map[audit.EventCategory]worker.Handler
	fallback worker.Handler
	logger   *slog.Logger
}

// NewRouter creates a category router with an optional fallback handler.
func NewRouter(logger *slog.Logger, fallback worker.Handler) *Router {
	return &Router{
		handlers: make(map[audit.EventCategory]worker.Handler),
		fallback: fallback,
		logger:   logger,
	}
}

// Register adds a handler for a specific category.
func (r *Router) Register(category audit.EventCategory, handler worker.Handler) {
	r.handlers[category] = handler
}

// Handle routes the event to the handler for its category.
func (r *Router) Handle(ctx context.Context, event audit.Event) error {
	handler, ok := r.handlers[event.Category]
	if !ok {
		if r.fallback != nil {
			return r.fallback.Handle(ctx, event)
		}
		r.logger.Warn("no handler for category, skipping event",
			"category", event.Category,
			"event_id", event.ID,
		)
		return nil
	}
	return handler.Handle(ctx, event)
}

// Package worker hands committed audit events to downstream modules over an
// explicit channel. The core publishes; the owning module consumes on its own
// goroutine, so no cross-module side effect runs inside an evaluation.
package worker

import (
	"context"
	"errors"
	"log/slog"

	audit "mgcore/pkg/platform/audit"
)

// Outbox is the publishing side of the channel.
type Outbox struct {
	ch chan audit.Event
}

// NewOutbox creates an outbox with the given buffer size.
func NewOutbox(size int) *Outbox {
	if size < 0 {
		size = 0
	}
	return &Outbox{ch: make(chan audit.Event, size)}
}

// ErrOutboxFull is returned when the buffer has no room for another event.
var ErrOutboxFull = errors.New("audit outbox full")

// Publish enqueues event without waiting. A full buffer drops the event and
// returns ErrOutboxFull, so a committed decision is never held up by a slow
// consumer.
func (o *Outbox) Publish(ctx context.Context, event audit.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case o.ch <- event:
		return nil
	default:
		return ErrOutboxFull
	}
}

// Inbox exposes the receiving side for a Worker.
func (o *Outbox) Inbox() <-chan audit.Event {
	return o.ch
}

// Handler is implemented by the downstream module that reacts to committed events.
type Handler interface {
	Handle(ctx context.Context, event audit.Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event audit.Event) error

func (f HandlerFunc) Handle(ctx context.Context, event audit.Event) error { return f(ctx, event) }

// Worker consumes events from an inbox and dispatches them to a handler.
type Worker struct {
	handler Handler
	inbox   <-chan audit.Event
	logger  *slog.Logger
}

func NewWorker(handler Handler, inbox <-chan audit.Event, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{handler: handler, inbox: inbox, logger: logger}
}

// Run blocks until ctx is done. Handler failures are logged; they never flow
// back into the evaluation that produced the event.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.handler.Handle(ctx, event); err != nil {
				w.logger.WarnContext(ctx, "downstream audit handler failed",
					"event_id", event.ID,
					"action", event.Action,
					"error", err,
				)
			}
		}
	}
}

// LogHandler records each committed event at debug level.
func LogHandler(logger *slog.Logger) Handler {
	return HandlerFunc(func(ctx context.Context, event audit.Event) error {
		logger.DebugContext(ctx, "audit event committed",
			"event_id", event.ID,
			"action", event.Action,
			"subject_id", event.SubjectID,
		)
		return nil
	})
}

// Package adapter is the only sanctioned entry point for audited economy
// decisions. It checks the caller's capability, runs a pure engine, persists
// every audit event in order, and only then returns the decision.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mgcore/internal/economy/auction"
	"mgcore/internal/economy/canon"
	"mgcore/internal/economy/eligibility"
	"mgcore/internal/economy/governance"
	"mgcore/internal/economy/models"
	dErrors "mgcore/pkg/domain-errors"
	"mgcore/pkg/platform/audit"
)

//go:generate mockgen -source=adapter.go -destination=mocks/mocks.go -package=mocks AuditStore,Transactor,Outbox

// DefaultAuditTimeout bounds persistence when the caller's context has no deadline.
const DefaultAuditTimeout = 2 * time.Second

// AuditStore persists audit events. Saves must be idempotent by event id.
type AuditStore interface {
	SaveAuditEvent(ctx context.Context, event audit.Event) error
}

// Transactor groups the saves of one evaluation so a failure leaves nothing
// visible. A store that implements it is used as its own transactor unless
// WithTransactor names another.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Outbox receives committed events for downstream modules. Publish must not
// wait for room; a committed decision is returned regardless of its result.
type Outbox interface {
	Publish(ctx context.Context, event audit.Event) error
}

// Engines are the pure engines the adapter dispatches to.
type Engines struct {
	Eligibility *eligibility.Engine
	Auction     *auction.Engine
	Governance  *governance.Engine
}

type Adapter struct {
	store        AuditStore
	engines      Engines
	tx           Transactor
	outbox       Outbox
	reader       audit.Reader
	capabilities map[models.Role][]Capability
	auditTimeout time.Duration
	logger       *slog.Logger
	metrics      *Metrics
	tracer       trace.Tracer
}

type Option func(*Adapter)

func WithTransactor(tx Transactor) Option {
	return func(a *Adapter) { a.tx = tx }
}

func WithOutbox(o Outbox) Option {
	return func(a *Adapter) { a.outbox = o }
}

func WithCapabilities(table map[models.Role][]Capability) Option {
	return func(a *Adapter) { a.capabilities = table }
}

// WithAuditTimeout overrides DefaultAuditTimeout. Non-positive values are ignored.
func WithAuditTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.auditTimeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) { a.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(a *Adapter) { a.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(a *Adapter) { a.tracer = t }
}

func New(store AuditStore, engines Engines, opts ...Option) *Adapter {
	a := &Adapter{
		store:        store,
		engines:      engines,
		capabilities: DefaultCapabilities(),
		auditTimeout: DefaultAuditTimeout,
		logger:       slog.Default(),
		tracer:       otel.Tracer("mgcore/economy/adapter"),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.tx == nil {
		if tx, ok := store.(Transactor); ok {
			a.tx = tx
		}
	}
	if a.reader == nil {
		if r, ok := store.(audit.Reader); ok {
			a.reader = r
		}
	}
	return a
}

// start opens a span for one evaluation and returns a finisher that records
// the outcome on the span and in metrics.
func (a *Adapter) start(ctx context.Context, engine string, caller models.Caller) (context.Context, func(*models.Decision, error)) {
	ctx, span := a.tracer.Start(ctx, "economy."+engine,
		trace.WithAttributes(
			attribute.String("economy.engine", engine),
			attribute.String("caller.role", string(caller.Role)),
			attribute.String("caller.id", caller.ID),
		))
	started := time.Now()
	return ctx, func(d *models.Decision, err error) {
		defer span.End()
		a.metrics.ObserveEvaluateLatency(engine, time.Since(started))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			a.metrics.IncrementError(engine, errorKind(err))
			return
		}
		span.SetAttributes(attribute.String("economy.verdict", string(d.Verdict)), attribute.String("economy.rule_id", d.RuleID))
		a.metrics.IncrementDecision(engine, string(d.Verdict))
	}
}

// commit persists events sequentially and publishes them once all are stored.
func (a *Adapter) commit(ctx context.Context, engine string, events []audit.Event) error {
	ctx, cancel := a.withDeadline(ctx)
	defer cancel()

	started := time.Now()
	persist := func(ctx context.Context) error {
		for i, ev := range events {
			if err := ev.Validate(); err != nil {
				return &PersistenceFailure{EventID: ev.ID, Index: i, Err: err}
			}
			if err := ctx.Err(); err != nil {
				return &PersistenceFailure{EventID: ev.ID, Index: i, Err: deadline(err)}
			}
			if err := a.store.SaveAuditEvent(ctx, ev); err != nil {
				return &PersistenceFailure{EventID: ev.ID, Index: i, Err: deadline(err)}
			}
		}
		return nil
	}

	var err error
	if a.tx != nil {
		err = a.tx.WithinTx(ctx, persist)
	} else {
		err = persist(ctx)
	}
	a.metrics.ObservePersistDuration(time.Since(started))

	if err != nil {
		var pf *PersistenceFailure
		if !errors.As(err, &pf) {
			pf = &PersistenceFailure{Index: -1, Err: deadline(err)}
			err = pf
		}
		a.metrics.IncrementPersistFailure(engine)
		a.logger.ErrorContext(ctx, "CRITICAL: audit persistence failed",
			"engine", engine,
			"event_id", pf.EventID,
			"index", pf.Index,
			"events", len(events),
			"error", pf.Err,
		)
		return err
	}

	if a.outbox != nil {
		for _, ev := range events {
			if perr := a.outbox.Publish(ctx, ev); perr != nil {
				a.metrics.IncrementOutboxDropped(engine)
				a.logger.WarnContext(ctx, "committed audit event dropped from outbox",
					"engine", engine,
					"event_id", ev.ID,
					"action", ev.Action,
					"error", perr,
				)
			}
		}
	}
	return nil
}

func (a *Adapter) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.auditTimeout)
}

func deadline(err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrDeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrDeadlineExceeded, err)
	}
	return err
}

func errorKind(err error) string {
	var pf *PersistenceFailure
	switch {
	case errors.Is(err, ErrDeadlineExceeded):
		return "deadline"
	case errors.As(err, &pf):
		return "persistence"
	case errors.Is(err, canon.ErrCanonViolation):
		return "canon"
	case dErrors.HasCode(err, dErrors.CodeForbidden), dErrors.HasCode(err, dErrors.CodeUnauthorized):
		return "forbidden"
	default:
		return "invalid"
	}
}

// Package eligibility decides whether a subject may access a privileged action
// such as the store. Evaluation is pure: the caller supplies the snapshot, the
// flags and the evaluation time, and persists the returned audit events.
package eligibility

import (
	"fmt"
	"time"

	"mgcore/internal/economy/canon"
	"mgcore/internal/economy/models"
	dErrors "mgcore/pkg/domain-errors"
	"mgcore/pkg/platform/audit"
)

// DefaultFloor is the minimum ISSUED balance for an ALLOW.
const DefaultFloor int64 = 1

// Rule identifiers recorded on the decision.
const (
	RuleMaintenance         = "MAINTENANCE"
	RuleRestricted          = "RESTRICTED"
	RuleInsufficientBalance = "INSUFFICIENT_BALANCE"
	RuleEligible            = "ELIGIBLE"
)

const systemActor = "system"

// Input carries everything an evaluation depends on.
type Input struct {
	SubjectID           string
	ActorID             string
	Snapshot            models.WalletSnapshot
	IsSystemMaintenance bool
	IsRestricted        bool
	EvaluatedAt         time.Time
}

// Result is the decision plus the audit events that must be persisted before
// the decision is surfaced.
type Result struct {
	Decision    models.Decision `json:"decision"`
	AuditEvents []audit.Event   `json:"audit_events"`
}

// Engine evaluates store eligibility.
type Engine struct {
	registry *canon.Registry
	floor    int64
}

type Option func(*Engine)

// WithFloor sets the balance floor. Negative values are ignored.
func WithFloor(floor int64) Option {
	return func(e *Engine) {
		if floor >= 0 {
			e.floor = floor
		}
	}
}

func New(registry *canon.Registry, opts ...Option) *Engine {
	e := &Engine{registry: registry, floor: DefaultFloor}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Floor returns the configured balance floor.
func (e *Engine) Floor() int64 { return e.floor }

// Evaluate applies the rule chain. Rule priority (first match wins):
//  1. System maintenance
//  2. Subject restricted
//  3. Balance below floor
//  4. Eligible
func (e *Engine) Evaluate(in Input) (Result, error) {
	if in.SubjectID == "" {
		return Result{}, dErrors.New(dErrors.CodeInvalidInput, "subject id is required")
	}
	if in.EvaluatedAt.IsZero() {
		return Result{}, dErrors.New(dErrors.CodeInvalidInput, "evaluated_at is required")
	}
	if in.Snapshot.SubjectID != in.SubjectID {
		return Result{}, dErrors.New(dErrors.CodeInvalidInput,
			fmt.Sprintf("snapshot belongs to %q, not %q", in.Snapshot.SubjectID, in.SubjectID))
	}

	seal, err := e.registry.CheckCanon(canon.KindMCSnapshot, in.Snapshot)
	if err != nil {
		return Result{}, err
	}

	decision := e.decide(in)

	actor := in.ActorID
	if actor == "" {
		actor = systemActor
	}
	event, err := audit.NewEvent(audit.ActionEligibilityEvaluated, actor, in.SubjectID, in.EvaluatedAt, map[string]any{
		"verdict":               string(decision.Verdict),
		"rule_id":               decision.RuleID,
		"balance":               in.Snapshot.Balance,
		"locked":                in.Snapshot.Locked,
		"floor":                 e.floor,
		"is_system_maintenance": in.IsSystemMaintenance,
		"is_restricted":         in.IsRestricted,
		"snapshot_as_of":        in.Snapshot.AsOf.UTC().Format(time.RFC3339Nano),
		"snapshot_digest":       seal.Digest(),
	})
	if err != nil {
		return Result{}, err
	}

	return Result{Decision: decision, AuditEvents: []audit.Event{event}}, nil
}

func (e *Engine) decide(in Input) models.Decision {
	d := models.Decision{EvaluatedAt: in.EvaluatedAt.UTC()}

	// Rule 1: maintenance blocks everyone
	if in.IsSystemMaintenance {
		d.Verdict, d.RuleID, d.Explanation = models.VerdictDeny, RuleMaintenance, "system maintenance in progress"
		return d
	}

	// Rule 2: restricted subject
	if in.IsRestricted {
		d.Verdict, d.RuleID, d.Explanation = models.VerdictDeny, RuleRestricted, "subject is restricted"
		return d
	}

	// Rule 3: floor
	if in.Snapshot.Balance < e.floor {
		d.Verdict, d.RuleID = models.VerdictDeny, RuleInsufficientBalance
		d.Explanation = fmt.Sprintf("balance %d is below floor %d", in.Snapshot.Balance, e.floor)
		return d
	}

	d.Verdict, d.RuleID, d.Explanation = models.VerdictAllow, RuleEligible, "subject is eligible"
	return d
}

package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mgcore/pkg/platform/canonical"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers economy decisions that must be reproducible
	// from the audit trail. These are persisted fail-closed.
	CategoryCompliance EventCategory = "compliance"

	// CategoryGovernance covers advisory classifications (flags, recognition signals).
	CategoryGovernance EventCategory = "governance"

	// CategoryOperations covers everything else.
	CategoryOperations EventCategory = "operations"
)

// Action names what the engine evaluated.
type Action string

const (
	// Eligibility
	ActionEligibilityEvaluated Action = "store_eligibility_evaluated"

	// Auction lifecycle
	ActionAuctionOpened        Action = "auction_opened"
	ActionAuctionParticipation Action = "auction_participation"
	ActionAuctionClosed        Action = "auction_closed"
	ActionAuctionDenied        Action = "auction_denied"

	// Governance
	ActionGovernanceEvaluated Action = "governance_evaluated"
	ActionGovernanceFlagged   Action = "governance_flagged"
	ActionGovernanceViolation Action = "governance_violation"

	// Recognition
	ActionRecognitionEvaluated Action = "gmc_recognition_evaluated"
	ActionRecognitionFlagged   Action = "gmc_recognition_flagged"
	ActionRecognitionDenied    Action = "gmc_recognition_denied"
)

var actionCategories = map[Action]EventCategory{
	ActionEligibilityEvaluated: CategoryCompliance,
	ActionAuctionOpened:        CategoryCompliance,
	ActionAuctionParticipation: CategoryCompliance,
	ActionAuctionClosed:        CategoryCompliance,
	ActionAuctionDenied:        CategoryCompliance,

	ActionGovernanceEvaluated:  CategoryGovernance,
	ActionGovernanceFlagged:    CategoryGovernance,
	ActionGovernanceViolation:  CategoryGovernance,
	ActionRecognitionEvaluated: CategoryGovernance,
	ActionRecognitionFlagged:   CategoryGovernance,
	ActionRecognitionDenied:    CategoryGovernance,
}

// Category returns the EventCategory for this action.
// Unknown actions default to CategoryOperations.
func (a Action) Category() EventCategory {
	if cat, ok := actionCategories[a]; ok {
		return cat
	}
	return CategoryOperations
}

// Event is an append-only audit record. Engines build them; only the
// adapter layer persists them.
type Event struct {
	ID        uuid.UUID      `json:"id"`
	Category  EventCategory  `json:"category"`
	Timestamp time.Time      `json:"timestamp"`
	Action    Action         `json:"action"`
	ActorID   string         `json:"actor_id"`
	SubjectID string         `json:"subject_id,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// idInput is the content an event id is derived from.
type idInput struct {
	Action    Action         `json:"action"`
	ActorID   string         `json:"actor_id"`
	SubjectID string         `json:"subject_id"`
	Timestamp string         `json:"timestamp"`
	Details   map[string]any `json:"details"`
}

// NewEvent builds an event whose ID is derived from its content, so the same
// evaluation always yields the same record and re-persisting it is a no-op.
func NewEvent(action Action, actorID, subjectID string, at time.Time, details map[string]any) (Event, error) {
	at = at.UTC()
	eventID, err := canonical.ID(idInput{
		Action:    action,
		ActorID:   actorID,
		SubjectID: subjectID,
		Timestamp: at.Format(time.RFC3339Nano),
		Details:   details,
	})
	if err != nil {
		return Event{}, fmt.Errorf("derive audit event id: %w", err)
	}
	return Event{
		ID:        eventID,
		Category:  action.Category(),
		Timestamp: at,
		Action:    action,
		ActorID:   actorID,
		SubjectID: subjectID,
		Details:   details,
	}, nil
}

// Validation errors for mandatory fields.
var (
	ErrMissingID        = errors.New("AUDIT-001: audit event must have an id")
	ErrMissingAction    = errors.New("AUDIT-002: audit event must have an action")
	ErrMissingTimestamp = errors.New("AUDIT-003: audit event must have a timestamp")
	ErrMissingActor     = errors.New("AUDIT-004: audit event must have an actor")
)

// Validate checks that the mandatory fields are present.
func (e Event) Validate() error {
	switch {
	case e.ID == uuid.Nil:
		return ErrMissingID
	case e.Action == "":
		return ErrMissingAction
	case e.Timestamp.IsZero():
		return ErrMissingTimestamp
	case e.ActorID == "":
		return ErrMissingActor
	}
	return nil
}

// Store persists audit events. Implementations must treat a repeated ID as
// success without writing a second record.
type Store interface {
	SaveAuditEvent(ctx context.Context, event Event) error
}

// Reader lists persisted audit events for review. Not an input to decisions.
type Reader interface {
	ListBySubject(ctx context.Context, subjectID string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

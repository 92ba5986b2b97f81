package handler

import (
	"time"

	"mgcore/internal/economy/eligibility"
	"mgcore/internal/economy/governance"
	"mgcore/internal/economy/models"
	"mgcore/pkg/platform/audit"
)

// DecisionResponse carries a decision and the ids of the audit events that
// were persisted before it was returned.
type DecisionResponse struct {
	Decision      models.Decision `json:"decision"`
	AuditEventIDs []string        `json:"audit_event_ids"`
}

type GovernanceResponse struct {
	DecisionResponse
	Status          governance.Status          `json:"status"`
	ReviewLevel     governance.ReviewLevel     `json:"review_level"`
	Restriction     governance.Restriction     `json:"restriction"`
	ViolationReason governance.ViolationReason `json:"violation_reason,omitempty"`
	EvaluatedAt     time.Time                  `json:"evaluated_at"`
}

// AuditTrailResponse lists committed audit events for review.
type AuditTrailResponse struct {
	SubjectID string        `json:"subject_id,omitempty"`
	Events    []audit.Event `json:"events"`
}

func FromEligibility(r eligibility.Result) DecisionResponse {
	return DecisionResponse{Decision: r.Decision, AuditEventIDs: eventIDs(r.AuditEvents)}
}

func FromGovernance(r governance.GovernanceResult) GovernanceResponse {
	return GovernanceResponse{
		DecisionResponse: DecisionResponse{Decision: r.Decision, AuditEventIDs: eventIDs(r.AuditEvents)},
		Status:           r.Verdict,
		ReviewLevel:      r.ReviewLevel,
		Restriction:      r.Restriction,
		ViolationReason:  r.ViolationReason,
		EvaluatedAt:      r.EvaluatedAt,
	}
}

func eventIDs(events []audit.Event) []string {
	ids := make([]string, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID.String())
	}
	return ids
}

func nonNil(events []audit.Event) []audit.Event {
	if events == nil {
		return []audit.Event{}
	}
	return events
}

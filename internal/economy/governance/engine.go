// Package governance classifies usage and recognition signals. Its output is
// advisory: the engine holds no store, mutates nothing and never enforces.
package governance

import (
	"fmt"
	"slices"
	"time"

	"mgcore/internal/economy/canon"
	"mgcore/internal/economy/models"
	dErrors "mgcore/pkg/domain-errors"
	"mgcore/pkg/platform/audit"
)

type Status string

const (
	StatusAllowed           Status = "ALLOWED"
	StatusAllowedWithReview Status = "ALLOWED_WITH_REVIEW"
	StatusDisallowed        Status = "DISALLOWED"
)

type ReviewLevel string

const (
	ReviewNone     ReviewLevel = "NONE"
	ReviewRoutine  ReviewLevel = "ROUTINE"
	ReviewElevated ReviewLevel = "ELEVATED"
	ReviewCritical ReviewLevel = "CRITICAL"
)

// Restriction is the action governance recommends to a human reviewer.
type Restriction string

const (
	RestrictionNone         Restriction = "NONE"
	RestrictionFlagForAudit Restriction = "FLAG_FOR_AUDIT"
	RestrictionBlock        Restriction = "BLOCK_OPERATION"
)

type ViolationReason string

const (
	ReasonAnomalousVolume     ViolationReason = "ANOMALOUS_VOLUME"
	ReasonSuspiciousFrequency ViolationReason = "SUSPICIOUS_FREQUENCY"
	ReasonRestrictedDomain    ViolationReason = "RESTRICTED_DOMAIN"
)

const systemActor = "system"

// GovernanceResult is the advisory classification of a usage context.
type GovernanceResult struct {
	Verdict         Status          `json:"verdict"`
	ReviewLevel     ReviewLevel     `json:"review_level"`
	Restriction     Restriction     `json:"restriction"`
	ViolationReason ViolationReason `json:"violation_reason,omitempty"`
	Explanation     string          `json:"explanation"`
	EvaluatedAt     time.Time       `json:"evaluated_at"`
	Decision        models.Decision `json:"decision"`
	AuditEvents     []audit.Event   `json:"audit_events"`
}

// Engine evaluates governance and recognition. It carries only the canon
// registry and an immutable policy.
type Engine struct {
	registry *canon.Registry
	policy   Policy
}

type Option func(*Engine)

func WithPolicy(p Policy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

func New(registry *canon.Registry, opts ...Option) *Engine {
	e := &Engine{registry: registry, policy: DefaultPolicy()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns a copy of the active policy.
func (e *Engine) Policy() Policy {
	p := e.policy
	p.KnownDomains = slices.Clone(p.KnownDomains)
	p.RestrictedDomains = slices.Clone(p.RestrictedDomains)
	return p
}

// EvaluateGovernance classifies usage. Rule priority (first match wins):
//  1. Restricted or unknown domain
//  2. Volume above limit
//  3. Frequency above limit
//  4. Volume at or above review threshold
//  5. Frequency at or above review threshold
//  6. Allowed
func (e *Engine) EvaluateGovernance(uc models.UsageContext) (GovernanceResult, error) {
	if uc.EvaluatedAt.IsZero() {
		return GovernanceResult{}, dErrors.New(dErrors.CodeInvalidInput, "evaluated_at is required")
	}
	seal, err := e.registry.CheckCanon(canon.KindGovernanceContext, uc)
	if err != nil {
		return GovernanceResult{}, err
	}

	res := e.classify(uc)
	res.EvaluatedAt = uc.EvaluatedAt.UTC()
	res.Decision = models.Decision{
		Verdict:     decisionVerdict(res.Verdict),
		Explanation: res.Explanation,
		RuleID:      string(res.Verdict),
		EvaluatedAt: res.EvaluatedAt,
	}
	if res.ViolationReason != "" {
		res.Decision.RuleID = string(res.ViolationReason)
	}

	evaluated, err := audit.NewEvent(audit.ActionGovernanceEvaluated, systemActor, uc.UserID, uc.EvaluatedAt, map[string]any{
		"usage_context_id": uc.UsageContextID,
		"domain":           uc.Domain,
		"mc_volume":        uc.MCVolume,
		"operation_count":  uc.OperationCount,
		"window_hours":     uc.WindowHours,
		"status":           string(res.Verdict),
		"context_digest":   seal.Digest(),
	})
	if err != nil {
		return GovernanceResult{}, err
	}
	res.AuditEvents = []audit.Event{evaluated}

	switch res.Verdict {
	case StatusAllowedWithReview:
		flagged, err := audit.NewEvent(audit.ActionGovernanceFlagged, systemActor, uc.UserID, uc.EvaluatedAt, map[string]any{
			"usage_context_id": uc.UsageContextID,
			"domain":           uc.Domain,
			"review_level":     string(res.ReviewLevel),
			"reason":           string(res.ViolationReason),
		})
		if err != nil {
			return GovernanceResult{}, err
		}
		res.AuditEvents = append(res.AuditEvents, flagged)
	case StatusDisallowed:
		violation, err := audit.NewEvent(audit.ActionGovernanceViolation, systemActor, uc.UserID, uc.EvaluatedAt, map[string]any{
			"usage_context_id": uc.UsageContextID,
			"domain":           uc.Domain,
			"violation_reason": string(res.ViolationReason),
			"restriction":      string(res.Restriction),
		})
		if err != nil {
			return GovernanceResult{}, err
		}
		res.AuditEvents = append(res.AuditEvents, violation)
	}
	return res, nil
}

func (e *Engine) classify(uc models.UsageContext) GovernanceResult {
	p := e.policy
	rate := float64(uc.OperationCount) / float64(uc.WindowHours)

	disallow := func(reason ViolationReason, msg string) GovernanceResult {
		return GovernanceResult{
			Verdict: StatusDisallowed, ReviewLevel: ReviewCritical, Restriction: RestrictionBlock,
			ViolationReason: reason, Explanation: msg,
		}
	}
	review := func(level ReviewLevel, reason ViolationReason, msg string) GovernanceResult {
		return GovernanceResult{
			Verdict: StatusAllowedWithReview, ReviewLevel: level, Restriction: RestrictionFlagForAudit,
			ViolationReason: reason, Explanation: msg,
		}
	}

	switch {
	case slices.Contains(p.RestrictedDomains, uc.Domain):
		return disallow(ReasonRestrictedDomain, fmt.Sprintf("domain %q is restricted", uc.Domain))
	case len(p.KnownDomains) > 0 && !slices.Contains(p.KnownDomains, uc.Domain):
		return disallow(ReasonRestrictedDomain, fmt.Sprintf("domain %q is not a known MC domain", uc.Domain))
	case uc.MCVolume > p.VolumeLimit:
		return disallow(ReasonAnomalousVolume, fmt.Sprintf("volume %d exceeds limit %d", uc.MCVolume, p.VolumeLimit))
	case rate > p.FrequencyLimit:
		return disallow(ReasonSuspiciousFrequency, fmt.Sprintf("%.2f operations/hour exceeds limit %.2f", rate, p.FrequencyLimit))
	case uc.MCVolume >= p.VolumeElevated:
		return review(ReviewElevated, ReasonAnomalousVolume, fmt.Sprintf("volume %d needs senior review", uc.MCVolume))
	case uc.MCVolume >= p.VolumeReview:
		return review(ReviewRoutine, ReasonAnomalousVolume, fmt.Sprintf("volume %d needs review", uc.MCVolume))
	case rate >= p.FrequencyReview:
		return review(ReviewRoutine, ReasonSuspiciousFrequency, fmt.Sprintf("%.2f operations/hour needs review", rate))
	}
	return GovernanceResult{
		Verdict: StatusAllowed, ReviewLevel: ReviewNone, Restriction: RestrictionNone,
		Explanation: "usage within policy",
	}
}

func decisionVerdict(s Status) models.Verdict {
	switch s {
	case StatusDisallowed:
		return models.VerdictBlock
	default:
		return models.VerdictAllow
	}
}

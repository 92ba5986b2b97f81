package adapter

import (
	"fmt"
	"slices"

	"mgcore/internal/economy/models"
	dErrors "mgcore/pkg/domain-errors"
)

// Capability is a single permission a caller role may hold.
type Capability string

const (
	CapEvaluateEligibility Capability = "eligibility:evaluate"
	CapOpenAuction         Capability = "auction:open"
	CapParticipate         Capability = "auction:participate"
	CapCloseAuction        Capability = "auction:close"
	CapEvaluateGovernance  Capability = "governance:evaluate"
	CapEvaluateRecognition Capability = "recognition:evaluate"
	CapManualRecognition   Capability = "recognition:manual"
	CapReadAudit           Capability = "audit:read"
	CapReadRecentAudit     Capability = "audit:read_recent"
)

// selfOnly capabilities may only target the caller's own subject unless the
// role also holds the capability without restriction.
var selfOnly = map[models.Role][]Capability{
	models.RoleEmployee: {CapEvaluateEligibility, CapParticipate, CapReadAudit},
}

// DefaultCapabilities is the role table checked before any engine runs.
// AI callers are limited to advisory governance evaluation.
func DefaultCapabilities() map[models.Role][]Capability {
	return map[models.Role][]Capability{
		models.RoleEmployee: {CapEvaluateEligibility, CapParticipate, CapReadAudit},
		models.RoleManager: {
			CapEvaluateEligibility, CapOpenAuction, CapParticipate, CapCloseAuction,
			CapEvaluateRecognition, CapManualRecognition, CapReadAudit,
		},
		models.RoleAdmin: {
			CapEvaluateEligibility, CapOpenAuction, CapParticipate, CapCloseAuction,
			CapEvaluateGovernance, CapEvaluateRecognition, CapManualRecognition,
			CapReadAudit, CapReadRecentAudit,
		},
		models.RoleSystem: {
			CapEvaluateEligibility, CapOpenAuction, CapCloseAuction,
			CapEvaluateGovernance, CapEvaluateRecognition,
			CapReadAudit, CapReadRecentAudit,
		},
		models.RoleAI: {CapEvaluateGovernance},
	}
}

// authorize returns a forbidden domain error when caller lacks capability, or
// when a self-only capability targets another subject.
func (a *Adapter) authorize(caller models.Caller, capability Capability, subjectID string) error {
	if caller.ID == "" {
		return dErrors.New(dErrors.CodeUnauthorized, "caller id is required")
	}
	if !slices.Contains(a.capabilities[caller.Role], capability) {
		return dErrors.New(dErrors.CodeForbidden,
			fmt.Sprintf("role %q lacks %s", caller.Role, capability))
	}
	if subjectID != "" && subjectID != caller.ID && slices.Contains(selfOnly[caller.Role], capability) {
		return dErrors.New(dErrors.CodeForbidden,
			fmt.Sprintf("role %q may only use %s for itself", caller.Role, capability))
	}
	return nil
}

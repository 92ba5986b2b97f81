package handler

import (
	"strings"

	"mgcore/internal/economy/models"
	dErrors "mgcore/pkg/domain-errors"
)

const maxIDLength = 128

// EligibilityRequest is the body of POST /economy/eligibility. Without a
// snapshot the subject's projected wallet is used.
type EligibilityRequest struct {
	SubjectID           string                 `json:"subject_id"`
	IsSystemMaintenance bool                   `json:"is_system_maintenance"`
	IsRestricted        bool                   `json:"is_restricted"`
	Snapshot            *models.WalletSnapshot `json:"snapshot,omitempty"`
}

func (r *EligibilityRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.SubjectID = strings.TrimSpace(r.SubjectID)
	if r.SubjectID == "" {
		return dErrors.New(dErrors.CodeValidation, "subject_id is required")
	}
	if len(r.SubjectID) > maxIDLength {
		return dErrors.New(dErrors.CodeValidation, "subject_id must be at most 128 characters")
	}
	return nil
}

// GovernanceRequest is the body of POST /economy/governance.
type GovernanceRequest struct {
	UsageContextID string `json:"usage_context_id"`
	UserID         string `json:"user_id"`
	Domain         string `json:"domain"`
	MCVolume       int64  `json:"mc_volume"`
	OperationCount int    `json:"operation_count"`
	WindowHours    int    `json:"window_hours"`
}

func (r *GovernanceRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.UsageContextID = strings.TrimSpace(r.UsageContextID)
	r.UserID = strings.TrimSpace(r.UserID)
	r.Domain = strings.ToLower(strings.TrimSpace(r.Domain))
	switch {
	case r.UsageContextID == "":
		return dErrors.New(dErrors.CodeValidation, "usage_context_id is required")
	case r.UserID == "":
		return dErrors.New(dErrors.CodeValidation, "user_id is required")
	case r.Domain == "":
		return dErrors.New(dErrors.CodeValidation, "domain is required")
	case len(r.UsageContextID) > maxIDLength || len(r.UserID) > maxIDLength:
		return dErrors.New(dErrors.CodeValidation, "ids must be at most 128 characters")
	}
	return nil
}

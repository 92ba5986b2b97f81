package adapter

import (
	"context"
	"fmt"

	"mgcore/internal/economy/auction"
	"mgcore/internal/economy/eligibility"
	"mgcore/internal/economy/governance"
	"mgcore/internal/economy/models"
	dErrors "mgcore/pkg/domain-errors"
	"mgcore/pkg/platform/audit"
)

// Evaluate dispatches req to its engine and returns the decision once the
// audit trail is committed. No decision is returned alongside an error.
func (a *Adapter) Evaluate(ctx context.Context, caller models.Caller, req Request) (models.Decision, error) {
	switch r := req.(type) {
	case EligibilityRequest:
		res, err := a.EvaluateEligibility(ctx, caller, r)
		return res.Decision, err
	case OpenAuctionRequest:
		res, err := a.OpenAuction(ctx, caller, r)
		return res.Decision, err
	case ParticipateRequest:
		res, err := a.Participate(ctx, caller, r)
		return res.Decision, err
	case CloseAuctionRequest:
		res, err := a.CloseAuction(ctx, caller, r)
		return res.Decision, err
	case GovernanceRequest:
		res, err := a.EvaluateGovernance(ctx, caller, r)
		return res.Decision, err
	case RecognitionRequest:
		res, err := a.EvaluateRecognition(ctx, caller, r)
		return res.Decision, err
	default:
		return models.Decision{}, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("unsupported request %T", req))
	}
}

func (a *Adapter) EvaluateEligibility(ctx context.Context, caller models.Caller, req EligibilityRequest) (res eligibility.Result, err error) {
	ctx, finish := a.start(ctx, req.engine(), caller)
	defer func() { finish(&res.Decision, err) }()

	if err = a.authorize(caller, CapEvaluateEligibility, req.SubjectID); err != nil {
		return eligibility.Result{}, err
	}
	res, err = a.engines.Eligibility.Evaluate(eligibility.Input{
		SubjectID:           req.SubjectID,
		ActorID:             caller.ID,
		Snapshot:            req.Snapshot,
		IsSystemMaintenance: req.IsSystemMaintenance,
		IsRestricted:        req.IsRestricted,
		EvaluatedAt:         req.EvaluatedAt,
	})
	if err != nil {
		return eligibility.Result{}, err
	}
	if err = a.commit(ctx, req.engine(), res.AuditEvents); err != nil {
		return eligibility.Result{}, err
	}
	return res, nil
}

// OpenAuction evaluates organizer eligibility and the open transition, then
// commits both audit trails together.
func (a *Adapter) OpenAuction(ctx context.Context, caller models.Caller, req OpenAuctionRequest) (res auction.Result, err error) {
	ctx, finish := a.start(ctx, req.engine(), caller)
	defer func() { finish(&res.Decision, err) }()

	if err = a.authorize(caller, CapOpenAuction, ""); err != nil {
		return auction.Result{}, err
	}
	elig, err := a.engines.Eligibility.Evaluate(eligibility.Input{
		SubjectID:           req.Auction.OrganizerID,
		ActorID:             caller.ID,
		Snapshot:            req.OrganizerSnapshot,
		IsSystemMaintenance: req.IsSystemMaintenance,
		IsRestricted:        req.OrganizerRestricted,
		EvaluatedAt:         req.At,
	})
	if err != nil {
		return auction.Result{}, err
	}
	res, err = a.engines.Auction.OpenAuctionEvent(auction.OpenRequest{
		Auction:              req.Auction,
		OrganizerEligibility: elig.Decision,
		At:                   req.At,
	})
	if err != nil {
		return auction.Result{}, err
	}
	if err = a.commit(ctx, req.engine(), joinEvents(elig.AuditEvents, res.AuditEvents)); err != nil {
		return auction.Result{}, err
	}
	return res, nil
}

// Participate evaluates participant eligibility and the bid, then commits
// both audit trails together.
func (a *Adapter) Participate(ctx context.Context, caller models.Caller, req ParticipateRequest) (res auction.Result, err error) {
	ctx, finish := a.start(ctx, req.engine(), caller)
	defer func() { finish(&res.Decision, err) }()

	if err = a.authorize(caller, CapParticipate, req.ParticipantID); err != nil {
		return auction.Result{}, err
	}
	elig, err := a.engines.Eligibility.Evaluate(eligibility.Input{
		SubjectID:           req.ParticipantID,
		ActorID:             caller.ID,
		Snapshot:            req.Snapshot,
		IsSystemMaintenance: req.IsSystemMaintenance,
		IsRestricted:        req.IsRestricted,
		EvaluatedAt:         req.At,
	})
	if err != nil {
		return auction.Result{}, err
	}
	res, err = a.engines.Auction.ParticipateInAuction(auction.ParticipateRequest{
		Auction:       req.Auction,
		ParticipantID: req.ParticipantID,
		Snapshot:      req.Snapshot,
		Eligibility:   elig.Decision,
		Bid:           req.Bid,
		At:            req.At,
	})
	if err != nil {
		return auction.Result{}, err
	}
	if err = a.commit(ctx, req.engine(), joinEvents(elig.AuditEvents, res.AuditEvents)); err != nil {
		return auction.Result{}, err
	}
	return res, nil
}

func (a *Adapter) CloseAuction(ctx context.Context, caller models.Caller, req CloseAuctionRequest) (res auction.Result, err error) {
	ctx, finish := a.start(ctx, req.engine(), caller)
	defer func() { finish(&res.Decision, err) }()

	if err = a.authorize(caller, CapCloseAuction, ""); err != nil {
		return auction.Result{}, err
	}
	res, err = a.engines.Auction.CloseAuctionEvent(auction.CloseRequest{
		Auction: req.Auction,
		ActorID: caller.ID,
		Force:   req.Force,
		At:      req.At,
	})
	if err != nil {
		return auction.Result{}, err
	}
	if err = a.commit(ctx, req.engine(), res.AuditEvents); err != nil {
		return auction.Result{}, err
	}
	return res, nil
}

func (a *Adapter) EvaluateGovernance(ctx context.Context, caller models.Caller, req GovernanceRequest) (res governance.GovernanceResult, err error) {
	ctx, finish := a.start(ctx, req.engine(), caller)
	defer func() { finish(&res.Decision, err) }()

	if err = a.authorize(caller, CapEvaluateGovernance, ""); err != nil {
		return governance.GovernanceResult{}, err
	}
	res, err = a.engines.Governance.EvaluateGovernance(req.Context)
	if err != nil {
		return governance.GovernanceResult{}, err
	}
	if err = a.commit(ctx, req.engine(), res.AuditEvents); err != nil {
		return governance.GovernanceResult{}, err
	}
	return res, nil
}

// EvaluateRecognition requires CapManualRecognition for manual signals, and
// the caller must be the named recognizer.
func (a *Adapter) EvaluateRecognition(ctx context.Context, caller models.Caller, req RecognitionRequest) (res governance.RecognitionResult, err error) {
	ctx, finish := a.start(ctx, req.engine(), caller)
	defer func() { finish(&res.Decision, err) }()

	if err = a.authorize(caller, CapEvaluateRecognition, ""); err != nil {
		return governance.RecognitionResult{}, err
	}
	if m := req.Context.Manual; m != nil {
		if err = a.authorize(caller, CapManualRecognition, ""); err != nil {
			return governance.RecognitionResult{}, err
		}
		if m.RecognizerID != caller.ID {
			err = dErrors.New(dErrors.CodeForbidden, "manual recognition must be raised by the recognizer")
			return governance.RecognitionResult{}, err
		}
	}
	res, err = a.engines.Governance.EvaluateRecognition(req.Context)
	if err != nil {
		return governance.RecognitionResult{}, err
	}
	if err = a.commit(ctx, req.engine(), res.AuditEvents); err != nil {
		return governance.RecognitionResult{}, err
	}
	return res, nil
}

func joinEvents(groups ...[]audit.Event) []audit.Event {
	var n int
	for _, g := range groups {
		n += len(g)
	}
	out := make([]audit.Event, 0, n)
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// Package auction holds the pure DRAFT -> OPEN -> CLOSED transitions. Each
// operation validates the incoming auction through the canon registry and
// returns a new value; the input is never modified.
package auction

import (
	"fmt"
	"sort"
	"time"

	"mgcore/internal/economy/canon"
	"mgcore/internal/economy/models"
	dErrors "mgcore/pkg/domain-errors"
	"mgcore/pkg/platform/audit"
)

// Rule identifiers for accepted operations.
const (
	RuleOpened   = "AUCTION_OPENED"
	RuleAccepted = "PARTICIPATION_ACCEPTED"
	RuleClosed   = "AUCTION_CLOSED"
)

// Result is the next auction value, the decision, and the audit trail. When
// the request was rejected, Rejection is set and Auction equals the input.
type Result struct {
	Auction     models.Auction  `json:"auction"`
	Decision    models.Decision `json:"decision"`
	AuditEvents []audit.Event   `json:"audit_events"`
	Rejection   *AuctionError   `json:"-"`
}

type OpenRequest struct {
	Auction              models.Auction
	OrganizerEligibility models.Decision
	At                   time.Time
}

type ParticipateRequest struct {
	Auction       models.Auction
	ParticipantID string
	Snapshot      models.WalletSnapshot
	Eligibility   models.Decision
	Bid           int64
	At            time.Time
}

type CloseRequest struct {
	Auction models.Auction
	ActorID string
	Force   bool
	At      time.Time
}

// Engine evaluates auction transitions.
type Engine struct {
	registry *canon.Registry
}

func New(registry *canon.Registry) *Engine {
	return &Engine{registry: registry}
}

// OpenAuctionEvent moves a DRAFT auction to OPEN when the organizer is eligible.
func (e *Engine) OpenAuctionEvent(req OpenRequest) (Result, error) {
	if err := e.checkState(req.Auction, req.At); err != nil {
		return Result{}, err
	}
	actor := req.Auction.OrganizerID

	switch req.Auction.Status {
	case models.AuctionOpen:
		return e.reject(req.Auction, actor, req.At, TransitionOpen, CodeAlreadyOpen, "auction is already open", nil)
	case models.AuctionClosed:
		return e.reject(req.Auction, actor, req.At, TransitionOpen, CodeAlreadyClosed, "auction is closed", nil)
	}
	if !req.OrganizerEligibility.Allowed() {
		return e.reject(req.Auction, actor, req.At, TransitionOpen, CodeNotEligible,
			fmt.Sprintf("organizer eligibility is %s (%s)", req.OrganizerEligibility.Verdict, req.OrganizerEligibility.RuleID), nil)
	}

	next := req.Auction.Clone()
	next.Status = models.AuctionOpen
	next.OpenedAt = req.At.UTC()

	return e.accept(next, actor, req.At, audit.ActionAuctionOpened, RuleOpened, "auction opened", map[string]any{
		"auction_id":   next.ID,
		"organizer_id": next.OrganizerID,
		"status":       string(next.Status),
	})
}

// ParticipateInAuction records a single bid from an eligible participant.
func (e *Engine) ParticipateInAuction(req ParticipateRequest) (Result, error) {
	if err := e.checkState(req.Auction, req.At); err != nil {
		return Result{}, err
	}
	if req.ParticipantID == "" {
		return Result{}, dErrors.New(dErrors.CodeInvalidInput, "participant id is required")
	}
	actor := req.ParticipantID
	extra := map[string]any{"participant_id": req.ParticipantID, "bid": req.Bid}

	switch req.Auction.Status {
	case models.AuctionClosed:
		return e.reject(req.Auction, actor, req.At, TransitionParticipate, CodeAlreadyClosed, "auction is closed", extra)
	case models.AuctionDraft:
		return e.reject(req.Auction, actor, req.At, TransitionParticipate, CodeNotOpen, "auction has not opened", extra)
	}

	if req.Snapshot.SubjectID != req.ParticipantID {
		return Result{}, dErrors.New(dErrors.CodeInvalidInput,
			fmt.Sprintf("snapshot belongs to %q, not %q", req.Snapshot.SubjectID, req.ParticipantID))
	}
	seal, err := e.registry.CheckCanon(canon.KindMCSnapshot, req.Snapshot)
	if err != nil {
		return Result{}, err
	}

	switch {
	case !req.Eligibility.Allowed():
		return e.reject(req.Auction, actor, req.At, TransitionParticipate, CodeNotEligible,
			fmt.Sprintf("participant eligibility is %s (%s)", req.Eligibility.Verdict, req.Eligibility.RuleID), extra)
	case req.Bid <= 0:
		return e.reject(req.Auction, actor, req.At, TransitionParticipate, CodeInvalidBid,
			fmt.Sprintf("bid %d must be positive", req.Bid), extra)
	case req.Bid > req.Snapshot.Balance:
		return e.reject(req.Auction, actor, req.At, TransitionParticipate, CodeInsufficientBalance,
			fmt.Sprintf("bid %d exceeds balance %d", req.Bid, req.Snapshot.Balance), extra)
	case req.Auction.HasBid(req.ParticipantID):
		return e.reject(req.Auction, actor, req.At, TransitionParticipate, CodeAlreadyParticipated,
			"participant already placed a bid", extra)
	}

	next := req.Auction.Clone()
	next.Bids = append(next.Bids, models.Bid{ParticipantID: req.ParticipantID, Amount: req.Bid, PlacedAt: req.At.UTC()})

	return e.accept(next, actor, req.At, audit.ActionAuctionParticipation, RuleAccepted, "bid accepted", map[string]any{
		"auction_id":      next.ID,
		"participant_id":  req.ParticipantID,
		"bid":             req.Bid,
		"balance":         req.Snapshot.Balance,
		"snapshot_digest": seal.Digest(),
	})
}

// CloseAuctionEvent closes an OPEN auction and selects the winner. An auction
// without bids only closes when forced.
func (e *Engine) CloseAuctionEvent(req CloseRequest) (Result, error) {
	if err := e.checkState(req.Auction, req.At); err != nil {
		return Result{}, err
	}
	actor := req.ActorID
	if actor == "" {
		actor = req.Auction.OrganizerID
	}

	switch req.Auction.Status {
	case models.AuctionClosed:
		return e.reject(req.Auction, actor, req.At, TransitionClose, CodeAlreadyClosed, "auction is closed", nil)
	case models.AuctionDraft:
		return e.reject(req.Auction, actor, req.At, TransitionClose, CodeNotOpen, "auction has not opened", nil)
	}
	if len(req.Auction.Bids) == 0 && !req.Force {
		return e.reject(req.Auction, actor, req.At, TransitionClose, CodeNoParticipants,
			"auction has no participants; force to close", nil)
	}

	next := req.Auction.Clone()
	next.Status = models.AuctionClosed
	next.ClosedAt = req.At.UTC()

	details := map[string]any{
		"auction_id":   next.ID,
		"participants": len(next.Bids),
		"forced":       req.Force,
	}
	if winner, ok := SelectWinner(next.Bids); ok {
		next.WinnerID = winner.ParticipantID
		details["winner_id"] = winner.ParticipantID
		details["winning_bid"] = winner.Amount
	}

	return e.accept(next, actor, req.At, audit.ActionAuctionClosed, RuleClosed, "auction closed", details)
}

// SelectWinner returns the highest bid. Ties go to the earliest PlacedAt, then
// the lexically smallest participant id.
func SelectWinner(bids []models.Bid) (models.Bid, bool) {
	if len(bids) == 0 {
		return models.Bid{}, false
	}
	ranked := make([]models.Bid, len(bids))
	copy(ranked, bids)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Amount != b.Amount {
			return a.Amount > b.Amount
		}
		if !a.PlacedAt.Equal(b.PlacedAt) {
			return a.PlacedAt.Before(b.PlacedAt)
		}
		return a.ParticipantID < b.ParticipantID
	})
	return ranked[0], true
}

func (e *Engine) checkState(a models.Auction, at time.Time) error {
	if at.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "evaluation time is required")
	}
	_, err := e.registry.CheckCanon(canon.KindAuctionState, a)
	return err
}

func (e *Engine) accept(next models.Auction, actor string, at time.Time, action audit.Action, rule, explanation string, details map[string]any) (Result, error) {
	seal, err := e.registry.CheckCanon(canon.KindAuctionState, next)
	if err != nil {
		return Result{}, err
	}
	details["state_digest"] = seal.Digest()

	event, err := audit.NewEvent(action, actor, next.ID, at, details)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Auction: next,
		Decision: models.Decision{
			Verdict:     models.VerdictAllow,
			Explanation: explanation,
			RuleID:      rule,
			EvaluatedAt: at.UTC(),
		},
		AuditEvents: []audit.Event{event},
	}, nil
}

func (e *Engine) reject(current models.Auction, actor string, at time.Time, attempted Transition, code ErrorCode, msg string, extra map[string]any) (Result, error) {
	rejection := &AuctionError{Code: code, Attempted: attempted, Current: current.Status, Message: msg}

	details := map[string]any{
		"auction_id": current.ID,
		"attempted":  string(attempted),
		"current":    string(current.Status),
		"code":       string(code),
	}
	for k, v := range extra {
		details[k] = v
	}
	event, err := audit.NewEvent(audit.ActionAuctionDenied, actor, current.ID, at, details)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Auction: current.Clone(),
		Decision: models.Decision{
			Verdict:     models.VerdictDeny,
			Explanation: msg,
			RuleID:      string(code),
			EvaluatedAt: at.UTC(),
		},
		AuditEvents: []audit.Event{event},
		Rejection:   rejection,
	}, nil
}

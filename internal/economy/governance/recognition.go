package governance

import (
	"time"

	"mgcore/internal/economy/canon"
	"mgcore/internal/economy/models"
	dErrors "mgcore/pkg/domain-errors"
	"mgcore/pkg/platform/audit"
	"mgcore/pkg/platform/canonical"
)

type RecognitionStatus string

const (
	RecognitionEligible    RecognitionStatus = "ELIGIBLE"
	RecognitionNotEligible RecognitionStatus = "NOT_ELIGIBLE"
	RecognitionDenied      RecognitionStatus = "DENIED"
)

type RecognitionReason string

const (
	ReasonAuctionNotClosed RecognitionReason = "AUCTION_NOT_CLOSED"
	ReasonNoParticipation  RecognitionReason = "NO_PARTICIPATION"
	ReasonMissingSnapshot  RecognitionReason = "MISSING_SNAPSHOT"
	ReasonBelowThreshold   RecognitionReason = "BELOW_THRESHOLD"
)

// ManualSignal is a human-raised recognition request. It bypasses the roll
// but must carry a human recognizer and a justification.
type ManualSignal struct {
	RecognizerID   string
	RecognizerType models.ActorType
	Justification  string
}

type RecognitionContext struct {
	Auction       models.Auction
	ParticipantID string
	Snapshot      *models.WalletSnapshot
	Manual        *ManualSignal
	EvaluatedAt   time.Time
}

// RecognitionEvidence is everything the classification was based on.
type RecognitionEvidence struct {
	AuctionID      string                    `json:"auction_id"`
	ParticipantID  string                    `json:"participant_id"`
	Trigger        models.RecognitionTrigger `json:"trigger"`
	RecognizerID   string                    `json:"recognizer_id,omitempty"`
	Bid            int64                     `json:"bid,omitempty"`
	Winner         bool                      `json:"winner"`
	SnapshotDigest string                    `json:"snapshot_digest,omitempty"`
	Roll           float64                   `json:"roll,omitempty"`
	Threshold      float64                   `json:"threshold,omitempty"`
}

// RecognitionResult is an advisory signal. Eligible never implies any balance change.
type RecognitionResult struct {
	Eligible    bool                `json:"eligible"`
	Status      RecognitionStatus   `json:"status"`
	Reason      RecognitionReason   `json:"reason,omitempty"`
	Evidence    RecognitionEvidence `json:"evidence"`
	EvaluatedAt time.Time           `json:"evaluated_at"`
	Decision    models.Decision     `json:"decision"`
	AuditEvents []audit.Event       `json:"audit_events"`
}

type rollInput struct {
	AuctionID     string `json:"auction_id"`
	ParticipantID string `json:"participant_id"`
	EvaluatedAt   string `json:"evaluated_at"`
}

// Roll is the deterministic draw used for probabilistic recognition.
func Roll(auctionID, participantID string, at time.Time) (float64, error) {
	return canonical.Fraction(rollInput{
		AuctionID:     auctionID,
		ParticipantID: participantID,
		EvaluatedAt:   at.UTC().Format(time.RFC3339Nano),
	})
}

// EvaluateRecognition decides whether a closed-auction participant raises a
// GMC recognition signal.
func (e *Engine) EvaluateRecognition(rc RecognitionContext) (RecognitionResult, error) {
	if rc.EvaluatedAt.IsZero() {
		return RecognitionResult{}, dErrors.New(dErrors.CodeInvalidInput, "evaluated_at is required")
	}
	if rc.ParticipantID == "" {
		return RecognitionResult{}, dErrors.New(dErrors.CodeInvalidInput, "participant id is required")
	}
	if _, err := e.registry.CheckCanon(canon.KindAuctionState, rc.Auction); err != nil {
		return RecognitionResult{}, err
	}

	res := RecognitionResult{
		EvaluatedAt: rc.EvaluatedAt.UTC(),
		Evidence: RecognitionEvidence{
			AuctionID:     rc.Auction.ID,
			ParticipantID: rc.ParticipantID,
			Trigger:       models.TriggerProbabilistic,
			Winner:        rc.Auction.WinnerID == rc.ParticipantID,
		},
	}
	if rc.Manual != nil {
		res.Evidence.Trigger = models.TriggerManual
	}
	for _, b := range rc.Auction.Bids {
		if b.ParticipantID == rc.ParticipantID {
			res.Evidence.Bid = b.Amount
		}
	}

	switch {
	case rc.Auction.Status != models.AuctionClosed:
		return e.recognitionOutcome(res, RecognitionDenied, ReasonAuctionNotClosed)
	case !rc.Auction.HasBid(rc.ParticipantID):
		return e.recognitionOutcome(res, RecognitionDenied, ReasonNoParticipation)
	case rc.Snapshot == nil:
		return e.recognitionOutcome(res, RecognitionDenied, ReasonMissingSnapshot)
	}

	seal, err := e.registry.CheckCanon(canon.KindMCSnapshot, rc.Snapshot)
	if err != nil {
		return RecognitionResult{}, err
	}
	res.Evidence.SnapshotDigest = seal.Digest()

	signal := models.RecognitionSignal{
		AuctionID:     rc.Auction.ID,
		ParticipantID: rc.ParticipantID,
		Trigger:       res.Evidence.Trigger,
	}
	if rc.Manual != nil {
		signal.RecognizerID = rc.Manual.RecognizerID
		signal.RecognizerType = rc.Manual.RecognizerType
		signal.Justification = rc.Manual.Justification
	}
	if _, err := e.registry.CheckCanon(canon.KindGMCRecognition, signal); err != nil {
		return RecognitionResult{}, err
	}

	if rc.Manual != nil {
		res.Evidence.RecognizerID = rc.Manual.RecognizerID
		return e.recognitionOutcome(res, RecognitionEligible, "")
	}

	roll, err := Roll(rc.Auction.ID, rc.ParticipantID, rc.EvaluatedAt)
	if err != nil {
		return RecognitionResult{}, err
	}
	res.Evidence.Roll = roll
	res.Evidence.Threshold = e.policy.RecognitionProbability
	if roll < e.policy.RecognitionProbability {
		return e.recognitionOutcome(res, RecognitionEligible, "")
	}
	return e.recognitionOutcome(res, RecognitionNotEligible, ReasonBelowThreshold)
}

func (e *Engine) recognitionOutcome(res RecognitionResult, status RecognitionStatus, reason RecognitionReason) (RecognitionResult, error) {
	res.Status = status
	res.Reason = reason
	res.Eligible = status == RecognitionEligible

	res.Decision = models.Decision{
		Verdict:     models.VerdictDeny,
		Explanation: "no recognition signal",
		RuleID:      string(status),
		EvaluatedAt: res.EvaluatedAt,
	}
	if reason != "" {
		res.Decision.RuleID = string(reason)
	}
	if res.Eligible {
		res.Decision.Verdict = models.VerdictAllow
		res.Decision.Explanation = "recognition signal raised for human review"
	}

	ev := res.Evidence
	subject := ev.ParticipantID
	actor := systemActor
	if ev.RecognizerID != "" {
		actor = ev.RecognizerID
	}
	evaluated, err := audit.NewEvent(audit.ActionRecognitionEvaluated, actor, subject, res.EvaluatedAt, map[string]any{
		"auction_id":      ev.AuctionID,
		"participant_id":  ev.ParticipantID,
		"status":          string(status),
		"reason":          string(reason),
		"trigger":         string(ev.Trigger),
		"roll":            ev.Roll,
		"threshold":       ev.Threshold,
		"snapshot_digest": ev.SnapshotDigest,
	})
	if err != nil {
		return RecognitionResult{}, err
	}
	res.AuditEvents = []audit.Event{evaluated}

	var follow audit.Action
	switch status {
	case RecognitionEligible:
		follow = audit.ActionRecognitionFlagged
	case RecognitionDenied:
		follow = audit.ActionRecognitionDenied
	default:
		return res, nil
	}
	next, err := audit.NewEvent(follow, actor, subject, res.EvaluatedAt, map[string]any{
		"auction_id":     ev.AuctionID,
		"participant_id": ev.ParticipantID,
		"trigger":        string(ev.Trigger),
		"reason":         string(reason),
	})
	if err != nil {
		return RecognitionResult{}, err
	}
	res.AuditEvents = append(res.AuditEvents, next)
	return res, nil
}

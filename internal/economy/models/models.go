// Package models holds the value types shared by the economy engines, the
// adapter and the read model.
package models

import "time"

// Verdict is the outcome of an engine evaluation.
type Verdict string

const (
	VerdictAllow Verdict = "ALLOW"
	VerdictDeny  Verdict = "DENY"
	VerdictBlock Verdict = "BLOCK"
)

// Decision is produced exactly once per engine invocation.
type Decision struct {
	Verdict     Verdict   `json:"verdict"`
	Explanation string    `json:"explanation"`
	RuleID      string    `json:"rule_id,omitempty"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// Allowed reports whether the verdict is ALLOW.
func (d Decision) Allowed() bool { return d.Verdict == VerdictAllow }

// LifecycleState is the state of a single MC unit.
type LifecycleState string

const (
	StateIssued     LifecycleState = "ISSUED"
	StateLocked     LifecycleState = "LOCKED"
	StateSpent      LifecycleState = "SPENT"
	StateExpired    LifecycleState = "EXPIRED"
	StateBurned     LifecycleState = "BURNED"
	StateRecognized LifecycleState = "RECOGNIZED"
)

// MCUnit is one issued amount of MC tracked through its lifecycle.
type MCUnit struct {
	ID        string         `json:"id"`
	OwnerID   string         `json:"owner_id"`
	Amount    int64          `json:"amount"`
	State     LifecycleState `json:"state"`
	IssuedAt  time.Time      `json:"issued_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// WalletSnapshot is a read-only aggregation of one subject's units as of a
// point in time. Balance counts ISSUED units, Locked counts LOCKED units.
type WalletSnapshot struct {
	SubjectID string    `json:"subject_id"`
	Balance   int64     `json:"balance"`
	Locked    int64     `json:"locked"`
	Units     []MCUnit  `json:"units,omitempty"`
	AsOf      time.Time `json:"as_of"`
}

// ActorType distinguishes who initiated an operation.
type ActorType string

const (
	ActorHuman  ActorType = "HUMAN"
	ActorSystem ActorType = "SYSTEM"
	ActorAI     ActorType = "AI"
)

// Role is the capability class of a caller.
type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
	RoleSystem   Role = "system"
	RoleAI       Role = "ai"
)

// Caller identifies who is asking the adapter for a decision.
type Caller struct {
	Role Role   `json:"role"`
	ID   string `json:"id"`
}

// AuctionStatus is the auction lifecycle position.
type AuctionStatus string

const (
	AuctionDraft  AuctionStatus = "DRAFT"
	AuctionOpen   AuctionStatus = "OPEN"
	AuctionClosed AuctionStatus = "CLOSED"
)

// Bid is one participant's single entry into an auction.
type Bid struct {
	ParticipantID string    `json:"participant_id"`
	Amount        int64     `json:"amount"`
	PlacedAt      time.Time `json:"placed_at"`
}

// Auction is a value; engines return a new one instead of mutating the input.
type Auction struct {
	ID          string        `json:"id"`
	OrganizerID string        `json:"organizer_id"`
	Status      AuctionStatus `json:"status"`
	Bids        []Bid         `json:"bids,omitempty"`
	WinnerID    string        `json:"winner_id,omitempty"`
	OpenedAt    time.Time     `json:"opened_at,omitzero"`
	ClosedAt    time.Time     `json:"closed_at,omitzero"`
}

// Clone returns a deep copy.
func (a Auction) Clone() Auction {
	out := a
	if a.Bids != nil {
		out.Bids = make([]Bid, len(a.Bids))
		copy(out.Bids, a.Bids)
	}
	return out
}

// HasBid reports whether participantID already took part.
func (a Auction) HasBid(participantID string) bool {
	for _, b := range a.Bids {
		if b.ParticipantID == participantID {
			return true
		}
	}
	return false
}

// UsageContext is the accumulated usage signal governance evaluates.
type UsageContext struct {
	UsageContextID string    `json:"usage_context_id"`
	UserID         string    `json:"user_id"`
	Domain         string    `json:"domain"`
	MCVolume       int64     `json:"mc_volume"`
	OperationCount int       `json:"operation_count"`
	WindowHours    int       `json:"window_hours"`
	EvaluatedAt    time.Time `json:"evaluated_at"`
}

// RecognitionTrigger says what raised a GMC recognition signal.
type RecognitionTrigger string

const (
	TriggerProbabilistic RecognitionTrigger = "PROBABILISTIC_CHECK"
	TriggerManual        RecognitionTrigger = "MANUAL_SIGNAL"
)

// RecognitionSignal is the payload the gmc_recognition canon check validates.
type RecognitionSignal struct {
	AuctionID      string             `json:"auction_id"`
	ParticipantID  string             `json:"participant_id"`
	Trigger        RecognitionTrigger `json:"trigger"`
	RecognizerID   string             `json:"recognizer_id,omitempty"`
	RecognizerType ActorType          `json:"recognizer_type,omitempty"`
	Justification  string             `json:"justification,omitempty"`
}

package adapter

import (
	"time"

	"mgcore/internal/economy/governance"
	"mgcore/internal/economy/models"
)

// Request is one of the evaluation requests below.
type Request interface {
	engine() string
}

type EligibilityRequest struct {
	SubjectID           string                `json:"subject_id"`
	Snapshot            models.WalletSnapshot `json:"snapshot"`
	IsSystemMaintenance bool                  `json:"is_system_maintenance"`
	IsRestricted        bool                  `json:"is_restricted"`
	EvaluatedAt         time.Time             `json:"evaluated_at"`
}

// OpenAuctionRequest opens Auction once its organizer passes eligibility.
type OpenAuctionRequest struct {
	Auction             models.Auction        `json:"auction"`
	OrganizerSnapshot   models.WalletSnapshot `json:"organizer_snapshot"`
	OrganizerRestricted bool                  `json:"organizer_restricted"`
	IsSystemMaintenance bool                  `json:"is_system_maintenance"`
	At                  time.Time             `json:"at"`
}

// ParticipateRequest places a bid once the participant passes eligibility.
type ParticipateRequest struct {
	Auction             models.Auction        `json:"auction"`
	ParticipantID       string                `json:"participant_id"`
	Snapshot            models.WalletSnapshot `json:"snapshot"`
	IsRestricted        bool                  `json:"is_restricted"`
	IsSystemMaintenance bool                  `json:"is_system_maintenance"`
	Bid                 int64                 `json:"bid"`
	At                  time.Time             `json:"at"`
}

type CloseAuctionRequest struct {
	Auction models.Auction `json:"auction"`
	Force   bool           `json:"force"`
	At      time.Time      `json:"at"`
}

type GovernanceRequest struct {
	Context models.UsageContext `json:"context"`
}

type RecognitionRequest struct {
	Context governance.RecognitionContext
}

func (EligibilityRequest) engine() string  { return "eligibility" }
func (OpenAuctionRequest) engine() string  { return "auction_open" }
func (ParticipateRequest) engine() string  { return "auction_participate" }
func (CloseAuctionRequest) engine() string { return "auction_close" }
func (GovernanceRequest) engine() string   { return "governance" }
func (RecognitionRequest) engine() string  { return "recognition" }

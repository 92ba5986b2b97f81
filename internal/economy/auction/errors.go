package auction

import (
	"fmt"

	"mgcore/internal/economy/models"
)

// ErrorCode is a domain rejection reason. Rejections are normal results, not
// failures of the engine.
type ErrorCode string

const (
	CodeAlreadyClosed       ErrorCode = "ALREADY_CLOSED"
	CodeAlreadyOpen         ErrorCode = "ALREADY_OPEN"
	CodeNotOpen             ErrorCode = "NOT_OPEN"
	CodeNotEligible         ErrorCode = "NOT_ELIGIBLE"
	CodeInvalidBid          ErrorCode = "INVALID_BID"
	CodeInsufficientBalance ErrorCode = "INSUFFICIENT_BALANCE"
	CodeAlreadyParticipated ErrorCode = "ALREADY_PARTICIPATED"
	CodeNoParticipants      ErrorCode = "NO_PARTICIPANTS"
)

// Transition names the operation that was attempted.
type Transition string

const (
	TransitionOpen        Transition = "open"
	TransitionParticipate Transition = "participate"
	TransitionClose       Transition = "close"
)

// AuctionError describes a rejected transition.
type AuctionError struct {
	Code      ErrorCode
	Attempted Transition
	Current   models.AuctionStatus
	Message   string
}

func (e *AuctionError) Error() string {
	return fmt.Sprintf("auction %s rejected in %s: %s: %s", e.Attempted, e.Current, e.Code, e.Message)
}

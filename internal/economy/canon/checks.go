package canon

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"mgcore/internal/economy/lifecycle"
	"mgcore/internal/economy/models"
)

const minJustificationRunes = 50

func checkMCSnapshot(payload any) *Violation {
	var s models.WalletSnapshot
	switch p := payload.(type) {
	case models.WalletSnapshot:
		s = p
	case *models.WalletSnapshot:
		if p == nil {
			return &Violation{Code: "MISSING_SNAPSHOT", Message: "snapshot is nil"}
		}
		s = *p
	default:
		return invalidPayload("models.WalletSnapshot", payload)
	}

	if strings.TrimSpace(s.SubjectID) == "" {
		return &Violation{Code: "MISSING_OWNER", InvariantID: "MC-INV-004", Message: "snapshot has no subject"}
	}
	if s.Balance < 0 {
		return &Violation{Code: "NEGATIVE_BALANCE", InvariantID: "MC-INV-003",
			Message: fmt.Sprintf("balance %d is negative", s.Balance)}
	}
	if s.Locked < 0 {
		return &Violation{Code: "NEGATIVE_BALANCE", InvariantID: "MC-INV-003",
			Message: fmt.Sprintf("locked %d is negative", s.Locked)}
	}
	if len(s.Units) == 0 {
		return nil
	}

	var issued, locked int64
	seen := make(map[string]struct{}, len(s.Units))
	for _, u := range s.Units {
		if v := checkUnit(s.SubjectID, u); v != nil {
			return v
		}
		if _, dup := seen[u.ID]; dup {
			return &Violation{Code: "DUPLICATE_UNIT", InvariantID: "MC-INV-012",
				Message: fmt.Sprintf("unit %s appears twice", u.ID)}
		}
		seen[u.ID] = struct{}{}
		switch u.State {
		case models.StateIssued:
			issued += u.Amount
		case models.StateLocked:
			locked += u.Amount
		}
	}
	if issued != s.Balance || locked != s.Locked {
		return &Violation{Code: "BALANCE_MISMATCH", InvariantID: "MC-INV-003",
			Message: fmt.Sprintf("units sum to balance=%d locked=%d, snapshot says balance=%d locked=%d",
				issued, locked, s.Balance, s.Locked)}
	}
	return nil
}

func checkUnit(subjectID string, u models.MCUnit) *Violation {
	switch {
	case u.ID == "":
		return &Violation{Code: "MISSING_UNIT_ID", InvariantID: "MC-INV-012", Message: "unit has no id"}
	case u.OwnerID == "":
		return &Violation{Code: "MISSING_OWNER", InvariantID: "MC-INV-004",
			Message: fmt.Sprintf("unit %s has no owner", u.ID)}
	case u.OwnerID != subjectID:
		return &Violation{Code: "OWNER_MISMATCH", InvariantID: "MC-INV-004",
			Message: fmt.Sprintf("unit %s belongs to %s, not %s", u.ID, u.OwnerID, subjectID)}
	case u.Amount <= 0:
		return &Violation{Code: "INVALID_AMOUNT", InvariantID: "MC-INV-003",
			Message: fmt.Sprintf("unit %s amount %d must be positive", u.ID, u.Amount)}
	case u.ExpiresAt.IsZero():
		return &Violation{Code: "MISSING_EXPIRATION", InvariantID: "MC-INV-001",
			Message: fmt.Sprintf("unit %s has no expiration", u.ID)}
	case !u.ExpiresAt.After(u.IssuedAt):
		return &Violation{Code: "INVALID_EXPIRATION", InvariantID: "MC-INV-002",
			Message: fmt.Sprintf("unit %s expires before it was issued", u.ID)}
	case !lifecycle.Known(u.State):
		return &Violation{Code: "UNKNOWN_STATE", InvariantID: "MC-INV-012",
			Message: fmt.Sprintf("unit %s has state %q", u.ID, u.State)}
	}
	return nil
}

func checkMCTransition(payload any) *Violation {
	req, ok := payload.(lifecycle.Request)
	if !ok {
		return invalidPayload("lifecycle.Request", payload)
	}
	if req.UnitID == "" {
		return &Violation{Code: "MISSING_UNIT_ID", InvariantID: "MC-INV-012", Message: "transition has no unit"}
	}
	if _, err := lifecycle.Transition(req.From, req.Operation, req.Actor); err != nil {
		var lerr *lifecycle.Error
		if errors.As(err, &lerr) {
			return &Violation{Code: lerr.Code, InvariantID: lerr.InvariantID, Message: lerr.Error()}
		}
		return &Violation{Code: "FORBIDDEN_TRANSITION", Message: err.Error()}
	}
	return nil
}

func checkAuctionState(payload any) *Violation {
	var a models.Auction
	switch p := payload.(type) {
	case models.Auction:
		a = p
	case *models.Auction:
		if p == nil {
			return &Violation{Code: "MISSING_AUCTION", Message: "auction is nil"}
		}
		a = *p
	default:
		return invalidPayload("models.Auction", payload)
	}

	switch {
	case a.ID == "":
		return &Violation{Code: "MISSING_AUCTION_ID", Message: "auction has no id"}
	case a.OrganizerID == "":
		return &Violation{Code: "MISSING_ORGANIZER", Message: fmt.Sprintf("auction %s has no organizer", a.ID)}
	}
	switch a.Status {
	case models.AuctionDraft:
		if len(a.Bids) > 0 {
			return &Violation{Code: "BIDS_BEFORE_OPEN", Message: fmt.Sprintf("draft auction %s has bids", a.ID)}
		}
	case models.AuctionOpen, models.AuctionClosed:
	default:
		return &Violation{Code: "UNKNOWN_AUCTION_STATUS", Message: fmt.Sprintf("auction %s has status %q", a.ID, a.Status)}
	}

	seen := make(map[string]struct{}, len(a.Bids))
	for _, b := range a.Bids {
		if b.ParticipantID == "" {
			return &Violation{Code: "MISSING_PARTICIPANT", Message: fmt.Sprintf("auction %s has an anonymous bid", a.ID)}
		}
		if _, dup := seen[b.ParticipantID]; dup {
			return &Violation{Code: "DUPLICATE_PARTICIPANT",
				Message: fmt.Sprintf("participant %s bid twice in auction %s", b.ParticipantID, a.ID)}
		}
		seen[b.ParticipantID] = struct{}{}
		if b.Amount <= 0 {
			return &Violation{Code: "INVALID_AMOUNT", InvariantID: "MC-INV-003",
				Message: fmt.Sprintf("bid by %s is %d", b.ParticipantID, b.Amount)}
		}
	}

	if a.WinnerID != "" {
		if a.Status != models.AuctionClosed {
			return &Violation{Code: "WINNER_BEFORE_CLOSE", Message: fmt.Sprintf("auction %s has a winner while %s", a.ID, a.Status)}
		}
		if _, ok := seen[a.WinnerID]; !ok {
			return &Violation{Code: "INVALID_WINNER", Message: fmt.Sprintf("winner %s did not bid in auction %s", a.WinnerID, a.ID)}
		}
	}
	return nil
}

func checkGovernanceContext(payload any) *Violation {
	c, ok := payload.(models.UsageContext)
	if !ok {
		return invalidPayload("models.UsageContext", payload)
	}
	switch {
	case c.UsageContextID == "" || c.UserID == "":
		return &Violation{Code: "INVALID_CONTEXT", Message: "usage context needs an id and a user"}
	case c.Domain == "":
		return &Violation{Code: "INVALID_CONTEXT", Message: fmt.Sprintf("usage context %s has no domain", c.UsageContextID)}
	case c.MCVolume < 0 || c.OperationCount < 0:
		return &Violation{Code: "DATA_INTEGRITY_ISSUE",
			Message: fmt.Sprintf("usage context %s has negative counters", c.UsageContextID)}
	case c.WindowHours <= 0:
		return &Violation{Code: "DATA_INTEGRITY_ISSUE",
			Message: fmt.Sprintf("usage context %s window must be positive", c.UsageContextID)}
	}
	return nil
}

func checkGMCRecognition(payload any) *Violation {
	s, ok := payload.(models.RecognitionSignal)
	if !ok {
		return invalidPayload("models.RecognitionSignal", payload)
	}
	if s.AuctionID == "" || s.ParticipantID == "" {
		return &Violation{Code: "INVALID_CONTEXT", Message: "recognition needs an auction and a participant"}
	}
	switch s.Trigger {
	case models.TriggerProbabilistic:
		return nil
	case models.TriggerManual:
	default:
		return &Violation{Code: "INVALID_TRIGGER", Message: fmt.Sprintf("unknown trigger %q", s.Trigger)}
	}

	switch {
	case strings.TrimSpace(s.RecognizerID) == "":
		return &Violation{Code: "MISSING_RECOGNIZER", InvariantID: "GMC-INV-001", Message: "manual recognition needs a recognizer"}
	case s.RecognizerType == models.ActorAI || s.RecognizerType == models.ActorSystem:
		return &Violation{Code: "AI_RECOGNIZER_FORBIDDEN", InvariantID: "GMC-INV-002",
			Message: fmt.Sprintf("recognizer type %s cannot recognize", s.RecognizerType)}
	case s.RecognizerType != models.ActorHuman:
		return &Violation{Code: "NON_HUMAN_RECOGNIZER", InvariantID: "GMC-INV-002",
			Message: fmt.Sprintf("recognizer type %q is not human", s.RecognizerType)}
	case strings.TrimSpace(s.Justification) == "":
		return &Violation{Code: "MISSING_JUSTIFICATION", InvariantID: "GMC-INV-003", Message: "manual recognition needs a justification"}
	case utf8.RuneCountInString(strings.TrimSpace(s.Justification)) < minJustificationRunes:
		return &Violation{Code: "JUSTIFICATION_TOO_SHORT", InvariantID: "GMC-INV-003",
			Message: fmt.Sprintf("justification must be at least %d characters", minJustificationRunes)}
	}
	return nil
}

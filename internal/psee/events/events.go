// Package events defines the immutable PSEE event envelope and the read-only
// contract the consumer uses to pull events from an external store.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Type names an event kind produced outside the core.
type Type string

const (
	TypeShiftStarted         Type = "psee.shift.started"
	TypeShiftCompleted       Type = "psee.shift.completed"
	TypeProcessStepCompleted Type = "psee.process.step_completed"

	TypeMCIssued     Type = "mc.issued"
	TypeMCLocked     Type = "mc.locked"
	TypeMCUnlocked   Type = "mc.unlocked"
	TypeMCSpent      Type = "mc.spent"
	TypeMCBurned     Type = "mc.burned"
	TypeMCExpired    Type = "mc.expired"
	TypeMCRecognized Type = "mc.recognized"
)

// IsMC reports whether the event drives an MC unit lifecycle.
func (t Type) IsMC() bool {
	switch t {
	case TypeMCIssued, TypeMCLocked, TypeMCUnlocked, TypeMCSpent, TypeMCBurned, TypeMCExpired, TypeMCRecognized:
		return true
	}
	return false
}

// Event is the single source-of-truth record. It is never updated or deleted.
type Event struct {
	ID          string          `json:"id"`
	Seq         int64           `json:"seq"`
	Type        Type            `json:"type"`
	SubjectType string          `json:"subject_type"`
	SubjectID   string          `json:"subject_id"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
	TraceID     string          `json:"trace_id,omitempty"`
}

// Validate checks the envelope fields the projection depends on.
func (e Event) Validate() error {
	switch {
	case e.ID == "":
		return fmt.Errorf("event id is required")
	case e.Type == "":
		return fmt.Errorf("event %s: type is required", e.ID)
	case e.SubjectID == "":
		return fmt.Errorf("event %s: subject id is required", e.ID)
	case e.OccurredAt.IsZero():
		return fmt.Errorf("event %s: occurred_at is required", e.ID)
	}
	return nil
}

// DecodePayload unmarshals the payload into v.
func (e Event) DecodePayload(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("event %s: empty payload", e.ID)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("event %s: decode payload: %w", e.ID, err)
	}
	return nil
}

// MCPayload is carried by every mc.* event.
type MCPayload struct {
	UnitID    string    `json:"unit_id"`
	Amount    int64     `json:"amount,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	ActorID   string    `json:"actor_id,omitempty"`
	ActorType string    `json:"actor_type,omitempty"`
}

// ProcessPayload is carried by psee.process.step_completed.
type ProcessPayload struct {
	ProcessID string `json:"process_id"`
	Step      string `json:"step"`
}

// Cursor marks a position in the source. The zero value means "from the
// beginning". Position is opaque to everything but the source that issued it.
type Cursor struct {
	Position string `json:"position"`
}

// IsZero reports whether the cursor points at the start of the stream.
func (c Cursor) IsZero() bool { return c.Position == "" }

// Source is the read-only event store contract. Implementations return events
// after since in delivery order together with the cursor to resume from.
type Source interface {
	FetchEvents(ctx context.Context, since Cursor) ([]Event, Cursor, error)
}

// Package lifecycle is the MC unit state machine. Every state change a
// projection or engine applies goes through Transition.
package lifecycle

import (
	"fmt"

	"mgcore/internal/economy/models"
)

// Operation is an action that moves a unit between states.
type Operation string

const (
	OpLock      Operation = "LOCK"
	OpUnlock    Operation = "UNLOCK"
	OpSpend     Operation = "SPEND"
	OpBurn      Operation = "BURN"
	OpExpire    Operation = "EXPIRE"
	OpRecognize Operation = "RECOGNIZE"
)

var targets = map[Operation]models.LifecycleState{
	OpLock:      models.StateLocked,
	OpUnlock:    models.StateIssued,
	OpSpend:     models.StateSpent,
	OpBurn:      models.StateBurned,
	OpExpire:    models.StateExpired,
	OpRecognize: models.StateRecognized,
}

var edges = map[models.LifecycleState][]models.LifecycleState{
	models.StateIssued:     {models.StateLocked, models.StateSpent, models.StateExpired},
	models.StateLocked:     {models.StateIssued, models.StateSpent, models.StateBurned, models.StateExpired},
	models.StateSpent:      {models.StateRecognized},
	models.StateExpired:    nil,
	models.StateBurned:     nil,
	models.StateRecognized: nil,
}

// Error describes a rejected transition.
type Error struct {
	Code        string
	InvariantID string
	From        models.LifecycleState
	Operation   Operation
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s: %s from %s", e.InvariantID, e.Code, e.Operation, e.From)
}

// Known reports whether s is a defined lifecycle state.
func Known(s models.LifecycleState) bool {
	_, ok := edges[s]
	return ok
}

// IsTerminal reports whether no edge leaves s.
func IsTerminal(s models.LifecycleState) bool {
	next, ok := edges[s]
	return ok && len(next) == 0
}

// Allowed reports whether from -> to is an explicit edge.
func Allowed(from, to models.LifecycleState) bool {
	for _, s := range edges[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition returns the state op leads to from the given state. AI actors
// cannot drive MC transitions.
func Transition(from models.LifecycleState, op Operation, actor models.ActorType) (models.LifecycleState, error) {
	if actor == models.ActorAI {
		return from, &Error{Code: "AI_OPERATION_FORBIDDEN", InvariantID: "MC-INV-022", From: from, Operation: op}
	}
	if !Known(from) {
		return from, &Error{Code: "UNKNOWN_STATE", InvariantID: "MC-INV-012", From: from, Operation: op}
	}
	if IsTerminal(from) {
		return from, &Error{Code: "TERMINAL_STATE", InvariantID: "MC-INV-010", From: from, Operation: op}
	}
	to, ok := targets[op]
	if !ok {
		return from, &Error{Code: "INVALID_OPERATION", InvariantID: "MC-INV-012", From: from, Operation: op}
	}
	if !Allowed(from, to) {
		return from, &Error{Code: "FORBIDDEN_TRANSITION", InvariantID: "MC-INV-011", From: from, Operation: op}
	}
	return to, nil
}

// Request is the mc_transition payload checked by the canon registry.
type Request struct {
	UnitID    string                `json:"unit_id"`
	From      models.LifecycleState `json:"from"`
	Operation Operation             `json:"operation"`
	Actor     models.ActorType      `json:"actor"`
}

// Target returns the state op leads to, if op is known.
func Target(op Operation) (models.LifecycleState, bool) {
	s, ok := targets[op]
	return s, ok
}

package lifecycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mgcore/internal/economy/models"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		name     string
		from     models.LifecycleState
		op       Operation
		actor    models.ActorType
		want     models.LifecycleState
		wantCode string
	}{
		{"lock issued", models.StateIssued, OpLock, models.ActorHuman, models.StateLocked, ""},
		{"unlock locked", models.StateLocked, OpUnlock, models.ActorHuman, models.StateIssued, ""},
		{"spend issued", models.StateIssued, OpSpend, models.ActorSystem, models.StateSpent, ""},
		{"burn locked", models.StateLocked, OpBurn, models.ActorSystem, models.StateBurned, ""},
		{"expire locked", models.StateLocked, OpExpire, models.ActorSystem, models.StateExpired, ""},
		{"recognize spent", models.StateSpent, OpRecognize, models.ActorHuman, models.StateRecognized, ""},
		{"burn issued skips lock", models.StateIssued, OpBurn, models.ActorHuman, models.StateIssued, "FORBIDDEN_TRANSITION"},
		{"recognize issued", models.StateIssued, OpRecognize, models.ActorHuman, models.StateIssued, "FORBIDDEN_TRANSITION"},
		{"unlock issued", models.StateIssued, OpUnlock, models.ActorHuman, models.StateIssued, "FORBIDDEN_TRANSITION"},
		{"spend expired", models.StateExpired, OpSpend, models.ActorHuman, models.StateExpired, "TERMINAL_STATE"},
		{"anything burned", models.StateBurned, OpUnlock, models.ActorHuman, models.StateBurned, "TERMINAL_STATE"},
		{"unknown state", models.LifecycleState("FROZEN"), OpLock, models.ActorHuman, models.LifecycleState("FROZEN"), "UNKNOWN_STATE"},
		{"unknown op", models.StateIssued, Operation("TRANSFER"), models.ActorHuman, models.StateIssued, "INVALID_OPERATION"},
		{"ai actor", models.StateIssued, OpLock, models.ActorAI, models.StateIssued, "AI_OPERATION_FORBIDDEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Transition(tt.from, tt.op, tt.actor)
			assert.Equal(t, tt.want, got)
			if tt.wantCode == "" {
				require.NoError(t, err)
				return
			}
			var lerr *Error
			require.True(t, errors.As(err, &lerr))
			assert.Equal(t, tt.wantCode, lerr.Code)
		})
	}
}

func TestTerminalStates(t *testing.T) {
	for _, s := range []models.LifecycleState{models.StateExpired, models.StateBurned, models.StateRecognized} {
		assert.True(t, IsTerminal(s), s)
	}
	for _, s := range []models.LifecycleState{models.StateIssued, models.StateLocked, models.StateSpent} {
		assert.False(t, IsTerminal(s), s)
	}
	assert.False(t, IsTerminal("UNKNOWN"))
}

package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventValidate(t *testing.T) {
	valid := Event{
		ID:         "evt-1",
		Type:       TypeShiftStarted,
		SubjectID:  "user-1",
		OccurredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, valid.Validate())

	tests := map[string]func(*Event){
		"missing id":          func(e *Event) { e.ID = "" },
		"missing type":        func(e *Event) { e.Type = "" },
		"missing subject":     func(e *Event) { e.SubjectID = "" },
		"missing occurred_at": func(e *Event) { e.OccurredAt = time.Time{} },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			ev := valid
			mutate(&ev)
			assert.Error(t, ev.Validate())
		})
	}
}

func TestDecodePayload(t *testing.T) {
	ev := Event{ID: "evt-1", Payload: json.RawMessage(`{"unit_id":"u-1","amount":5}`)}

	var p MCPayload
	require.NoError(t, ev.DecodePayload(&p))
	assert.Equal(t, "u-1", p.UnitID)
	assert.Equal(t, int64(5), p.Amount)

	assert.Error(t, Event{ID: "empty"}.DecodePayload(&p))
	assert.Error(t, Event{ID: "bad", Payload: json.RawMessage(`{`)}.DecodePayload(&p))
}

func TestTypeIsMC(t *testing.T) {
	assert.True(t, TypeMCLocked.IsMC())
	assert.False(t, TypeShiftCompleted.IsMC())
	assert.True(t, Cursor{}.IsZero())
	assert.False(t, Cursor{Position: "10"}.IsZero())
}

package governance

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mgcore/internal/economy/canon"
	"mgcore/internal/economy/models"
	"mgcore/pkg/platform/audit"
	"mgcore/pkg/platform/canonical"
)

func closedAuction() models.Auction {
	placed := evaluatedAt.Add(-2 * time.Hour)
	return models.Auction{
		ID: "auc-7", OrganizerID: "org-1", Status: models.AuctionClosed, WinnerID: "user-1",
		Bids: []models.Bid{
			{ParticipantID: "user-1", Amount: 40, PlacedAt: placed},
			{ParticipantID: "user-2", Amount: 15, PlacedAt: placed},
		},
	}
}

func snapshotFor(subject string) *models.WalletSnapshot {
	return &models.WalletSnapshot{SubjectID: subject, Balance: 12, AsOf: evaluatedAt}
}

func withProbability(p float64) *Engine {
	policy := DefaultPolicy()
	policy.RecognitionProbability = p
	return New(canon.NewRegistry(), WithPolicy(policy))
}

func actionsOf(events []audit.Event) []audit.Action {
	out := make([]audit.Action, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Action)
	}
	return out
}

func TestEvaluateRecognition_Denials(t *testing.T) {
	engine := withProbability(1)

	open := closedAuction()
	open.Status = models.AuctionOpen
	open.WinnerID = ""

	tests := []struct {
		name   string
		rc     RecognitionContext
		reason RecognitionReason
	}{
		{"auction still open", RecognitionContext{Auction: open, ParticipantID: "user-1", Snapshot: snapshotFor("user-1")}, ReasonAuctionNotClosed},
		{"did not bid", RecognitionContext{Auction: closedAuction(), ParticipantID: "user-3", Snapshot: snapshotFor("user-3")}, ReasonNoParticipation},
		{"no snapshot", RecognitionContext{Auction: closedAuction(), ParticipantID: "user-2"}, ReasonMissingSnapshot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.rc.EvaluatedAt = evaluatedAt
			res, err := engine.EvaluateRecognition(tt.rc)
			require.NoError(t, err)
			assert.False(t, res.Eligible)
			assert.Equal(t, RecognitionDenied, res.Status)
			assert.Equal(t, tt.reason, res.Reason)
			assert.Equal(t, models.VerdictDeny, res.Decision.Verdict)
			assert.Equal(t, []audit.Action{audit.ActionRecognitionEvaluated, audit.ActionRecognitionDenied}, actionsOf(res.AuditEvents))
		})
	}
}

func TestEvaluateRecognition_Probabilistic(t *testing.T) {
	rc := RecognitionContext{Auction: closedAuction(), ParticipantID: "user-2", Snapshot: snapshotFor("user-2"), EvaluatedAt: evaluatedAt}

	t.Run("certain signal", func(t *testing.T) {
		res, err := withProbability(1).EvaluateRecognition(rc)
		require.NoError(t, err)
		assert.True(t, res.Eligible)
		assert.Equal(t, RecognitionEligible, res.Status)
		assert.Equal(t, models.TriggerProbabilistic, res.Evidence.Trigger)
		assert.Equal(t, int64(15), res.Evidence.Bid)
		assert.False(t, res.Evidence.Winner)
		assert.NotEmpty(t, res.Evidence.SnapshotDigest)
		assert.Equal(t, []audit.Action{audit.ActionRecognitionEvaluated, audit.ActionRecognitionFlagged}, actionsOf(res.AuditEvents))
		assert.Equal(t, "system", res.AuditEvents[0].ActorID)
	})

	t.Run("impossible signal", func(t *testing.T) {
		res, err := withProbability(0).EvaluateRecognition(rc)
		require.NoError(t, err)
		assert.False(t, res.Eligible)
		assert.Equal(t, RecognitionNotEligible, res.Status)
		assert.Equal(t, ReasonBelowThreshold, res.Reason)
		assert.Equal(t, []audit.Action{audit.ActionRecognitionEvaluated}, actionsOf(res.AuditEvents))
	})

	t.Run("roll matches the recorded evidence", func(t *testing.T) {
		roll, err := Roll("auc-7", "user-2", evaluatedAt)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, roll, 0.0)
		assert.Less(t, roll, 1.0)

		engine := withProbability(0.5)
		res, err := engine.EvaluateRecognition(rc)
		require.NoError(t, err)
		assert.Equal(t, roll, res.Evidence.Roll)
		assert.Equal(t, roll < 0.5, res.Eligible)
	})

	t.Run("byte identical on repeat", func(t *testing.T) {
		engine := withProbability(0.5)
		r1, err := engine.EvaluateRecognition(rc)
		require.NoError(t, err)
		r2, err := engine.EvaluateRecognition(rc)
		require.NoError(t, err)

		b1, err := canonical.Marshal(r1)
		require.NoError(t, err)
		b2, err := canonical.Marshal(r2)
		require.NoError(t, err)
		assert.Equal(t, string(b1), string(b2))
	})

	t.Run("different evaluation time draws again", func(t *testing.T) {
		a, err := Roll("auc-7", "user-2", evaluatedAt)
		require.NoError(t, err)
		b, err := Roll("auc-7", "user-2", evaluatedAt.Add(time.Nanosecond))
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})
}

func TestEvaluateRecognition_Manual(t *testing.T) {
	engine := withProbability(0)
	base := RecognitionContext{Auction: closedAuction(), ParticipantID: "user-1", Snapshot: snapshotFor("user-1"), EvaluatedAt: evaluatedAt}

	t.Run("human with justification", func(t *testing.T) {
		rc := base
		rc.Manual = &ManualSignal{
			RecognizerID:   "mgr-1",
			RecognizerType: models.ActorHuman,
			Justification:  strings.Repeat("Led the night shift through the line outage. ", 2),
		}
		res, err := engine.EvaluateRecognition(rc)
		require.NoError(t, err)
		assert.True(t, res.Eligible)
		assert.True(t, res.Evidence.Winner)
		assert.Equal(t, models.TriggerManual, res.Evidence.Trigger)
		assert.Equal(t, "mgr-1", res.AuditEvents[0].ActorID)
	})

	t.Run("ai recognizer is a canon violation", func(t *testing.T) {
		rc := base
		rc.Manual = &ManualSignal{RecognizerID: "bot-1", RecognizerType: models.ActorAI, Justification: strings.Repeat("x", 60)}
		res, err := engine.EvaluateRecognition(rc)
		require.ErrorIs(t, err, canon.ErrCanonViolation)
		assert.Empty(t, res.AuditEvents)
	})
}

func TestEvaluateRecognition_InvalidAuction(t *testing.T) {
	broken := closedAuction()
	broken.WinnerID = "user-9"
	_, err := withProbability(1).EvaluateRecognition(RecognitionContext{
		Auction: broken, ParticipantID: "user-1", Snapshot: snapshotFor("user-1"), EvaluatedAt: evaluatedAt,
	})
	assert.ErrorIs(t, err, canon.ErrCanonViolation)
}

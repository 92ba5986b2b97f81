package consumer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "mgcore/pkg/platform/audit"
	"mgcore/pkg/platform/audit/store/memory"
	"mgcore/pkg/platform/audit/worker"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func event(t *testing.T, action audit.Action) audit.Event {
	t.Helper()
	ev, err := audit.NewEvent(action, "system", "user-1", time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), map[string]any{"verdict": "ALLOW"})
	require.NoError(t, err)
	return ev
}

func TestRouterDispatchesByCategory(t *testing.T) {
	var got []audit.EventCategory
	record := worker.HandlerFunc(func(_ context.Context, ev audit.Event) error {
		got = append(got, ev.Category)
		return nil
	})
	var fellBack int
	fallback := worker.HandlerFunc(func(context.Context, audit.Event) error {
		fellBack++
		return nil
	})

	r := NewRouter(discard, fallback)
	r.Register(audit.CategoryCompliance, record)
	r.Register(audit.CategoryGovernance, record)

	ctx := context.Background()
	require.NoError(t, r.Handle(ctx, event(t, audit.ActionEligibilityEvaluated)))
	require.NoError(t, r.Handle(ctx, event(t, audit.ActionGovernanceFlagged)))
	require.NoError(t, r.Handle(ctx, event(t, "ops_heartbeat")))

	assert.Equal(t, []audit.EventCategory{audit.CategoryCompliance, audit.CategoryGovernance}, got)
	assert.Equal(t, 1, fellBack)
}

func TestRouterWithoutFallbackSkips(t *testing.T) {
	assert.NoError(t, NewRouter(discard, nil).Handle(context.Background(), event(t, "ops_heartbeat")))
}

func TestComplianceHandlerMirrorsIdempotently(t *testing.T) {
	mirror := memory.NewInMemoryStore()
	h := NewComplianceHandler(mirror, discard)
	ev := event(t, audit.ActionAuctionClosed)

	require.NoError(t, h.Handle(context.Background(), ev))
	require.NoError(t, h.Handle(context.Background(), ev))
	assert.Equal(t, 1, mirror.Len())

	require.NoError(t, h.Handle(context.Background(), audit.Event{Action: audit.ActionAuctionClosed}))
	assert.Equal(t, 1, mirror.Len(), "malformed events are dropped")
}

type failingStore struct{}

func (failingStore) SaveAuditEvent(context.Context, audit.Event) error {
	return errors.New("replica down")
}

func TestComplianceHandlerSurfacesStoreErrors(t *testing.T) {
	err := NewComplianceHandler(failingStore{}, discard).Handle(context.Background(), event(t, audit.ActionAuctionOpened))
	assert.ErrorContains(t, err, "mirror compliance event")
}

func TestGovernanceHandlerNeverFails(t *testing.T) {
	h := NewGovernanceHandler(discard, nil)
	for _, action := range []audit.Action{audit.ActionGovernanceViolation, audit.ActionRecognitionFlagged, audit.ActionGovernanceEvaluated} {
		assert.NoError(t, h.Handle(context.Background(), event(t, action)))
	}
}

package compliance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "mgcore/pkg/platform/audit"
	"mgcore/pkg/platform/audit/store/memory"
)

type failingStore struct{ err error }

func (f failingStore) SaveAuditEvent(context.Context, audit.Event) error { return f.err }

func validEvent(t *testing.T) audit.Event {
	t.Helper()
	ev, err := audit.NewEvent(audit.ActionAuctionClosed, "manager-1", "auction-9", time.Unix(1700000000, 0), nil)
	require.NoError(t, err)
	return ev
}

func TestPublisher_PersistsValidEvents(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := New(store)

	require.NoError(t, pub.SaveAuditEvent(context.Background(), validEvent(t)))
	assert.Equal(t, 1, store.Len())
}

func TestPublisher_RejectsIncompleteEvents(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := New(store)

	ev := validEvent(t)
	ev.ActorID = ""

	err := pub.SaveAuditEvent(context.Background(), ev)
	assert.ErrorIs(t, err, audit.ErrMissingActor)
	assert.Equal(t, 0, store.Len())
}

func TestPublisher_FailsClosed(t *testing.T) {
	storeErr := errors.New("database unavailable")
	pub := New(failingStore{err: storeErr})

	err := pub.SaveAuditEvent(context.Background(), validEvent(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr)
	assert.Contains(t, err.Error(), "compliance audit persistence failed")
}

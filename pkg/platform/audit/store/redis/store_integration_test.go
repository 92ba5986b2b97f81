//go:build integration

package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	audit "mgcore/pkg/platform/audit"
	"mgcore/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *Store
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = New(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) event(subject string, at time.Time) audit.Event {
	ev, err := audit.NewEvent(audit.ActionGovernanceEvaluated, "system", subject, at, map[string]any{"status": "ALLOWED"})
	s.Require().NoError(err)
	return ev
}

func (s *RedisStoreSuite) TestSaveIsIdempotent() {
	ctx := context.Background()
	ev := s.event("subject-1", time.Unix(10, 0))

	s.Require().NoError(s.store.SaveAuditEvent(ctx, ev))
	s.Require().NoError(s.store.SaveAuditEvent(ctx, ev))

	events, err := s.store.ListBySubject(ctx, "subject-1")
	s.Require().NoError(err)
	s.Len(events, 1)
	s.Equal(ev.ID, events[0].ID)
	s.Equal("ALLOWED", events[0].Details["status"])
}

func (s *RedisStoreSuite) TestListRecentOrdersNewestFirst() {
	ctx := context.Background()
	for i := range 3 {
		s.Require().NoError(s.store.SaveAuditEvent(ctx, s.event("subject-2", time.Unix(int64(100+i), 0))))
	}

	events, err := s.store.ListRecent(ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.True(events[0].Timestamp.After(events[1].Timestamp))
}

func (s *RedisStoreSuite) TestWithinTxWritesNothingOnFailure() {
	ctx := context.Background()
	err := s.store.WithinTx(ctx, func(ctx context.Context) error {
		s.Require().NoError(s.store.SaveAuditEvent(ctx, s.event("subject-3", time.Unix(1, 0))))
		return errors.New("second save failed")
	})
	s.Require().Error(err)

	events, err := s.store.ListBySubject(ctx, "subject-3")
	s.Require().NoError(err)
	s.Empty(events)
}

func (s *RedisStoreSuite) TestWithinTxWritesTheWholeTrail() {
	ctx := context.Background()
	trail := []audit.Event{s.event("subject-4", time.Unix(1, 0)), s.event("subject-4", time.Unix(2, 0))}
	s.Require().NoError(s.store.WithinTx(ctx, func(ctx context.Context) error {
		for _, ev := range trail {
			if err := s.store.SaveAuditEvent(ctx, ev); err != nil {
				return err
			}
		}
		return nil
	}))

	events, err := s.store.ListBySubject(ctx, "subject-4")
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(trail[0].ID, events[0].ID)
	s.Equal(trail[1].ID, events[1].ID)
}

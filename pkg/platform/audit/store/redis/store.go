// Package redis stores audit events in Redis. Each event body lives under its
// own key written with SETNX, so a replayed ID never overwrites the original;
// sorted sets index events per subject and globally by timestamp.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	audit "mgcore/pkg/platform/audit"
)

const defaultPrefix = "mgcore:audit"

// Store implements audit.Store and audit.Reader. WithinTx makes it usable as
// the adapter's transactor.
type Store struct {
	client redis.UniversalClient
	prefix string
}

type Option func(*Store)

// WithPrefix overrides the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{client: client, prefix: defaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) eventKey(id string) string        { return s.prefix + ":event:" + id }
func (s *Store) subjectKey(subject string) string { return s.prefix + ":subject:" + subject }
func (s *Store) recentKey() string                { return s.prefix + ":recent" }

type stageKey struct{}

type stage struct {
	events []audit.Event
}

// SaveAuditEvent writes event in one MULTI/EXEC, or stages it when ctx
// belongs to WithinTx.
func (s *Store) SaveAuditEvent(ctx context.Context, event audit.Event) error {
	if st, ok := ctx.Value(stageKey{}).(*stage); ok {
		st.events = append(st.events, event)
		return nil
	}
	return s.save(ctx, []audit.Event{event})
}

// WithinTx stages every save fn makes and writes them together in a single
// MULTI/EXEC once fn returns nil. A failing fn writes nothing.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(stageKey{}).(*stage); ok {
		return fn(ctx)
	}
	st := &stage{}
	if err := fn(context.WithValue(ctx, stageKey{}, st)); err != nil {
		return err
	}
	if len(st.events) == 0 {
		return nil
	}
	return s.save(ctx, st.events)
}

func (s *Store) save(ctx context.Context, batch []audit.Event) error {
	payloads := make([][]byte, len(batch))
	for i, event := range batch {
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal audit event %s: %w", event.ID, err)
		}
		payloads[i] = payload
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, event := range batch {
			id := event.ID.String()
			score := float64(event.Timestamp.UnixNano())
			pipe.SetNX(ctx, s.eventKey(id), payloads[i], 0)
			pipe.ZAdd(ctx, s.subjectKey(event.SubjectID), redis.Z{Score: score, Member: id})
			pipe.ZAdd(ctx, s.recentKey(), redis.Z{Score: score, Member: id})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save audit events: %w", err)
	}
	return nil
}

func (s *Store) ListBySubject(ctx context.Context, subjectID string) ([]audit.Event, error) {
	ids, err := s.client.ZRange(ctx, s.subjectKey(subjectID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list subject index: %w", err)
	}
	return s.load(ctx, ids)
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	if limit <= 0 {
		return nil, nil
	}
	ids, err := s.client.ZRevRange(ctx, s.recentKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list recent index: %w", err)
	}
	return s.load(ctx, ids)
}

func (s *Store) load(ctx context.Context, ids []string) ([]audit.Event, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.eventKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load audit events: %w", err)
	}
	events := make([]audit.Event, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var ev audit.Event
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			return nil, fmt.Errorf("decode audit event %s: %w", ids[i], err)
		}
		events = append(events, ev)
	}
	return events, nil
}

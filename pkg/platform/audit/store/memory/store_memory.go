package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	audit "mgcore/pkg/platform/audit"
)

// InMemoryStore keeps audit events in insertion order. Writes are idempotent by ID.
type InMemoryStore struct {
	mu        sync.RWMutex
	byID      map[uuid.UUID]struct{}
	ordered   []audit.Event
	bySubject map[string][]int
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byID:      make(map[uuid.UUID]struct{}),
		bySubject: make(map[string][]int),
	}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = make(map[uuid.UUID]struct{})
	s.ordered = nil
	s.bySubject = make(map[string][]int)
}

type stageKey struct{}

type stage struct {
	events []audit.Event
}

// SaveAuditEvent stores event, or stages it when ctx belongs to WithinTx.
func (s *InMemoryStore) SaveAuditEvent(ctx context.Context, event audit.Event) error {
	if st, ok := ctx.Value(stageKey{}).(*stage); ok {
		st.events = append(st.events, event)
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insert(event)
	return nil
}

// WithinTx stages every save fn makes and applies them under one lock only
// when fn returns nil. Readers never observe part of a staged trail.
func (s *InMemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(stageKey{}).(*stage); ok {
		return fn(ctx)
	}
	st := &stage{}
	if err := fn(context.WithValue(ctx, stageKey{}, st)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, event := range st.events {
		s.insert(event)
	}
	return nil
}

// insert requires s.mu held for writing.
func (s *InMemoryStore) insert(event audit.Event) {
	if _, ok := s.byID[event.ID]; ok {
		return
	}
	s.byID[event.ID] = struct{}{}
	s.ordered = append(s.ordered, event)
	s.bySubject[event.SubjectID] = append(s.bySubject[event.SubjectID], len(s.ordered)-1)
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subjectID string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.bySubject[subjectID]
	out := make([]audit.Event, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.ordered[i])
	}
	return out, nil
}

// ListRecent returns up to limit events, most recent first.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.ordered) {
		limit = len(s.ordered)
	}
	out := make([]audit.Event, 0, limit)
	for i := len(s.ordered) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.ordered[i])
	}
	return out, nil
}

// Len returns the number of distinct events stored.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ordered)
}

// Package readmodel projects PSEE events into per-subject records. It has a
// single writer (the consumer) and any number of readers, which always
// receive copies.
package readmodel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"mgcore/internal/economy/canon"
	"mgcore/internal/economy/lifecycle"
	"mgcore/internal/economy/models"
	"mgcore/internal/psee/events"
)

// Skip reasons reported in ProcessStats.
const (
	SkipInvalidEnvelope     = "invalid_envelope"
	SkipInvalidPayload      = "invalid_payload"
	SkipUnknownType         = "unknown_type"
	SkipUnknownUnit         = "unknown_unit"
	SkipDuplicateUnit       = "duplicate_unit"
	SkipForbiddenTransition = "forbidden_transition"
)

var operations = map[events.Type]lifecycle.Operation{
	events.TypeMCLocked:     lifecycle.OpLock,
	events.TypeMCUnlocked:   lifecycle.OpUnlock,
	events.TypeMCSpent:      lifecycle.OpSpend,
	events.TypeMCBurned:     lifecycle.OpBurn,
	events.TypeMCExpired:    lifecycle.OpExpire,
	events.TypeMCRecognized: lifecycle.OpRecognize,
}

// Record is the projection for one subject.
type Record struct {
	SubjectID       string                   `json:"subject_id"`
	SubjectType     string                   `json:"subject_type,omitempty"`
	Balance         int64                    `json:"balance"`
	Locked          int64                    `json:"locked"`
	Units           map[string]models.MCUnit `json:"units,omitempty"`
	EventCounts     map[events.Type]int      `json:"event_counts"`
	ShiftsStarted   int                      `json:"shifts_started"`
	ShiftsCompleted int                      `json:"shifts_completed"`
	ProcessSteps    map[string]int           `json:"process_steps,omitempty"`
	LastEventID     string                   `json:"last_event_id"`
	LastEventAt     time.Time                `json:"last_event_at"`
	Applied         int                      `json:"applied"`
}

func (r *Record) clone() Record {
	out := *r
	out.Units = maps.Clone(r.Units)
	out.EventCounts = maps.Clone(r.EventCounts)
	out.ProcessSteps = maps.Clone(r.ProcessSteps)
	return out
}

// ProcessStats summarises one ProcessEvents call.
type ProcessStats struct {
	Applied     int            `json:"applied"`
	Duplicates  int            `json:"duplicates"`
	Skipped     int            `json:"skipped"`
	SkipReasons map[string]int `json:"skip_reasons,omitempty"`
}

func (s *ProcessStats) skip(reason string) {
	s.Skipped++
	if s.SkipReasons == nil {
		s.SkipReasons = make(map[string]int)
	}
	s.SkipReasons[reason]++
}

// Add folds other into s.
func (s *ProcessStats) Add(other ProcessStats) {
	s.Applied += other.Applied
	s.Duplicates += other.Duplicates
	s.Skipped += other.Skipped
	for k, v := range other.SkipReasons {
		if s.SkipReasons == nil {
			s.SkipReasons = make(map[string]int)
		}
		s.SkipReasons[k] += v
	}
}

type ReadModel struct {
	mu       sync.RWMutex
	registry *canon.Registry
	records  map[string]*Record
	seen     map[string]struct{}
	logger   *slog.Logger
}

type Option func(*ReadModel)

func WithLogger(logger *slog.Logger) Option {
	return func(m *ReadModel) { m.logger = logger }
}

// New creates an empty read model. MC transitions are validated through registry.
func New(registry *canon.Registry, opts ...Option) *ReadModel {
	m := &ReadModel{
		registry: registry,
		records:  make(map[string]*Record),
		seen:     make(map[string]struct{}),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ProcessEvents applies batch in order. Events already seen by id are
// counted as duplicates; events that fail validation are skipped.
func (m *ReadModel) ProcessEvents(batch []events.Event) ProcessStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stats ProcessStats
	for _, ev := range batch {
		if ev.ID != "" {
			if _, dup := m.seen[ev.ID]; dup {
				stats.Duplicates++
				continue
			}
		}
		if reason, err := m.apply(ev); err != nil {
			stats.skip(reason)
			m.logger.Debug("psee event skipped",
				"event_id", ev.ID,
				"type", ev.Type,
				"subject_id", ev.SubjectID,
				"reason", reason,
				"error", err,
			)
		} else {
			stats.Applied++
		}
		if ev.ID != "" {
			m.seen[ev.ID] = struct{}{}
		}
	}
	return stats
}

func (m *ReadModel) apply(ev events.Event) (string, error) {
	if err := ev.Validate(); err != nil {
		return SkipInvalidEnvelope, err
	}

	rec := m.records[ev.SubjectID]
	if rec == nil {
		rec = &Record{
			SubjectID:   ev.SubjectID,
			SubjectType: ev.SubjectType,
			EventCounts: make(map[events.Type]int),
		}
	}
	// Mutations are staged on a copy so a rejected event leaves no trace.
	next := rec.clone()

	switch {
	case ev.Type == events.TypeShiftStarted:
		next.ShiftsStarted++
	case ev.Type == events.TypeShiftCompleted:
		next.ShiftsCompleted++
	case ev.Type == events.TypeProcessStepCompleted:
		var p events.ProcessPayload
		if err := ev.DecodePayload(&p); err != nil {
			return SkipInvalidPayload, err
		}
		if p.ProcessID == "" {
			return SkipInvalidPayload, fmt.Errorf("event %s: process id is required", ev.ID)
		}
		if next.ProcessSteps == nil {
			next.ProcessSteps = make(map[string]int)
		}
		next.ProcessSteps[p.ProcessID]++
	case ev.Type == events.TypeMCIssued:
		if reason, err := m.issue(&next, ev); err != nil {
			return reason, err
		}
	case ev.Type.IsMC():
		if reason, err := m.transition(&next, ev); err != nil {
			return reason, err
		}
	default:
		return SkipUnknownType, fmt.Errorf("event %s: unknown type %q", ev.ID, ev.Type)
	}

	next.EventCounts[ev.Type]++
	next.LastEventID = ev.ID
	next.LastEventAt = ev.OccurredAt.UTC()
	next.Applied++
	next.recompute()
	m.records[ev.SubjectID] = &next
	return "", nil
}

func (m *ReadModel) issue(rec *Record, ev events.Event) (string, error) {
	var p events.MCPayload
	if err := ev.DecodePayload(&p); err != nil {
		return SkipInvalidPayload, err
	}
	if _, exists := rec.Units[p.UnitID]; exists {
		return SkipDuplicateUnit, fmt.Errorf("event %s: unit %s already issued", ev.ID, p.UnitID)
	}
	unit := models.MCUnit{
		ID:        p.UnitID,
		OwnerID:   ev.SubjectID,
		Amount:    p.Amount,
		State:     models.StateIssued,
		IssuedAt:  ev.OccurredAt.UTC(),
		ExpiresAt: p.ExpiresAt.UTC(),
	}
	probe := models.WalletSnapshot{
		SubjectID: ev.SubjectID,
		Balance:   unit.Amount,
		Units:     []models.MCUnit{unit},
		AsOf:      unit.IssuedAt,
	}
	if _, err := m.registry.CheckCanon(canon.KindMCSnapshot, probe); err != nil {
		return SkipInvalidPayload, err
	}
	if rec.Units == nil {
		rec.Units = make(map[string]models.MCUnit)
	}
	rec.Units[unit.ID] = unit
	return "", nil
}

func (m *ReadModel) transition(rec *Record, ev events.Event) (string, error) {
	var p events.MCPayload
	if err := ev.DecodePayload(&p); err != nil {
		return SkipInvalidPayload, err
	}
	unit, ok := rec.Units[p.UnitID]
	if !ok {
		return SkipUnknownUnit, fmt.Errorf("event %s: unit %q not issued to %s", ev.ID, p.UnitID, ev.SubjectID)
	}
	actor := models.ActorType(p.ActorType)
	if actor == "" {
		actor = models.ActorSystem
	}
	op := operations[ev.Type]
	req := lifecycle.Request{UnitID: unit.ID, From: unit.State, Operation: op, Actor: actor}
	if _, err := m.registry.CheckCanon(canon.KindMCTransition, req); err != nil {
		return SkipForbiddenTransition, err
	}
	to, _ := lifecycle.Target(op)
	unit.State = to
	rec.Units[unit.ID] = unit
	return "", nil
}

func (r *Record) recompute() {
	r.Balance, r.Locked = 0, 0
	for _, u := range r.Units {
		switch u.State {
		case models.StateIssued:
			r.Balance += u.Amount
		case models.StateLocked:
			r.Locked += u.Amount
		}
	}
}

// Record returns a copy of the subject's projection.
func (m *ReadModel) Record(subjectID string) (Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[subjectID]
	if !ok {
		return Record{}, false
	}
	return rec.clone(), true
}

// Snapshot builds a wallet snapshot for subjectID stamped with asOf. Units are
// ordered by id.
func (m *ReadModel) Snapshot(subjectID string, asOf time.Time) (models.WalletSnapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[subjectID]
	if !ok {
		return models.WalletSnapshot{}, false
	}
	snap := models.WalletSnapshot{
		SubjectID: subjectID,
		Balance:   rec.Balance,
		Locked:    rec.Locked,
		AsOf:      asOf.UTC(),
	}
	for _, id := range slices.Sorted(maps.Keys(rec.Units)) {
		snap.Units = append(snap.Units, rec.Units[id])
	}
	return snap, true
}

// Subjects lists projected subject ids in order.
func (m *ReadModel) Subjects() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.records))
}

// Reset drops every record and the seen-id set.
func (m *ReadModel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]*Record)
	m.seen = make(map[string]struct{})
}

// DefaultFetchTimeout bounds each fetch of a Rebuild.
const DefaultFetchTimeout = 3 * time.Second

type rebuildConfig struct {
	fetchTimeout time.Duration
}

type RebuildOption func(*rebuildConfig)

// WithFetchTimeout overrides DefaultFetchTimeout. Non-positive values are ignored.
func WithFetchTimeout(d time.Duration) RebuildOption {
	return func(c *rebuildConfig) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// Rebuild resets model and replays source from the zero cursor until a fetch
// returns no events or times out without any. It returns the cursor to resume
// polling from.
func Rebuild(ctx context.Context, source events.Source, model *ReadModel, opts ...RebuildOption) (ProcessStats, events.Cursor, error) {
	cfg := rebuildConfig{fetchTimeout: DefaultFetchTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	model.Reset()

	var (
		total  ProcessStats
		cursor events.Cursor
	)
	for {
		if err := ctx.Err(); err != nil {
			return total, cursor, err
		}
		fetchCtx, cancel := context.WithTimeout(ctx, cfg.fetchTimeout)
		batch, next, err := source.FetchEvents(fetchCtx, cursor)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				model.logger.DebugContext(ctx, "rebuild fetch timed out, treating source as caught up",
					"cursor", cursor.Position,
				)
				return total, cursor, nil
			}
			return total, cursor, fmt.Errorf("rebuild read model: fetch after %q: %w", cursor.Position, err)
		}
		if len(batch) == 0 {
			return total, next, nil
		}
		total.Add(model.ProcessEvents(batch))
		if next == cursor {
			return total, next, nil
		}
		cursor = next
	}
}

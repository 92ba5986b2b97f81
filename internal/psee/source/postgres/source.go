// Package postgres reads PSEE events from the psee_events table in seq order.
// The cursor position is the last seq delivered.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strconv"

	"github.com/lib/pq"

	"mgcore/internal/psee/events"
	"mgcore/pkg/platform/sentinel"
)

//go:embed schema.sql
var Schema string

const DefaultBatchSize = 500

type Source struct {
	db        *sql.DB
	batchSize int
	types     []string
}

type Option func(*Source)

// WithBatchSize caps the rows returned per fetch. Non-positive values are ignored.
func WithBatchSize(n int) Option {
	return func(s *Source) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithTypes restricts fetches to the given event types.
func WithTypes(types ...events.Type) Option {
	return func(s *Source) {
		s.types = s.types[:0]
		for _, t := range types {
			s.types = append(s.types, string(t))
		}
	}
}

func New(db *sql.DB, opts ...Option) *Source {
	s := &Source{db: db, batchSize: DefaultBatchSize}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const selectEvents = `SELECT seq, id, type, subject_type, subject_id, payload, occurred_at, trace_id FROM psee_events WHERE seq > $1`

// FetchEvents returns up to the batch size of events after since.
func (s *Source) FetchEvents(ctx context.Context, since events.Cursor) ([]events.Event, events.Cursor, error) {
	after, err := parseCursor(since)
	if err != nil {
		return nil, since, err
	}

	query := selectEvents
	args := []any{after, s.batchSize}
	if len(s.types) > 0 {
		query += ` AND type = ANY($3)`
		args = append(args, pq.Array(s.types))
	}
	query += ` ORDER BY seq ASC LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, since, fmt.Errorf("query psee events: %w", err)
	}
	defer rows.Close()

	var batch []events.Event
	for rows.Next() {
		var (
			ev      events.Event
			typ     string
			payload []byte
		)
		if err := rows.Scan(&ev.Seq, &ev.ID, &typ, &ev.SubjectType, &ev.SubjectID, &payload, &ev.OccurredAt, &ev.TraceID); err != nil {
			return nil, since, fmt.Errorf("scan psee event: %w", err)
		}
		ev.Type = events.Type(typ)
		ev.Payload = payload
		ev.OccurredAt = ev.OccurredAt.UTC()
		batch = append(batch, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, since, fmt.Errorf("iterate psee events: %w", err)
	}

	if len(batch) == 0 {
		return nil, since, nil
	}
	last := batch[len(batch)-1].Seq
	return batch, events.Cursor{Position: strconv.FormatInt(last, 10)}, nil
}

func parseCursor(c events.Cursor) (int64, error) {
	if c.IsZero() {
		return 0, nil
	}
	seq, err := strconv.ParseInt(c.Position, 10, 64)
	if err != nil || seq < 0 {
		return 0, fmt.Errorf("invalid postgres cursor %q: %w", c.Position, sentinel.ErrInvalidState)
	}
	return seq, nil
}

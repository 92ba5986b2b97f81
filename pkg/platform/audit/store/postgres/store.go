package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	audit "mgcore/pkg/platform/audit"
	txcontext "mgcore/pkg/platform/tx"
)

// Schema creates the audit table. Applied by migrations and integration tests.
//
//go:embed schema.sql
var Schema string

// Store implements audit.Store on PostgreSQL. Inserts are idempotent by event
// ID so a retried adapter call never duplicates a record.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const insertEvent = `
		INSERT INTO economy_audit_events (id, category, timestamp, action, actor_id, subject_id, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`

// SaveAuditEvent inserts the event. A duplicate ID is a no-op.
func (s *Store) SaveAuditEvent(ctx context.Context, event audit.Event) error {
	details, err := json.Marshal(event.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}
	_, err = s.execer(ctx).ExecContext(ctx, insertEvent,
		event.ID,
		string(event.Category),
		event.Timestamp,
		string(event.Action),
		event.ActorID,
		event.SubjectID,
		details,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

const selectColumns = `SELECT id, category, timestamp, action, actor_id, subject_id, details FROM economy_audit_events`

// ListBySubject returns events for a subject in commit order.
func (s *Store) ListBySubject(ctx context.Context, subjectID string) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` WHERE subject_id = $1 ORDER BY timestamp ASC, id ASC`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListRecent returns the N most recent events.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY timestamp DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var (
			event    audit.Event
			eventID  uuid.UUID
			category string
			action   string
			details  []byte
		)
		if err := rows.Scan(&eventID, &category, &event.Timestamp, &action, &event.ActorID, &event.SubjectID, &details); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.ID = eventID
		event.Category = audit.EventCategory(category)
		event.Action = audit.Action(action)
		if len(details) > 0 && string(details) != "null" {
			if err := json.Unmarshal(details, &event.Details); err != nil {
				return nil, fmt.Errorf("decode audit details: %w", err)
			}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

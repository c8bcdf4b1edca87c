package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jensholdgaard/claim-market/internal/clock"
	"github.com/jensholdgaard/claim-market/internal/event"
)

// EventStore implements event.Store using database/sql.
type EventStore struct {
	db    *sql.DB
	clock clock.Clock
}

// NewEventStore returns a new EventStore. Events without a timestamp are
// stamped with clk.
func NewEventStore(db *sql.DB, clk clock.Clock) *EventStore {
	return &EventStore{db: db, clock: clk}
}

func (s *EventStore) Append(ctx context.Context, events ...event.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO events (aggregate_id, type, data, created_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		at := e.CreatedAt
		if at.IsZero() {
			at = s.clock.Now()
		}
		data := string(e.Data)
		if data == "" {
			data = "null"
		}
		if _, err := stmt.ExecContext(ctx, e.AggregateID, string(e.Type), data, formatTime(at)); err != nil {
			return fmt.Errorf("inserting event (aggregate=%s, type=%s): %w", e.AggregateID, e.Type, err)
		}
	}

	return tx.Commit()
}

func (s *EventStore) Load(ctx context.Context, aggregateID string) ([]event.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, aggregate_id, type, data, created_at
		 FROM events WHERE aggregate_id = ? ORDER BY id ASC`, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("loading events: %w", err)
	}
	return scanEvents(rows)
}

func (s *EventStore) LoadByType(ctx context.Context, eventType event.Type) ([]event.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, aggregate_id, type, data, created_at
		 FROM events WHERE type = ? ORDER BY id ASC`, string(eventType))
	if err != nil {
		return nil, fmt.Errorf("loading events by type: %w", err)
	}
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]event.Event, error) {
	defer rows.Close()

	var events []event.Event
	for rows.Next() {
		var (
			e         event.Event
			typ, data string
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.AggregateID, &typ, &data, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}
		e.Type = event.Type(typ)
		e.Data = json.RawMessage(data)
		t, err := parseTime(createdAt)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", e.ID, err)
		}
		e.CreatedAt = t
		events = append(events, e)
	}
	return events, rows.Err()
}

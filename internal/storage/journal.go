// Package storage provides the append-only order-event journal.
// The journal is an audit trail: nothing is read back at startup, so
// broker state stays in-memory for the process lifetime.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/glebarez/go-sqlite"
)

// Event names recorded in the journal.
const (
	EventSubmitted = "SUBMITTED"
	EventFill      = "FILL"
	EventClosed    = "CLOSED"
	EventCanceled  = "CANCELED"
)

// OrderEvent is one journal row.
type OrderEvent struct {
	OrderID string
	Symbol  string
	Event   string
	TsUnixM int64
	Payload any // marshalled to JSON; may be nil
}

// Journal handles persistent storage of order events in SQLite.
type Journal struct {
	db *sql.DB
}

// NewJournal creates a new SQLite journal with WAL mode enabled.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=-2000;", // 2MB cache
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS order_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			event TEXT NOT NULL,
			ts INTEGER NOT NULL,
			payload BLOB
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create order_events table: %w", err)
	}

	return &Journal{db: db}, nil
}

// Append stores one event.
func (j *Journal) Append(ctx context.Context, ev OrderEvent) error {
	var payload []byte
	if ev.Payload != nil {
		raw, err := json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		payload = raw
	}

	_, err := j.db.ExecContext(ctx,
		"INSERT INTO order_events (order_id, symbol, event, ts, payload) VALUES (?, ?, ?, ?, ?)",
		ev.OrderID, ev.Symbol, ev.Event, ev.TsUnixM, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order event: %w", err)
	}
	return nil
}

// EventsFor returns the recorded event names for one order, oldest first.
func (j *Journal) EventsFor(ctx context.Context, orderID string) ([]string, error) {
	rows, err := j.db.QueryContext(ctx,
		"SELECT event FROM order_events WHERE order_id = ? ORDER BY id", orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []string
	for rows.Next() {
		var ev string
		if err := rows.Scan(&ev); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Count returns the total number of journaled events.
func (j *Journal) Count(ctx context.Context) (int, error) {
	var n int
	err := j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM order_events").Scan(&n)
	return n, err
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Package eventlog provides the append-only per-session event sink used for
// observability. Logging is best-effort: a failed write must never fail a
// turn, so callers ignore the returned error after reporting it.
package eventlog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS session_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	data TEXT DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_session_events_session ON session_events(session_id);
`

// Entry is a single logged event.
type Entry struct {
	ID        int64          `json:"id"`
	SessionID string         `json:"session_id"`
	EventType string         `json:"event_type"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Service is the SQLite-backed event log. An optional Publisher fans events
// out to a Kafka topic.
type Service struct {
	db        *sql.DB
	publisher *Publisher
}

// NewService opens (and migrates) the event log database.
func NewService(dbPath string) (*Service, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open event log db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply event log schema: %w", err)
	}
	return &Service{db: db}, nil
}

// SetPublisher attaches a Kafka publisher. May be nil.
func (s *Service) SetPublisher(p *Publisher) {
	s.publisher = p
}

// Log appends an event for a session. The Kafka fan-out, when configured,
// is fire-and-forget.
func (s *Service) Log(sessionID, eventType string, data map[string]any) error {
	payload := ""
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal event data: %w", err)
		}
		payload = string(b)
	}

	_, err := s.db.Exec(
		`INSERT INTO session_events (session_id, event_type, data) VALUES (?, ?, ?)`,
		sessionID, eventType, payload,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	if s.publisher != nil {
		go func() {
			if err := s.publisher.Publish(sessionID, eventType, []byte(payload)); err != nil {
				slog.Warn("Event fan-out failed", "session_id", sessionID, "event_type", eventType, "error", err)
			}
		}()
	}
	return nil
}

// Events returns all events for a session in insertion order.
func (s *Service) Events(sessionID string) ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, event_type, data, created_at FROM session_events WHERE session_id = ? ORDER BY id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var data string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.EventType, &data, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if data != "" {
			if err := json.Unmarshal([]byte(data), &e.Data); err != nil {
				e.Data = map[string]any{"raw": data}
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Clear removes all events for a session. Used when a session id is created
// or reset, so stale rows under a reused id never leak into a new session.
func (s *Service) Clear(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM session_events WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("clear events: %w", err)
	}
	return nil
}

// Close closes the database and the publisher if one is attached.
func (s *Service) Close() error {
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			slog.Warn("Event publisher close failed", "error", err)
		}
	}
	return s.db.Close()
}

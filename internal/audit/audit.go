// Package audit keeps a local log of editing events in a sqlite database.
// The trail is best-effort: failures are logged and swallowed so editing
// never depends on it, and an empty database path disables it entirely.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// Event types written by the session.
const (
	EventRecordLoad   = "record_load"
	EventRecordSave   = "record_save"
	EventRecordCreate = "record_create"
	EventRecordDelete = "record_delete"
)

const schema = `
CREATE TABLE IF NOT EXISTS edit_events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	event      TEXT NOT NULL,
	path       TEXT NOT NULL,
	alt        TEXT NOT NULL,
	detail     TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_edit_events_session ON edit_events(session_id);
`

// Event is one audit row.
type Event struct {
	SessionID string
	Type      string
	Path      string
	Alt       string
	Detail    string
	CreatedAt int64
}

type Logger interface {
	Record(ctx context.Context, ev Event)
	Events(ctx context.Context, sessionID string) ([]Event, error)
	Close() error
}

// Open creates the event logger backed by the database at path. An empty
// path returns a disabled logger whose Record is a no-op.
func Open(path string) (Logger, error) {
	if path == "" {
		return nopLogger{}, nil
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init audit schema: %w", err)
	}

	return &sqliteLogger{db: db}, nil
}

type sqliteLogger struct {
	db *sql.DB
}

func (l *sqliteLogger) Record(ctx context.Context, ev Event) {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO edit_events (session_id, event, path, alt, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ev.SessionID, ev.Type, ev.Path, ev.Alt, ev.Detail, time.Now().Unix())
	if err != nil {
		log.Warnf("Failed to record audit event %s for %s: %v", ev.Type, ev.Path, err)
	}
}

func (l *sqliteLogger) Events(ctx context.Context, sessionID string) ([]Event, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT session_id, event, path, alt, detail, created_at
		FROM edit_events WHERE session_id = ? ORDER BY id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.SessionID, &ev.Type, &ev.Path, &ev.Alt, &ev.Detail, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (l *sqliteLogger) Close() error {
	return l.db.Close()
}

// Nop returns a disabled logger.
func Nop() Logger {
	return nopLogger{}
}

type nopLogger struct{}

func (nopLogger) Record(context.Context, Event) {}

func (nopLogger) Events(context.Context, string) ([]Event, error) {
	return nil, nil
}

func (nopLogger) Close() error {
	return nil
}

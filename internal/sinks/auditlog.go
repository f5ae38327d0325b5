// Package sinks holds the concrete events.Sink implementations: an
// append-only SQLite audit log, an S3 CSV spreadsheet export, and a
// websocket chat notifier.
package sinks

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/sinfolonokojo/mt5-backend/internal/events"
)

// AuditLog appends every event it receives to a local SQLite file, giving
// the backend a durable, queryable record independent of the stdout log
// stream.
type AuditLog struct {
	db *sql.DB
}

// NewAuditLog opens (creating if absent) the audit database at path and
// ensures its schema exists.
func NewAuditLog(path string) (*AuditLog, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create audit log directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("ping audit log: %w", err)
	}
	conn.SetMaxOpenConns(5)
	conn.SetMaxIdleConns(2)

	a := &AuditLog{db: conn}
	if err := a.migrate(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *AuditLog) migrate() error {
	_, err := a.db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_events (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			event_type TEXT NOT NULL,
			module     TEXT NOT NULL,
			occurred_at TEXT NOT NULL,
			data       TEXT NOT NULL
		)
	`)
	return err
}

// Name identifies this sink in logs.
func (a *AuditLog) Name() string { return "audit_log" }

// Handle appends evt as one row.
func (a *AuditLog) Handle(evt events.Event) error {
	data, err := json.Marshal(evt.Data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	_, err = a.db.Exec(
		`INSERT INTO audit_events (event_type, module, occurred_at, data) VALUES (?, ?, ?, ?)`,
		string(evt.Type), evt.Module, evt.Timestamp.Format("2006-01-02T15:04:05Z07:00"), string(data),
	)
	return err
}

// Close releases the underlying database connection.
func (a *AuditLog) Close() error {
	return a.db.Close()
}

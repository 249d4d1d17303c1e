package state

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/flemzord/cineplexx-rss/pkg/movie"

	_ "modernc.org/sqlite" // SQLite driver registration
)

const (
	schemaVersion      = 1
	defaultBusyTimeout = 5000
)

// schemaStatements are executed in order; all are idempotent.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS snapshot (
		url        TEXT PRIMARY KEY,
		title      TEXT NOT NULL,
		first_seen TEXT NOT NULL DEFAULT '',
		last_seen  TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS events (
		id       INTEGER PRIMARY KEY AUTOINCREMENT,
		type     TEXT NOT NULL,
		title    TEXT NOT NULL,
		url      TEXT NOT NULL,
		ts       TEXT NOT NULL,
		location TEXT NOT NULL DEFAULT '',
		date     TEXT NOT NULL DEFAULT ''
	)`,
}

// SQLiteStore keeps State in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (and creates) the database at path with WAL mode, a
// 5 s busy timeout and a single connection. The schema is migrated.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("state: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("state: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("state: enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", defaultBusyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("state: set busy_timeout: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("state: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("state: read schema version: %w", err)
	}
	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("state: migrate: %w\nstatement: %s", err, stmt)
		}
	}
	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("state: record schema version: %w", err)
	}
	return nil
}

// Load reads the snapshot and the event log, oldest event first.
func (s *SQLiteStore) Load(ctx context.Context) (*State, error) {
	st := New()

	rows, err := s.db.QueryContext(ctx, "SELECT url, title, first_seen, last_seen FROM snapshot")
	if err != nil {
		return nil, fmt.Errorf("state: load snapshot: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var u string
		var e SnapshotEntry
		if err := rows.Scan(&u, &e.Title, &e.FirstSeen, &e.LastSeen); err != nil {
			return nil, fmt.Errorf("state: scan snapshot: %w", err)
		}
		st.Snapshot[u] = e
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("state: snapshot rows: %w", err)
	}

	evRows, err := s.db.QueryContext(ctx, "SELECT type, title, url, ts, location, date FROM events ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("state: load events: %w", err)
	}
	defer func() { _ = evRows.Close() }()
	for evRows.Next() {
		var ev movie.Event
		var typ string
		if err := evRows.Scan(&typ, &ev.Title, &ev.URL, &ev.TS, &ev.Location, &ev.Date); err != nil {
			return nil, fmt.Errorf("state: scan event: %w", err)
		}
		ev.Type = movie.EventType(typ)
		st.Events = append(st.Events, ev)
	}
	if err := evRows.Err(); err != nil {
		return nil, fmt.Errorf("state: event rows: %w", err)
	}
	return st, nil
}

// Save replaces the stored state in a single transaction.
func (s *SQLiteStore) Save(ctx context.Context, st *State) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("state: begin save tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM snapshot"); err != nil {
		return fmt.Errorf("state: clear snapshot: %w", err)
	}
	for u, e := range st.Snapshot {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO snapshot (url, title, first_seen, last_seen) VALUES (?, ?, ?, ?)",
			u, e.Title, e.FirstSeen, e.LastSeen,
		); err != nil {
			return fmt.Errorf("state: insert snapshot: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM events"); err != nil {
		return fmt.Errorf("state: clear events: %w", err)
	}
	for _, ev := range st.Events {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO events (type, title, url, ts, location, date) VALUES (?, ?, ?, ?, ?, ?)",
			string(ev.Type), ev.Title, ev.URL, ev.TS, ev.Location, ev.Date,
		); err != nil {
			return fmt.Errorf("state: insert event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

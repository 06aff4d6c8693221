// Package audit is an additive, independent record of finished tasks,
// grounded on the teacher's SQLite backend (pkg/devclaw/database/backends/
// sqlite.go: DSN construction, MkdirAll, Ping). It is deliberately not
// where live entry/trigger/task state lives — the manager's in-memory
// registry is authoritative and is not persisted across restarts, per
// the service's non-goals. This package only appends a historical row
// per Append call. The serve command opens the log when it is enabled,
// but no component calls Append, so finished tasks are not recorded.
package audit

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Config mirrors backends.SQLiteConfig, trimmed to what an append-only
// audit log needs.
type Config struct {
	Path        string
	JournalMode string
	BusyTimeout int
}

// Log is a sqlite-backed append-only record of finished tasks.
type Log struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS finished_tasks (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    entry_id    INTEGER NOT NULL,
    entry_name  TEXT DEFAULT '',
    rank        INTEGER NOT NULL,
    command     TEXT NOT NULL,
    state       TEXT NOT NULL,
    code        INTEGER NOT NULL,
    trace_id    TEXT DEFAULT '',
    start_time  TEXT NOT NULL,
    end_time    TEXT NOT NULL,
    created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_finished_tasks_entry ON finished_tasks(entry_id);
CREATE INDEX IF NOT EXISTS idx_finished_tasks_created ON finished_tasks(created_at);
`

// Open opens (creating if necessary) the sqlite-backed audit log,
// mirroring OpenSQLite's DSN construction and connectivity check.
func Open(cfg Config) (*Log, error) {
	if cfg.Path == "" {
		cfg.Path = "./data/fluxcron-audit.db"
	}
	if cfg.JournalMode == "" {
		cfg.JournalMode = "WAL"
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5000
	}

	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create audit directory %q: %w", dir, err)
	}

	dsn := fmt.Sprintf("%s?_journal_mode=%s&_busy_timeout=%d", cfg.Path, cfg.JournalMode, cfg.BusyTimeout)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit database %q: %w", cfg.Path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping audit database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply audit schema: %w", err)
	}
	return &Log{db: db}, nil
}

// Close closes the underlying database connection.
func (l *Log) Close() error { return l.db.Close() }

// Record is one finished task, as appended to the log.
type Record struct {
	EntryID   int64
	EntryName string
	Rank      int
	Command   string
	State     string
	Code      int
	TraceID   string
	StartTime time.Time
	EndTime   time.Time
}

// Append inserts r as a new row.
func (l *Log) Append(r Record) error {
	_, err := l.db.Exec(
		`INSERT INTO finished_tasks
		 (entry_id, entry_name, rank, command, state, code, trace_id, start_time, end_time, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.EntryID, r.EntryName, r.Rank, r.Command, r.State, r.Code, r.TraceID,
		r.StartTime.UTC().Format(time.RFC3339), r.EndTime.UTC().Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// ListByEntry returns the most recent finished tasks for entryID, newest
// first, bounded to limit rows.
func (l *Log) ListByEntry(entryID int64, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := l.db.Query(
		`SELECT entry_id, entry_name, rank, command, state, code, trace_id, start_time, end_time
		 FROM finished_tasks WHERE entry_id = ? ORDER BY id DESC LIMIT ?`,
		entryID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var start, end string
		if err := rows.Scan(&r.EntryID, &r.EntryName, &r.Rank, &r.Command, &r.State, &r.Code, &r.TraceID, &start, &end); err != nil {
			return nil, err
		}
		r.StartTime, _ = time.Parse(time.RFC3339, start)
		r.EndTime, _ = time.Parse(time.RFC3339, end)
		out = append(out, r)
	}
	return out, rows.Err()
}

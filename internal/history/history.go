// Package history keeps a local SQLite ledger of runs. Writes are
// best-effort: a broken ledger degrades to a warning, never a failed
// migration.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// DefaultPath returns the ledger location under the user's home directory.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".pgporter", "history.db"), nil
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL,
	command     TEXT NOT NULL,
	source      TEXT NOT NULL DEFAULT '',
	target      TEXT NOT NULL DEFAULT '',
	succeeded   INTEGER NOT NULL,
	tables      INTEGER NOT NULL DEFAULT 0,
	rows        INTEGER NOT NULL DEFAULT 0,
	errors      TEXT NOT NULL DEFAULT '',
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS steps (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	name        TEXT NOT NULL,
	category    TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	duration_ms INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// Run is one recorded command invocation.
type Run struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"runId"`
	Command    string    `json:"command"`
	Source     string    `json:"source,omitempty"`
	Target     string    `json:"target,omitempty"`
	Succeeded  bool      `json:"succeeded"`
	Tables     int       `json:"tables"`
	Rows       int64     `json:"rows"`
	Errors     []string  `json:"errors,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Steps      []Step    `json:"steps,omitempty"`
}

// Step is one recorded step within a run.
type Step struct {
	Name       string `json:"name"`
	Category   string `json:"category,omitempty"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"durationMs"`
}

// Ledger is the SQLite-backed run history.
type Ledger struct {
	db *sql.DB
}

// Open opens (and if needed creates) the ledger at path. Connection strings
// containing URL options are passed through unchanged.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	// modernc sqlite is single-writer; serialize access through one conn.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing history schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// Record appends a run and its steps to the ledger.
func (l *Ledger) Record(ctx context.Context, run Run) (int64, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning history transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, command, source, target, succeeded, tables, rows, errors, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Command, run.Source, run.Target, boolInt(run.Succeeded),
		run.Tables, run.Rows, strings.Join(run.Errors, "\n"),
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("recording run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading run id: %w", err)
	}

	for _, step := range run.Steps {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO steps (run_id, name, category, status, error, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, step.Name, step.Category, step.Status, step.Error, step.DurationMS,
		); err != nil {
			return 0, fmt.Errorf("recording step %s: %w", step.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing history transaction: %w", err)
	}
	return id, nil
}

// List returns the most recent runs, newest first, without their steps.
func (l *Ledger) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, run_id, command, source, target, succeeded, tables, rows, errors, started_at, finished_at
		FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Show returns one run with its steps.
func (l *Ledger) Show(ctx context.Context, id int64) (*Run, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT id, run_id, command, source, target, succeeded, tables, rows, errors, started_at, finished_at
		FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %d not found", id)
	}
	if err != nil {
		return nil, err
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT name, category, status, error, duration_ms
		FROM steps WHERE run_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("listing steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s Step
		if err := rows.Scan(&s.Name, &s.Category, &s.Status, &s.Error, &s.DurationMS); err != nil {
			return nil, fmt.Errorf("scanning step: %w", err)
		}
		run.Steps = append(run.Steps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &run, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run                 Run
		succeeded           int
		errText             string
		startedAt, finished string
	)
	err := row.Scan(&run.ID, &run.RunID, &run.Command, &run.Source, &run.Target,
		&succeeded, &run.Tables, &run.Rows, &errText, &startedAt, &finished)
	if err == sql.ErrNoRows {
		return run, err
	}
	if err != nil {
		return run, fmt.Errorf("scanning run: %w", err)
	}
	run.Succeeded = succeeded != 0
	if errText != "" {
		run.Errors = strings.Split(errText, "\n")
	}
	if run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return run, fmt.Errorf("parsing started_at: %w", err)
	}
	if run.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
		return run, fmt.Errorf("parsing finished_at: %w", err)
	}
	return run, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

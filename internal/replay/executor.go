package replay

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgconn"
)

// displayCap truncates dry-run statement previews to keep terminal output
// readable for large artifacts.
const displayCap = 200

// execer is the slice of *sql.DB the executor needs; tests substitute a fake.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Options control a replay run.
type Options struct {
	DryRun bool
	// Output receives human-readable step logging. Defaults to os.Stdout.
	Output io.Writer
}

// Executor applies planned steps to one target connection, sequentially and
// in rank order. Live mode stops at the first failed step; dry-run mode
// previews every step without touching the database.
type Executor struct {
	db     execer
	opts   Options
	output io.Writer
}

// NewExecutor creates an executor for the target connection.
func NewExecutor(db execer, opts Options) *Executor {
	output := opts.Output
	if output == nil {
		output = os.Stdout
	}
	return &Executor{db: db, opts: opts, output: output}
}

// Run executes the steps in order and returns the accumulated results. The
// returned error is non-nil only when a live step failed; the result list
// always describes exactly the steps that were attempted.
func (e *Executor) Run(ctx context.Context, steps []Step) (*RunResult, error) {
	result := &RunResult{DryRun: e.opts.DryRun}
	if len(steps) == 0 {
		fmt.Fprintln(e.output, "Nothing to do: no artifacts found.")
		return result, nil
	}

	for _, step := range steps {
		sr := e.runStep(ctx, step)
		result.Append(sr)
		if sr.Status == StatusFailed {
			return result, fmt.Errorf("step %s failed: %s", step.Name, sr.Error)
		}
	}
	return result, nil
}

func (e *Executor) runStep(ctx context.Context, step Step) StepResult {
	sr := StepResult{Name: step.Name, Category: step.Category, Status: StatusStarted}

	raw, err := os.ReadFile(step.Path)
	if err != nil {
		sr.Status = StatusFailed
		sr.Error = fmt.Sprintf("reading artifact: %v", err)
		return sr
	}
	if strings.TrimSpace(string(raw)) == "" {
		fmt.Fprintf(e.output, "  [%d] %-28s skipped (empty)\n", step.Rank, step.Name)
		sr.Status = StatusSkipped
		return sr
	}

	stmt := Transform(step.Category, string(raw))

	if e.opts.DryRun {
		fmt.Fprintf(e.output, "  [%d] %-28s would execute: %s\n", step.Rank, step.Name, truncate(stmt, displayCap))
		sr.Status = StatusSucceeded
		return sr
	}

	start := time.Now()
	_, err = e.db.ExecContext(ctx, stmt)
	sr.Duration = time.Since(start)

	if err != nil {
		sr.Status = StatusFailed
		sr.Error = err.Error()
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			sr.Error = pgErr.Message
			sr.Detail = pgErr.Detail
			sr.Hint = pgErr.Hint
		}
		fmt.Fprintf(e.output, "  [%d] %-28s failed (%s)\n", step.Rank, step.Name, sr.Error)
		return sr
	}

	fmt.Fprintf(e.output, "  [%d] %-28s done (%dms)\n", step.Rank, step.Name, sr.Duration.Milliseconds())
	sr.Status = StatusSucceeded
	return sr
}

// truncate cuts the preview at n runes, never mid-rune, so multi-byte
// identifiers and string data stay printable.
func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}

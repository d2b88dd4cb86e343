//go:build integration

package clone

import (
	"context"
	"io"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/pgporter/pgporter/internal/progress"
	"github.com/pgporter/pgporter/internal/testutil"
)

var sharedPG *testutil.PGContainer

func TestMain(m *testing.M) {
	ctx := context.Background()
	pg, cleanup := testutil.StartPostgresForTestMain(ctx)
	sharedPG = pg
	code := m.Run()
	cleanup()
	os.Exit(code)
}

// targetURL provisions a fresh database on the shared instance and returns
// its connection string.
func targetURL(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	_, err := sharedPG.Pool.Exec(ctx, `DROP DATABASE IF EXISTS pgporter_clone_target WITH (FORCE)`)
	testutil.NoError(t, err)
	_, err = sharedPG.Pool.Exec(ctx, `CREATE DATABASE pgporter_clone_target`)
	testutil.NoError(t, err)

	u, err := url.Parse(sharedPG.ConnString)
	testutil.NoError(t, err)
	u.Path = "/pgporter_clone_target"
	return u.String()
}

func setupSource(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	_, err := sharedPG.Pool.Exec(ctx, `
		DROP SCHEMA IF EXISTS public CASCADE;
		CREATE SCHEMA public;

		CREATE TABLE authors (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL
		);
		CREATE TABLE books (
			id BIGSERIAL PRIMARY KEY,
			author_id BIGINT NOT NULL REFERENCES authors(id),
			title TEXT NOT NULL
		);

		INSERT INTO authors (name) VALUES ('le guin'), ('banks');
		INSERT INTO books (author_id, title) VALUES
			(1, 'the dispossessed'),
			(2, 'use of weapons');
	`)
	testutil.NoError(t, err)
}

func TestCloneEndToEnd(t *testing.T) {
	setupSource(t)
	ctx := context.Background()
	rep := &progress.CaptureReporter{}

	c, err := New(ctx, Options{
		SourceURL: sharedPG.ConnString,
		TargetURL: targetURL(t),
		Progress:  rep,
		Output:    io.Discard,
	})
	testutil.NoError(t, err)
	defer c.Close()

	stats, err := c.Run(ctx)
	testutil.NoError(t, err)

	testutil.Equal(t, 2, stats.Tables)
	testutil.Equal(t, int64(4), stats.Rows)
	testutil.Equal(t, int64(0), stats.RowsFailed)
	testutil.Equal(t, 2, stats.SequencesReset)
	testutil.SliceLen(t, stats.Errors, 0)

	// The target accepts fresh inserts after the sequence reset.
	_, err = c.target.ExecContext(ctx, `INSERT INTO authors (name) VALUES ('chambers')`)
	testutil.NoError(t, err)

	summary, err := c.Validate(ctx, []string{"books"})
	testutil.NoError(t, err)
	testutil.SliceLen(t, summary.Rows, 1)
	testutil.Equal(t, summary.Rows[0].SourceCount, summary.Rows[0].TargetCount)
}

// Cloning twice must be idempotent: existing objects are tolerated and
// duplicate rows are conflict-skipped, not errors.
func TestCloneRerunIsIdempotent(t *testing.T) {
	setupSource(t)
	ctx := context.Background()
	target := targetURL(t)

	for run := 0; run < 2; run++ {
		c, err := New(ctx, Options{
			SourceURL: sharedPG.ConnString,
			TargetURL: target,
			Output:    io.Discard,
		})
		testutil.NoError(t, err)

		stats, err := c.Run(ctx)
		testutil.NoError(t, err)
		testutil.SliceLen(t, stats.Errors, 0)

		if run == 1 {
			// Everything conflicted away on the second pass.
			testutil.Equal(t, int64(0), stats.Rows)
		}
		c.Close()
	}
}

func TestCloneDryRunTouchesNothing(t *testing.T) {
	setupSource(t)
	ctx := context.Background()
	target := targetURL(t)
	var out strings.Builder

	c, err := New(ctx, Options{
		SourceURL: sharedPG.ConnString,
		TargetURL: target,
		DryRun:    true,
		Output:    &out,
	})
	testutil.NoError(t, err)
	defer c.Close()

	stats, err := c.Run(ctx)
	testutil.NoError(t, err)
	testutil.Equal(t, int64(0), stats.Rows)
	testutil.Contains(t, out.String(), "would create table authors")
	testutil.Contains(t, out.String(), "would copy")

	// The target database stayed empty.
	var n int
	err = c.target.QueryRowContext(ctx, `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = 'public'`).Scan(&n)
	testutil.NoError(t, err)
	testutil.Equal(t, 0, n)
}

func TestCloneTableIncludeList(t *testing.T) {
	setupSource(t)
	ctx := context.Background()

	c, err := New(ctx, Options{
		SourceURL: sharedPG.ConnString,
		TargetURL: targetURL(t),
		Tables:    []string{"authors"},
		Output:    io.Discard,
	})
	testutil.NoError(t, err)
	defer c.Close()

	stats, err := c.Run(ctx)
	testutil.NoError(t, err)
	testutil.Equal(t, 1, stats.Tables)
	testutil.Equal(t, int64(2), stats.Rows)
}

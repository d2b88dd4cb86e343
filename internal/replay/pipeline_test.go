package replay_test

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgporter/pgporter/internal/replay"
)

// recordingDB captures every executed statement and optionally fails on a
// matching substring.
type recordingDB struct {
	executed []string
	failOn   string
}

func (r *recordingDB) ExecContext(_ context.Context, query string, _ ...any) (sql.Result, error) {
	r.executed = append(r.executed, query)
	if r.failOn != "" && strings.Contains(query, r.failOn) {
		return nil, errors.New("relation does not exist")
	}
	return nil, nil
}

// writeArtifacts lays out a minimal export directory for the public schema.
func writeArtifacts(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "data"), 0o755))

	files := map[string]string{
		"schema-public.sql":       "CREATE SCHEMA public;\nCREATE TABLE IF NOT EXISTS public.users (id int);",
		"functions-public.sql":    "CREATE FUNCTION public.touch() RETURNS trigger AS $$ BEGIN RETURN NEW; END $$ LANGUAGE plpgsql;",
		"triggers-public.sql":     "",
		"data/public.users.sql":   "INSERT INTO public.users (id) VALUES (1) ON CONFLICT DO NOTHING;",
		"data/public.widgets.sql": "INSERT INTO public.widgets (id) VALUES (1) ON CONFLICT DO NOTHING;",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestPlanThenExecuteLive(t *testing.T) {
	t.Parallel()
	dir := writeArtifacts(t)

	steps, err := replay.Plan(dir, "public")
	require.NoError(t, err)
	require.Len(t, steps, 5)
	assert.Equal(t, replay.CategorySchema, steps[0].Category)
	assert.Equal(t, replay.CategoryFunctions, steps[1].Category)
	assert.Equal(t, replay.CategoryTriggers, steps[2].Category)

	db := &recordingDB{}
	exec := replay.NewExecutor(db, replay.Options{Output: io.Discard})
	result, err := exec.Run(context.Background(), steps)
	require.NoError(t, err)
	assert.True(t, result.OK())
	assert.Equal(t, 4, result.Succeeded)
	assert.Equal(t, 1, result.Skipped) // empty triggers artifact

	// The transformer rewrites before execution.
	require.Len(t, db.executed, 4)
	assert.Contains(t, db.executed[0], "CREATE SCHEMA IF NOT EXISTS public")
	assert.Contains(t, db.executed[1], "CREATE OR REPLACE FUNCTION")
}

func TestExecuteStopsAtFirstLiveFailure(t *testing.T) {
	t.Parallel()
	dir := writeArtifacts(t)

	steps, err := replay.Plan(dir, "public")
	require.NoError(t, err)

	db := &recordingDB{failOn: "public.users"}
	exec := replay.NewExecutor(db, replay.Options{Output: io.Discard})
	result, err := exec.Run(context.Background(), steps)
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.Failed)
	// The widgets data step is never attempted.
	for _, sr := range result.Steps {
		assert.NotEqual(t, "data public.widgets", sr.Name)
	}
}

func TestDryRunTouchesNothing(t *testing.T) {
	t.Parallel()
	dir := writeArtifacts(t)

	steps, err := replay.Plan(dir, "public")
	require.NoError(t, err)

	db := &recordingDB{}
	exec := replay.NewExecutor(db, replay.Options{DryRun: true, Output: io.Discard})
	result, err := exec.Run(context.Background(), steps)
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Empty(t, db.executed)
	assert.Equal(t, 0, result.Failed)
}

package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pgporter/pgporter/internal/export"
	"github.com/pgporter/pgporter/internal/history"
	"github.com/pgporter/pgporter/internal/testutil"
)

func TestNewServer(t *testing.T) {
	t.Parallel()

	srv := NewServer(Config{Version: "1.2.3"})
	testutil.NotNil(t, srv)
}

func writeExportFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	m := &export.Manifest{
		RunID:  "20250301120000",
		Source: "postgres://source-host/app",
		Format: "sql",
		Schemas: []export.SchemaManifest{{
			Name:       "public",
			TableOrder: []string{"users", "posts"},
			RowCounts:  map[string]int64{"users": 3, "posts": 40},
			Functions:  2,
			Triggers:   1,
		}},
		StartedAt:  time.Now().UTC(),
		FinishedAt: time.Now().UTC(),
	}
	testutil.NoError(t, m.Write(dir))

	testutil.NoError(t, os.WriteFile(filepath.Join(dir, "schema-public.sql"),
		[]byte("CREATE TABLE users (id bigint);\n"), 0o644))
	testutil.NoError(t, os.WriteFile(filepath.Join(dir, "functions-public.sql"),
		[]byte("CREATE FUNCTION noop() RETURNS void LANGUAGE sql AS $$ $$;\n"), 0o644))
	testutil.NoError(t, os.MkdirAll(filepath.Join(dir, "data"), 0o755))
	testutil.NoError(t, os.WriteFile(filepath.Join(dir, "data", "public.users.sql"),
		[]byte("INSERT INTO \"public\".\"users\" (\"id\") VALUES (1) ON CONFLICT DO NOTHING;\n"), 0o644))
	return dir
}

func TestHandleInspectExport(t *testing.T) {
	t.Parallel()

	dir := writeExportFixture(t)

	_, out, err := handleInspectExport(context.Background(), InspectExportInput{Dir: dir})
	testutil.NoError(t, err)
	testutil.Equal(t, "20250301120000", out.RunID)
	testutil.Equal(t, "sql", out.Format)
	testutil.SliceLen(t, out.Schemas, 1)
	testutil.Equal(t, int64(43), out.Schemas[0].TotalRows)
	testutil.Equal(t, 2, out.Schemas[0].Functions)

	// Artifact listing is sorted and export-relative.
	testutil.SliceLen(t, out.Artifacts, 4)
	testutil.Equal(t, "data/public.users.sql", out.Artifacts[0])
	testutil.Equal(t, "functions-public.sql", out.Artifacts[1])
	testutil.Equal(t, "manifest.json", out.Artifacts[2])
	testutil.Equal(t, "schema-public.sql", out.Artifacts[3])
}

func TestHandleInspectExportMissingManifest(t *testing.T) {
	t.Parallel()

	_, _, err := handleInspectExport(context.Background(), InspectExportInput{Dir: t.TempDir()})
	testutil.NotNil(t, err)
}

func TestHandlePlanImport(t *testing.T) {
	t.Parallel()

	dir := writeExportFixture(t)

	_, out, err := handlePlanImport(context.Background(), PlanImportInput{Dir: dir})
	testutil.NoError(t, err)
	testutil.SliceLen(t, out.Steps, 3)
	testutil.Equal(t, "schema-public.sql", out.Steps[0].Name)
	testutil.Equal(t, "schema", out.Steps[0].Category)
	testutil.Equal(t, "functions-public.sql", out.Steps[1].Name)
	testutil.Equal(t, "data/public.users.sql", out.Steps[2].Name)
	testutil.Equal(t, "data", out.Steps[2].Category)
	testutil.Equal(t, 3, out.Steps[2].Rank)
}

func TestHandleRunHistory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.db")
	ledger, err := history.Open(path)
	testutil.NoError(t, err)

	id, err := ledger.Record(context.Background(), history.Run{
		RunID:      "20250301120000",
		Command:    "import",
		Succeeded:  true,
		Tables:     2,
		Rows:       43,
		StartedAt:  time.Now().UTC(),
		FinishedAt: time.Now().UTC(),
		Steps: []history.Step{
			{Name: "schema-public.sql", Category: "schema", Status: "succeeded"},
		},
	})
	testutil.NoError(t, err)
	testutil.NoError(t, ledger.Close())

	cfg := Config{HistoryPath: path}

	_, out, err := handleRunHistory(context.Background(), cfg, RunHistoryInput{})
	testutil.NoError(t, err)
	testutil.SliceLen(t, out.Runs, 1)
	testutil.Equal(t, "import", out.Runs[0].Command)

	_, out, err = handleRunHistory(context.Background(), cfg, RunHistoryInput{RunID: id})
	testutil.NoError(t, err)
	testutil.SliceLen(t, out.Runs, 1)
	testutil.SliceLen(t, out.Runs[0].Steps, 1)
}

func TestHandleAnalyzeDatabaseRequiresURL(t *testing.T) {
	t.Parallel()

	_, _, err := handleAnalyzeDatabase(context.Background(), Config{}, AnalyzeDatabaseInput{})
	testutil.ErrorContains(t, err, "no database URL")
}

package export

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/pgporter/pgporter/internal/dbconn"
	"github.com/pgporter/pgporter/internal/progress"
)

// A table that fails introspection degrades to a warning: its DDL and data
// are left out while the rest of the schema artifact is still written. The
// SQLite handle has no pg_catalog, so every per-table query fails.
func TestWriteSchemaArtifactWarnsOnTableFailure(t *testing.T) {
	sq, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}
	defer sq.Close()

	dir := t.TempDir()
	rep := &progress.CaptureReporter{}
	e := &Exporter{
		db:       &dbconn.DB{DB: sq},
		opts:     Options{Dir: dir, Format: FormatSQL, BatchSize: DefaultBatchSize},
		progress: rep,
	}

	result := &Result{}
	tables, err := e.writeSchemaArtifact(context.Background(), "public",
		[]string{"posts", "users"}, result, progress.Phase{Name: "Schema", Index: 1, Total: 4})
	if err != nil {
		t.Fatalf("expected warn-and-continue, got: %v", err)
	}

	if len(tables) != 0 {
		t.Errorf("expected no introspected tables, got %d", len(tables))
	}

	var tableWarnings int
	for _, w := range result.Warnings {
		if strings.Contains(w, "introspecting table public.") {
			tableWarnings++
		}
	}
	if tableWarnings != 2 {
		t.Errorf("expected 2 table warnings, got %d (%v)", tableWarnings, result.Warnings)
	}

	// The schema artifact still lands, with the CREATE SCHEMA statement.
	data, err := os.ReadFile(filepath.Join(dir, SchemaArtifactName("public")))
	if err != nil {
		t.Fatalf("reading schema artifact: %v", err)
	}
	if !strings.Contains(string(data), "CREATE SCHEMA") {
		t.Errorf("expected CREATE SCHEMA in artifact, got %q", data)
	}
}

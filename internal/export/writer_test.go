package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pgporter/pgporter/internal/testutil"
)

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func sqlBatch(offset int64, names ...string) Batch {
	b := Batch{Columns: []string{"id", "name"}, Offset: offset}
	for i, n := range names {
		b.Rows = append(b.Rows, []Value{
			{Kind: KindNumber, Num: string(rune('1' + i))},
			{Kind: KindString, Str: n},
		})
	}
	return b
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	f, err := ParseFormat("sql")
	testutil.NoError(t, err)
	testutil.Equal(t, FormatSQL, f)

	f, err = ParseFormat("JSON")
	testutil.NoError(t, err)
	testutil.Equal(t, FormatJSON, f)

	_, err = ParseFormat("csv")
	testutil.ErrorContains(t, err, "unknown data format")
}

func TestArtifactNames(t *testing.T) {
	t.Parallel()
	testutil.Equal(t, "schema-public.sql", SchemaArtifactName("public"))
	testutil.Equal(t, "functions-public.sql", FunctionsArtifactName("public"))
	testutil.Equal(t, "triggers-public.sql", TriggersArtifactName("public"))
	testutil.Equal(t, filepath.Join("data", "public.users.sql"), DataArtifactName("public", "users", FormatSQL))
	testutil.Equal(t, filepath.Join("data", "app.events.json"), DataArtifactName("app", "events", FormatJSON))
}

func TestDataWriterSQL(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	w, err := NewDataWriter(dir, "public", "users", FormatSQL, 3, testTime)
	testutil.NoError(t, err)
	testutil.NoError(t, w.WriteBatch(sqlBatch(0, "ada", "grace")))
	testutil.NoError(t, w.WriteBatch(sqlBatch(2, "edsger")))
	testutil.Equal(t, int64(3), w.Rows())
	testutil.NoError(t, w.Close())

	data, err := os.ReadFile(filepath.Join(dir, "data", "public.users.sql"))
	testutil.NoError(t, err)
	content := string(data)

	testutil.Contains(t, content, "-- Data for public.users")
	testutil.Contains(t, content, "-- Rows: 3")
	testutil.Contains(t, content, "SET session_replication_role = replica;")
	testutil.Contains(t, content, "SET session_replication_role = DEFAULT;")
	testutil.CountOf(t, content, "INSERT INTO", 3)

	// Preamble before data, postamble after.
	testutil.True(t, strings.Index(content, "replica") < strings.Index(content, "INSERT INTO"))
	testutil.True(t, strings.Index(content, "DEFAULT") > strings.LastIndex(content, "INSERT INTO"))
}

func TestDataWriterJSON(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	w, err := NewDataWriter(dir, "public", "users", FormatJSON, 2, testTime)
	testutil.NoError(t, err)
	testutil.NoError(t, w.WriteBatch(sqlBatch(0, "ada", "grace")))
	testutil.NoError(t, w.Close())

	data, err := os.ReadFile(filepath.Join(dir, "data", "public.users.json"))
	testutil.NoError(t, err)

	var rows []map[string]any
	testutil.NoError(t, json.Unmarshal(data, &rows))
	testutil.SliceLen(t, rows, 2)
	testutil.Equal(t, "ada", rows[0]["name"].(string))
	testutil.Equal(t, float64(1), rows[0]["id"].(float64))
}

// A JSON artifact with zero rows must still parse as an empty array.
func TestDataWriterJSONEmpty(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	w, err := NewDataWriter(dir, "public", "empty", FormatJSON, 0, testTime)
	testutil.NoError(t, err)
	testutil.NoError(t, w.Close())

	data, err := os.ReadFile(filepath.Join(dir, "data", "public.empty.json"))
	testutil.NoError(t, err)

	var rows []map[string]any
	testutil.NoError(t, json.Unmarshal(data, &rows))
	testutil.SliceLen(t, rows, 0)
}

func TestWriteArtifactCreatesParents(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	testutil.NoError(t, WriteArtifact(dir, filepath.Join("nested", "deep", "x.sql"), "SELECT 1;"))
	data, err := os.ReadFile(filepath.Join(dir, "nested", "deep", "x.sql"))
	testutil.NoError(t, err)
	testutil.Equal(t, "SELECT 1;", string(data))
}

func TestBatchCount(t *testing.T) {
	t.Parallel()
	tests := []struct {
		total int64
		size  int
		want  int64
	}{
		{0, 1000, 0},
		{1, 1000, 1},
		{1000, 1000, 1},
		{1001, 1000, 2},
		{2500, 1000, 3},
		{2500, 0, 3}, // zero batch size falls back to the default
	}
	for _, tt := range tests {
		testutil.Equal(t, tt.want, BatchCount(tt.total, tt.size))
	}
}

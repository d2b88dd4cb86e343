//go:build integration

package export

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pgporter/pgporter/internal/catalog"
	"github.com/pgporter/pgporter/internal/dbconn"
	"github.com/pgporter/pgporter/internal/progress"
	"github.com/pgporter/pgporter/internal/testutil"
)

func catalogTables(ctx context.Context, db *dbconn.DB) (map[string]catalog.Table, error) {
	ts, err := catalog.Tables(ctx, db.DB, "public")
	if err != nil {
		return nil, err
	}
	m := make(map[string]catalog.Table, len(ts))
	for _, t := range ts {
		m[t.Name] = t
	}
	return m, nil
}

func indexOf(ss []string, want string) int {
	for i, s := range ss {
		if s == want {
			return i
		}
	}
	return -1
}

var sharedPG *testutil.PGContainer

func TestMain(m *testing.M) {
	ctx := context.Background()
	pg, cleanup := testutil.StartPostgresForTestMain(ctx)
	sharedPG = pg
	code := m.Run()
	cleanup()
	os.Exit(code)
}

func setupSource(t *testing.T) *dbconn.DB {
	t.Helper()
	ctx := context.Background()

	_, err := sharedPG.Pool.Exec(ctx, `
		DROP SCHEMA IF EXISTS public CASCADE;
		CREATE SCHEMA public;

		CREATE TABLE users (
			id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			meta JSONB
		);
		CREATE TABLE posts (
			id BIGINT PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			title TEXT
		);
		CREATE TABLE empty_table (
			id BIGINT PRIMARY KEY
		);

		INSERT INTO users (id, name, meta) VALUES
			(1, 'ada', '{"a": "it''s"}'),
			(2, 'o''brien', NULL);
		INSERT INTO posts (id, user_id, title)
			SELECT g, 1 + g % 2, 'post ' || g FROM generate_series(1, 2500) g;
	`)
	testutil.NoError(t, err)

	db, err := dbconn.Open(ctx, sharedPG.ConnString)
	testutil.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestExporterRun(t *testing.T) {
	db := setupSource(t)
	dir := t.TempDir()

	ex, err := NewExporter(db, Options{Dir: dir, BatchSize: 1000, Version: "test"})
	testutil.NoError(t, err)
	result, err := ex.Run(context.Background())
	testutil.NoError(t, err)

	testutil.Equal(t, 3, result.Tables)
	testutil.Equal(t, int64(2502), result.Rows)

	// FK-safe order captured in the manifest: users before posts.
	m, err := ReadManifest(dir)
	testutil.NoError(t, err)
	testutil.SliceLen(t, m.Schemas, 1)
	order := m.Schemas[0].TableOrder
	iUsers := indexOf(order, "users")
	iPosts := indexOf(order, "posts")
	testutil.True(t, iUsers >= 0 && iPosts >= 0, "both tables present in order")
	testutil.True(t, iUsers < iPosts, "users must precede posts")

	// 2,500 rows at batch size 1000: one file, 2,500 INSERTs, with the
	// session_replication_role preamble and postamble.
	data, err := os.ReadFile(filepath.Join(dir, "data", "public.posts.sql"))
	testutil.NoError(t, err)
	content := string(data)
	testutil.CountOf(t, content, "INSERT INTO", 2500)
	testutil.Contains(t, content, "SET session_replication_role = replica;")
	testutil.Contains(t, content, "SET session_replication_role = DEFAULT;")

	// Quote doubling made it into the artifact.
	users, err := os.ReadFile(filepath.Join(dir, "data", "public.users.sql"))
	testutil.NoError(t, err)
	testutil.Contains(t, string(users), `'{"a":"it''s"}'`)
	testutil.Contains(t, string(users), "'o''brien'")

	// Zero-row tables produce no artifact.
	_, err = os.Stat(filepath.Join(dir, "data", "public.empty_table.sql"))
	testutil.True(t, os.IsNotExist(err), "empty table should have no data artifact")
	testutil.Equal(t, int64(0), m.Schemas[0].RowCounts["empty_table"])

	// Schema artifact replays tables in dependency order.
	schema, err := os.ReadFile(filepath.Join(dir, "schema-public.sql"))
	testutil.NoError(t, err)
	s := string(schema)
	testutil.True(t, strings.Index(s, `CREATE TABLE IF NOT EXISTS "public"."users"`) <
		strings.Index(s, `CREATE TABLE IF NOT EXISTS "public"."posts"`), "users DDL before posts DDL")
}

func TestStreamBatching(t *testing.T) {
	db := setupSource(t)
	ctx := context.Background()

	tables, err := catalogTables(ctx, db)
	testutil.NoError(t, err)
	posts := tables["posts"]

	var offsets []int64
	var rows int64
	n, err := Stream(ctx, db, posts, 1000, func(b Batch) error {
		offsets = append(offsets, b.Offset)
		rows += int64(len(b.Rows))
		return nil
	})
	testutil.NoError(t, err)
	testutil.Equal(t, int64(2500), n)
	testutil.Equal(t, int64(2500), rows)
	testutil.SliceLen(t, offsets, 3)
	testutil.Equal(t, int64(0), offsets[0])
	testutil.Equal(t, int64(1000), offsets[1])
	testutil.Equal(t, int64(2000), offsets[2])
}

func TestExporterJSONFormat(t *testing.T) {
	db := setupSource(t)
	dir := t.TempDir()

	ex, err := NewExporter(db, Options{Dir: dir, Format: FormatJSON, Progress: progress.NopReporter{}})
	testutil.NoError(t, err)
	_, err = ex.Run(context.Background())
	testutil.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "data", "public.users.json"))
	testutil.NoError(t, err)
	testutil.True(t, strings.HasPrefix(string(data), "["), "JSON artifact is a top-level array")
}

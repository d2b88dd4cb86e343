package testutil

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGContainer is a handle to the Postgres instance integration tests run
// against. Tests reach it either through the shared Pool or by opening their
// own connections with ConnString.
type PGContainer struct {
	ConnString string
	Pool       *pgxpool.Pool
}

// StartPostgresForTestMain connects to the Postgres pointed at by
// TEST_DATABASE_URL and returns a container handle plus a cleanup func.
// Call it from TestMain in packages guarded by the integration build tag:
//
//	var sharedPG *testutil.PGContainer
//
//	func TestMain(m *testing.M) {
//		ctx := context.Background()
//		pg, cleanup := testutil.StartPostgresForTestMain(ctx)
//		sharedPG = pg
//		code := m.Run()
//		cleanup()
//		os.Exit(code)
//	}
//
// When TEST_DATABASE_URL is unset the whole package is skipped (exit 0) so
// plain `go test -tags=integration` on a machine without Postgres is a no-op
// rather than a failure. Use the testpg runner to provide the database:
//
//	go run ./internal/testutil/cmd/testpg -- go test -tags=integration ./...
func StartPostgresForTestMain(ctx context.Context) (*PGContainer, func()) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		fmt.Fprintln(os.Stderr, "integration tests: TEST_DATABASE_URL not set, skipping package")
		os.Exit(0)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(connectCtx, url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "integration tests: connect %s: %v\n", url, err)
		os.Exit(1)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		fmt.Fprintf(os.Stderr, "integration tests: ping %s: %v\n", url, err)
		os.Exit(1)
	}

	pg := &PGContainer{ConnString: url, Pool: pool}
	return pg, func() { pool.Close() }
}

// Package dbconn opens and validates the single database connection each
// side of a run owns.
package dbconn

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
)

// DB wraps the one connection a run holds to a database side. Every run owns
// exactly one connection per side; there is no pooling and no sharing across
// concurrent operations.
type DB struct {
	*sql.DB
	rawURL string
}

// Open connects to the database at rawURL and verifies it is reachable.
func Open(ctx context.Context, rawURL string) (*DB, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}
	if !strings.HasPrefix(rawURL, "postgres://") && !strings.HasPrefix(rawURL, "postgresql://") {
		return nil, fmt.Errorf("unsupported database URL %q (want postgres:// or postgresql://)", Redact(rawURL))
	}

	db, err := sql.Open("pgx", rawURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	// One connection per side for the whole run.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging %s: %w", Redact(rawURL), err)
	}
	return &DB{DB: db, rawURL: rawURL}, nil
}

// Redacted returns the connection URL with credentials stripped, safe for logs.
func (d *DB) Redacted() string {
	return Redact(d.rawURL)
}

// ServerVersion reports the server's version string (e.g. "16.3").
func (d *DB) ServerVersion(ctx context.Context) (string, error) {
	var v string
	if err := d.QueryRowContext(ctx, `SHOW server_version`).Scan(&v); err != nil {
		return "", fmt.Errorf("reading server version: %w", err)
	}
	return v, nil
}

// Redact strips userinfo from a connection URL for logging.
func Redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.User = nil
	return u.String()
}

// WithSimpleProtocol returns rawURL with the pgx simple query protocol
// enabled. Replay scripts bundle several statements into one Exec call,
// which the extended protocol rejects.
func WithSimpleProtocol(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set("default_query_exec_mode", "simple_protocol")
	u.RawQuery = q.Encode()
	return u.String()
}

// QuoteIdent quotes a SQL identifier, doubling embedded double quotes.
func QuoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// QuoteLiteral quotes a SQL string literal, doubling embedded single quotes.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// QualifiedName returns schema.table with both parts quoted.
func QualifiedName(schema, table string) string {
	return QuoteIdent(schema) + "." + QuoteIdent(table)
}

package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/pgporter/pgporter/internal/catalog"
	"github.com/pgporter/pgporter/internal/dbconn"
)

// DefaultBatchSize bounds how many rows are held in memory at once.
const DefaultBatchSize = 1000

// Batch is one bounded slice of a table's rows. Columns is shared across
// all batches of a table; each row's values are ordered the same way.
type Batch struct {
	Columns []string
	Rows    [][]Value
	Offset  int64
}

// Stream reads every row of table in fixed-size batches and hands each
// batch to emit in strictly increasing offset order. The total row count is
// measured once up front and never re-measured; a table mutated mid-export
// yields output consistent with the count at the start. Rows are ordered by
// primary key when the table has one, otherwise the scan order is whatever
// the server returns.
//
// Returns the number of rows emitted.
func Stream(ctx context.Context, db *dbconn.DB, table catalog.Table, batchSize int, emit func(Batch) error) (int64, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if len(table.Columns) == 0 {
		return 0, nil
	}

	qualified := dbconn.QualifiedName(table.Schema, table.Name)

	var total int64
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+qualified).Scan(&total); err != nil {
		return 0, fmt.Errorf("counting rows in %s: %w", qualified, err)
	}
	if total == 0 {
		return 0, nil
	}

	columns := make([]string, len(table.Columns))
	quoted := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		columns[i] = c.Name
		quoted[i] = dbconn.QuoteIdent(c.Name)
	}

	query := "SELECT " + strings.Join(quoted, ", ") + " FROM " + qualified
	if len(table.PrimaryKey) > 0 {
		pk := make([]string, len(table.PrimaryKey))
		for i, c := range table.PrimaryKey {
			pk[i] = dbconn.QuoteIdent(c)
		}
		query += " ORDER BY " + strings.Join(pk, ", ")
	}
	query += " LIMIT $1 OFFSET $2"

	var emitted int64
	for offset := int64(0); offset < total; offset += int64(batchSize) {
		batch, err := fetchBatch(ctx, db, table, query, columns, batchSize, offset)
		if err != nil {
			return emitted, err
		}
		if len(batch.Rows) == 0 {
			break
		}
		if err := emit(batch); err != nil {
			return emitted, err
		}
		emitted += int64(len(batch.Rows))
	}
	return emitted, nil
}

func fetchBatch(ctx context.Context, db *dbconn.DB, table catalog.Table, query string, columns []string, limit int, offset int64) (Batch, error) {
	rows, err := db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return Batch{}, fmt.Errorf("reading %s at offset %d: %w", table.ID(), offset, err)
	}
	defer rows.Close()

	batch := Batch{Columns: columns, Offset: offset}
	for rows.Next() {
		vals := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return batch, fmt.Errorf("scanning row from %s: %w", table.ID(), err)
		}
		row := make([]Value, len(columns))
		for i := range vals {
			row[i] = Classify(vals[i], table.Columns[i])
		}
		batch.Rows = append(batch.Rows, row)
	}
	return batch, rows.Err()
}

// BatchCount reports how many batches Stream will request for a table of
// total rows at the given batch size: ceil(total/batchSize).
func BatchCount(total int64, batchSize int) int64 {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if total <= 0 {
		return 0
	}
	return (total + int64(batchSize) - 1) / int64(batchSize)
}

package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgporter/pgporter/internal/progress"
)

// Analyze inventories a database without modifying it: object counts and
// total rows across the requested schemas (all user schemas when none are
// given).
func Analyze(ctx context.Context, db *sql.DB, schemas []string) (*progress.AnalysisReport, error) {
	if len(schemas) == 0 {
		var err error
		if schemas, err = Schemas(ctx, db); err != nil {
			return nil, err
		}
	}

	report := &progress.AnalysisReport{Schemas: schemas}

	for _, schema := range schemas {
		tables, err := Tables(ctx, db, schema)
		if err != nil {
			return nil, fmt.Errorf("analyzing schema %s: %w", schema, err)
		}
		report.Tables += len(tables)
		for _, t := range tables {
			report.Rows += t.RowCount
		}

		views, err := Views(ctx, db, schema)
		if err != nil {
			return nil, fmt.Errorf("analyzing views in %s: %w", schema, err)
		}
		report.Views += len(views)

		functions, err := Functions(ctx, db, schema)
		if err != nil {
			return nil, fmt.Errorf("analyzing functions in %s: %w", schema, err)
		}
		report.Functions += len(functions)

		triggers, err := Triggers(ctx, db, schema)
		if err != nil {
			return nil, fmt.Errorf("analyzing triggers in %s: %w", schema, err)
		}
		report.Triggers += len(triggers)

		sequences, err := Sequences(ctx, db, schema)
		if err != nil {
			return nil, fmt.Errorf("analyzing sequences in %s: %w", schema, err)
		}
		report.Sequences += len(sequences)
	}

	extensions, err := Extensions(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("analyzing extensions: %w", err)
	}
	report.Extensions = len(extensions)

	return report, nil
}

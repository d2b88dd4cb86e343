// Package clone copies a database directly from a source to a target
// connection, without intermediate artifacts.
//
// The clone path deliberately uses a looser failure policy than the replay
// executor: each object and each row is its own unit of work, failures are
// logged and counted, and the run keeps going. Replay stops on the first
// failed step; clone finishes what it can and reports the rest.
package clone

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pgporter/pgporter/internal/catalog"
	"github.com/pgporter/pgporter/internal/dbconn"
	"github.com/pgporter/pgporter/internal/depsort"
	"github.com/pgporter/pgporter/internal/export"
	"github.com/pgporter/pgporter/internal/progress"
)

// SQLSTATE codes the clone path classifies.
const (
	codeDuplicateKey    = "23505"
	codeDuplicateTable  = "42P07"
	codeDuplicateObject = "42710"
)

// Options configure a clone run.
type Options struct {
	SourceURL     string
	TargetURL     string
	Schema        string   // default "public"
	Tables        []string // include list; empty means all
	SkipData      bool
	SkipFunctions bool
	SkipTriggers  bool
	DryRun        bool
	Progress      progress.Reporter
	Output        io.Writer
}

// Stats summarizes a clone run. Errors holds per-item failures that did not
// stop the run.
type Stats struct {
	Tables         int           `json:"tables"`
	Rows           int64         `json:"rows"`
	RowsFailed     int64         `json:"rows_failed"`
	Functions      int           `json:"functions"`
	Triggers       int           `json:"triggers"`
	SequencesReset int           `json:"sequences_reset"`
	Errors         []string      `json:"errors,omitempty"`
	Duration       time.Duration `json:"-"`
}

// Cloner owns one connection to each side for the duration of a run.
type Cloner struct {
	source   *dbconn.DB
	target   *dbconn.DB
	opts     Options
	stats    Stats
	output   io.Writer
	progress progress.Reporter
}

// New connects to both databases and validates the options.
func New(ctx context.Context, opts Options) (*Cloner, error) {
	if opts.Schema == "" {
		opts.Schema = "public"
	}
	source, err := dbconn.Open(ctx, opts.SourceURL)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	target, err := dbconn.Open(ctx, dbconn.WithSimpleProtocol(opts.TargetURL))
	if err != nil {
		source.Close()
		return nil, fmt.Errorf("target: %w", err)
	}

	output := opts.Output
	if output == nil {
		output = os.Stdout
	}
	rep := opts.Progress
	if rep == nil {
		rep = progress.NopReporter{}
	}
	return &Cloner{source: source, target: target, opts: opts, output: output, progress: rep}, nil
}

// Close releases both connections.
func (c *Cloner) Close() error {
	var errs []string
	if err := c.source.Close(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.target.Close(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("closing connections: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Cloner) recordError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.stats.Errors = append(c.stats.Errors, msg)
	c.progress.Warn(msg)
}

// phaseCount reports how many phases this run will go through.
func (c *Cloner) phaseCount() int {
	n := 1 // schema objects always run
	if !c.opts.SkipFunctions {
		n++
	}
	if !c.opts.SkipTriggers {
		n++
	}
	if !c.opts.SkipData {
		n += 2 // data + sequence reset
	}
	return n
}

// Run performs the clone. The returned stats are valid even when err is
// non-nil; err is reserved for failures that made the run meaningless.
func (c *Cloner) Run(ctx context.Context) (*Stats, error) {
	start := time.Now()
	schema := c.opts.Schema

	order, err := depsort.Resolve(ctx, c.source, schema, c.progress)
	if err != nil {
		return &c.stats, err
	}
	order = c.filterTables(order)

	tables := make([]catalog.Table, 0, len(order))
	for _, name := range order {
		t, err := catalog.TableDetail(ctx, c.source.DB, schema, name)
		if err != nil {
			c.recordError("introspecting %s.%s: %v", schema, name, err)
			continue
		}
		tables = append(tables, *t)
	}

	phases := c.phaseCount()
	idx := 1

	c.createSchemaObjects(ctx, schema, tables, progress.Phase{Name: "Schema", Index: idx, Total: phases})
	idx++

	if !c.opts.SkipFunctions {
		c.copyFunctions(ctx, schema, progress.Phase{Name: "Functions", Index: idx, Total: phases})
		idx++
	}
	if !c.opts.SkipData {
		c.copyData(ctx, tables, progress.Phase{Name: "Data", Index: idx, Total: phases})
		idx++
	}
	if !c.opts.SkipTriggers {
		// Triggers last, so data loading never fires them.
		c.copyTriggers(ctx, schema, progress.Phase{Name: "Triggers", Index: idx, Total: phases})
		idx++
	}
	if !c.opts.SkipData {
		c.resetSequences(ctx, tables, progress.Phase{Name: "Sequences", Index: idx, Total: phases})
	}

	c.stats.Duration = time.Since(start)
	return &c.stats, nil
}

// filterTables applies the include list, preserving resolver order.
func (c *Cloner) filterTables(order []string) []string {
	if len(c.opts.Tables) == 0 {
		return order
	}
	include := make(map[string]bool, len(c.opts.Tables))
	for _, t := range c.opts.Tables {
		include[t] = true
	}
	filtered := make([]string, 0, len(order))
	for _, t := range order {
		if include[t] {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

// execObject runs one DDL statement on the target under the granular policy:
// "already exists" conditions are silently fine, anything else is recorded
// and the run continues. Returns true when the object now exists.
func (c *Cloner) execObject(ctx context.Context, label, stmt string) bool {
	if c.opts.DryRun {
		fmt.Fprintf(c.output, "  would create %s\n", label)
		return false
	}
	if _, err := c.target.ExecContext(ctx, stmt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case codeDuplicateTable, codeDuplicateObject:
				return true
			}
		}
		c.recordError("creating %s: %v", label, err)
		return false
	}
	return true
}

// createSchemaObjects creates the schema, extensions, enum types, sequences,
// tables, constraints, and indexes on the target, one statement at a time.
// Constraints run in a second pass so FK targets exist regardless of
// creation order.
func (c *Cloner) createSchemaObjects(ctx context.Context, schema string, tables []catalog.Table, phase progress.Phase) {
	c.progress.StartPhase(phase, len(tables))
	start := time.Now()

	c.execObject(ctx, "schema "+schema,
		fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s;", dbconn.QuoteIdent(schema)))

	if exts, err := catalog.Extensions(ctx, c.source.DB); err != nil {
		c.recordError("reading extensions: %v", err)
	} else {
		for _, ext := range exts {
			c.execObject(ctx, "extension "+ext.Name, catalog.CreateExtensionSQL(ext))
		}
	}

	if enums, err := catalog.EnumTypes(ctx, c.source.DB, schema); err != nil {
		c.recordError("reading enum types: %v", err)
	} else {
		for _, en := range enums {
			c.execObject(ctx, "type "+en.Name, catalog.CreateEnumSQL(en))
		}
	}

	if seqs, err := catalog.Sequences(ctx, c.source.DB, schema); err != nil {
		c.recordError("reading sequences: %v", err)
	} else {
		for _, s := range seqs {
			c.execObject(ctx, "sequence "+s.Name, catalog.CreateSequenceSQL(s))
		}
	}

	for i, t := range tables {
		if c.execObject(ctx, "table "+t.Name, catalog.CreateTableSQL(t)) {
			c.stats.Tables++
		}
		c.progress.Progress(phase, i+1, len(tables))
	}

	if cons, err := catalog.Constraints(ctx, c.source.DB, schema); err != nil {
		c.recordError("reading constraints: %v", err)
	} else {
		for _, con := range cons {
			c.execObject(ctx, "constraint "+con.Name, catalog.AddConstraintSQL(con))
		}
	}

	if idxs, err := catalog.Indexes(ctx, c.source.DB, schema); err != nil {
		c.recordError("reading indexes: %v", err)
	} else {
		for _, idx := range idxs {
			c.execObject(ctx, "index "+idx.Name, catalog.CreateIndexSQL(idx))
		}
	}

	if views, err := catalog.Views(ctx, c.source.DB, schema); err != nil {
		c.recordError("reading views: %v", err)
	} else {
		for _, v := range views {
			c.execObject(ctx, "view "+v.Name, catalog.CreateViewSQL(v))
		}
	}

	c.progress.CompletePhase(phase, len(tables), time.Since(start))
}

func (c *Cloner) copyFunctions(ctx context.Context, schema string, phase progress.Phase) {
	start := time.Now()
	fns, err := catalog.Functions(ctx, c.source.DB, schema)
	if err != nil {
		c.recordError("reading functions: %v", err)
		return
	}
	c.progress.StartPhase(phase, len(fns))

	for i, f := range fns {
		stmt := strings.Replace(f.Definition, "CREATE FUNCTION", "CREATE OR REPLACE FUNCTION", 1)
		if c.opts.DryRun {
			fmt.Fprintf(c.output, "  would create function %s\n", f.Name)
			continue
		}
		if _, err := c.target.ExecContext(ctx, stmt); err != nil {
			c.recordError("creating function %s: %v", f.Name, err)
			continue
		}
		c.stats.Functions++
		c.progress.Progress(phase, i+1, len(fns))
	}
	c.progress.CompletePhase(phase, len(fns), time.Since(start))
}

func (c *Cloner) copyTriggers(ctx context.Context, schema string, phase progress.Phase) {
	start := time.Now()
	trgs, err := catalog.Triggers(ctx, c.source.DB, schema)
	if err != nil {
		c.recordError("reading triggers: %v", err)
		return
	}
	c.progress.StartPhase(phase, len(trgs))

	for i, trg := range trgs {
		if c.opts.DryRun {
			fmt.Fprintf(c.output, "  would create trigger %s on %s\n", trg.Name, trg.Table)
			continue
		}
		drop := fmt.Sprintf("DROP TRIGGER IF EXISTS %s ON %s;",
			dbconn.QuoteIdent(trg.Name), dbconn.QualifiedName(schema, trg.Table))
		if _, err := c.target.ExecContext(ctx, drop); err != nil {
			c.recordError("dropping trigger %s: %v", trg.Name, err)
			continue
		}
		if _, err := c.target.ExecContext(ctx, trg.Definition); err != nil {
			c.recordError("creating trigger %s: %v", trg.Name, err)
			continue
		}
		c.stats.Triggers++
		c.progress.Progress(phase, i+1, len(trgs))
	}
	c.progress.CompletePhase(phase, len(trgs), time.Since(start))
}

// copyData streams each table source→target with a prepared INSERT in
// autocommit mode, so a failed row never poisons a transaction. Duplicate
// keys count as success-equivalent skips; other row failures are recorded
// with a best-effort primary key identifier and the table keeps going.
func (c *Cloner) copyData(ctx context.Context, tables []catalog.Table, phase progress.Phase) {
	c.progress.StartPhase(phase, len(tables))
	start := time.Now()

	for i, t := range tables {
		if c.opts.DryRun {
			fmt.Fprintf(c.output, "  would copy %d rows into %s\n", t.RowCount, t.ID())
			continue
		}
		copied, failed, err := c.copyTable(ctx, t)
		c.stats.Rows += copied
		c.stats.RowsFailed += failed
		if err != nil {
			c.recordError("copying %s: %v", t.ID(), err)
		}
		c.progress.Progress(phase, i+1, len(tables))
	}
	c.progress.CompletePhase(phase, len(tables), time.Since(start))
}

func (c *Cloner) copyTable(ctx context.Context, t catalog.Table) (copied, failed int64, err error) {
	if len(t.Columns) == 0 || t.RowCount == 0 {
		return 0, 0, nil
	}

	quoted := make([]string, len(t.Columns))
	placeholders := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		quoted[i] = dbconn.QuoteIdent(col.Name)
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	colList := strings.Join(quoted, ", ")

	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING",
		dbconn.QualifiedName(t.Schema, t.Name), colList, strings.Join(placeholders, ", "))
	stmt, err := c.target.PrepareContext(ctx, insertSQL)
	if err != nil {
		return 0, 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	_, err = export.Stream(ctx, c.source, t, export.DefaultBatchSize, func(b export.Batch) error {
		for _, row := range b.Rows {
			args := make([]any, len(row))
			for i, v := range row {
				args[i] = insertArg(v)
			}
			res, err := stmt.ExecContext(ctx, args...)
			if err != nil {
				var pgErr *pgconn.PgError
				if errors.As(err, &pgErr) && pgErr.Code == codeDuplicateKey {
					continue
				}
				failed++
				c.recordError("row %s in %s: %v", rowIdentifier(t, b.Columns, row), t.ID(), err)
				continue
			}
			if n, _ := res.RowsAffected(); n > 0 {
				copied++
			}
		}
		return nil
	})
	return copied, failed, err
}

// insertArg converts a tagged value back into a driver argument.
func insertArg(v export.Value) any {
	switch v.Kind {
	case export.KindNull:
		return nil
	case export.KindBool:
		return v.Bool
	case export.KindNumber:
		return v.Num
	case export.KindTime:
		return v.Time
	case export.KindBytes:
		return v.Bytes
	case export.KindJSON:
		return string(v.JSON)
	default:
		return v.Str
	}
}

// rowIdentifier renders a best-effort identifier for a failed row: its
// primary key values when the table has a PK, else its first column.
func rowIdentifier(t catalog.Table, columns []string, row []export.Value) string {
	keyCols := t.PrimaryKey
	if len(keyCols) == 0 && len(columns) > 0 {
		keyCols = columns[:1]
	}
	var parts []string
	for _, k := range keyCols {
		for i, col := range columns {
			if col == k {
				parts = append(parts, fmt.Sprintf("%s=%s", col, row[i].SQLLiteral()))
			}
		}
	}
	if len(parts) == 0 {
		return "(unidentified)"
	}
	return strings.Join(parts, ",")
}

// resetSequences points each serial-backed sequence at max(pk)+1 so inserts
// on the target continue after the copied data.
func (c *Cloner) resetSequences(ctx context.Context, tables []catalog.Table, phase progress.Phase) {
	c.progress.StartPhase(phase, len(tables))
	start := time.Now()

	for _, t := range tables {
		if len(t.PrimaryKey) != 1 {
			continue
		}
		pk := t.PrimaryKey[0]
		serial := false
		for _, col := range t.Columns {
			if col.Name == pk && strings.Contains(col.Default, "nextval") {
				serial = true
				break
			}
		}
		if !serial {
			continue
		}
		if c.opts.DryRun {
			fmt.Fprintf(c.output, "  would reset sequence for %s.%s\n", t.Name, pk)
			continue
		}

		resetSQL := fmt.Sprintf(
			`SELECT setval(pg_get_serial_sequence(%s, %s), COALESCE(MAX(%s), 1)) FROM %s`,
			dbconn.QuoteLiteral(dbconn.QualifiedName(t.Schema, t.Name)),
			dbconn.QuoteLiteral(pk),
			dbconn.QuoteIdent(pk),
			dbconn.QualifiedName(t.Schema, t.Name),
		)
		if _, err := c.target.ExecContext(ctx, resetSQL); err != nil {
			c.recordError("resetting sequence for %s.%s: %v", t.Name, pk, err)
			continue
		}
		c.stats.SequencesReset++
	}
	c.progress.CompletePhase(phase, c.stats.SequencesReset, time.Since(start))
}

// Validate compares per-table row counts between source and target. A nil
// table list validates every table the clone options select.
func (c *Cloner) Validate(ctx context.Context, tables []string) (*progress.ValidationSummary, error) {
	if tables == nil {
		names, err := catalog.TableNames(ctx, c.source.DB, c.opts.Schema)
		if err != nil {
			return nil, fmt.Errorf("listing tables for validation: %w", err)
		}
		tables = c.filterTables(names)
	}
	summary := &progress.ValidationSummary{
		SourceLabel: "Source (" + c.source.Redacted() + ")",
		TargetLabel: "Target (" + c.target.Redacted() + ")",
	}
	for _, name := range tables {
		qualified := dbconn.QualifiedName(c.opts.Schema, name)
		var src, dst int64
		if err := c.source.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+qualified).Scan(&src); err != nil {
			return nil, fmt.Errorf("counting source %s: %w", name, err)
		}
		if err := c.target.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+qualified).Scan(&dst); err != nil {
			summary.Warnings = append(summary.Warnings, fmt.Sprintf("counting target %s: %v", name, err))
			continue
		}
		summary.Rows = append(summary.Rows, progress.ValidationRow{Label: name, SourceCount: src, TargetCount: dst})
	}
	return summary, nil
}

// Package export serializes a database's schema, functions, triggers, and
// data into portable artifact files.
//
// Rows are streamed in fixed-size batches ordered by primary key. Tables
// without a primary key are exported in whatever order the server returns,
// which may differ between runs of the same export; that nondeterminism is
// accepted rather than papered over with an invented ordering.
package export

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pgporter/pgporter/internal/catalog"
	"github.com/pgporter/pgporter/internal/dbconn"
	"github.com/pgporter/pgporter/internal/depsort"
	"github.com/pgporter/pgporter/internal/progress"
)

// Options configure an export run.
type Options struct {
	Dir       string
	Schemas   []string // empty means just "public"
	Format    Format
	BatchSize int
	SkipData  bool
	Version   string // tool version recorded in the manifest
	Progress  progress.Reporter
}

// Result summarizes a completed export run.
type Result struct {
	RunID     string        `json:"run_id"`
	Tables    int           `json:"tables"`
	Rows      int64         `json:"rows"`
	Functions int           `json:"functions"`
	Triggers  int           `json:"triggers"`
	Views     int           `json:"views"`
	Warnings  []string      `json:"warnings,omitempty"`
	Duration  time.Duration `json:"-"`
}

// Exporter walks each schema and writes its artifacts to the export directory.
type Exporter struct {
	db       *dbconn.DB
	opts     Options
	progress progress.Reporter
}

// NewExporter validates options and creates an exporter over an open source
// connection. The caller keeps ownership of the connection.
func NewExporter(db *dbconn.DB, opts Options) (*Exporter, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("export directory is required")
	}
	if opts.Format == "" {
		opts.Format = FormatSQL
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if len(opts.Schemas) == 0 {
		opts.Schemas = []string{"public"}
	}
	rep := opts.Progress
	if rep == nil {
		rep = progress.NopReporter{}
	}
	return &Exporter{db: db, opts: opts, progress: rep}, nil
}

// Run exports every configured schema. Per-table and per-object failures are
// collected as warnings and the run keeps going; only failures that make the
// whole export meaningless (listing tables, writing the schema artifact)
// abort it.
func (e *Exporter) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	manifest := &Manifest{
		RunID:     uuid.NewString(),
		Version:   e.opts.Version,
		Source:    e.db.Redacted(),
		Format:    e.opts.Format,
		StartedAt: start.UTC(),
	}
	result := &Result{RunID: manifest.RunID}

	for _, schema := range e.opts.Schemas {
		sm, err := e.exportSchema(ctx, schema, result)
		if err != nil {
			return result, fmt.Errorf("exporting schema %s: %w", schema, err)
		}
		manifest.Schemas = append(manifest.Schemas, *sm)
	}

	manifest.FinishedAt = time.Now().UTC()
	manifest.Warnings = result.Warnings
	if err := manifest.Write(e.opts.Dir); err != nil {
		return result, err
	}

	result.Duration = time.Since(start)
	return result, nil
}

func (e *Exporter) warn(result *Result, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	result.Warnings = append(result.Warnings, msg)
	e.progress.Warn(msg)
}

func (e *Exporter) exportSchema(ctx context.Context, schema string, result *Result) (*SchemaManifest, error) {
	order, err := depsort.Resolve(ctx, e.db, schema, e.progress)
	if err != nil {
		return nil, err
	}

	sm := &SchemaManifest{Name: schema, TableOrder: order, RowCounts: make(map[string]int64)}

	phaseTotal := 4
	if e.opts.SkipData {
		phaseTotal = 3
	}

	tables, err := e.writeSchemaArtifact(ctx, schema, order, result, progress.Phase{Name: "Schema", Index: 1, Total: phaseTotal})
	if err != nil {
		return nil, err
	}
	result.Tables += len(tables)

	sm.Functions = e.writeFunctionsArtifact(ctx, schema, result, progress.Phase{Name: "Functions", Index: 2, Total: phaseTotal})
	result.Functions += sm.Functions
	sm.Triggers = e.writeTriggersArtifact(ctx, schema, result, progress.Phase{Name: "Triggers", Index: 3, Total: phaseTotal})
	result.Triggers += sm.Triggers

	if !e.opts.SkipData {
		e.exportData(ctx, tables, order, sm, result, progress.Phase{Name: "Data", Index: 4, Total: phaseTotal})
	}
	return sm, nil
}

// writeSchemaArtifact renders schema-<schema>.sql: schema, extensions, enum
// types, sequences, tables in dependency order, constraints, indexes, views.
// Individual object and table introspection failures become warnings; only
// failing to list the schema's tables at all is fatal, and that happens
// upstream when the table order is resolved.
func (e *Exporter) writeSchemaArtifact(ctx context.Context, schema string, order []string, result *Result, phase progress.Phase) (map[string]catalog.Table, error) {
	e.progress.StartPhase(phase, len(order))
	start := time.Now()

	var sb strings.Builder
	fmt.Fprintf(&sb, "-- Schema export for %s\n-- Generated: %s\n\n", schema, time.Now().UTC().Format(time.RFC3339))
	sb.WriteString(catalog.CreateSchemaSQL(schema) + "\n\n")

	if exts, err := catalog.Extensions(ctx, e.db.DB); err != nil {
		e.warn(result, "reading extensions: %v", err)
	} else {
		for _, ext := range exts {
			sb.WriteString(catalog.CreateExtensionSQL(ext) + "\n")
		}
		if len(exts) > 0 {
			sb.WriteString("\n")
		}
	}

	if enums, err := catalog.EnumTypes(ctx, e.db.DB, schema); err != nil {
		e.warn(result, "reading enum types in %s: %v", schema, err)
	} else {
		for _, en := range enums {
			sb.WriteString(catalog.CreateEnumSQL(en) + "\n\n")
		}
	}

	if seqs, err := catalog.Sequences(ctx, e.db.DB, schema); err != nil {
		e.warn(result, "reading sequences in %s: %v", schema, err)
	} else {
		for _, s := range seqs {
			sb.WriteString(catalog.CreateSequenceSQL(s) + "\n")
		}
		if len(seqs) > 0 {
			sb.WriteString("\n")
		}
	}

	// One table failing to introspect degrades to a warning: its DDL and
	// data are left out and the rest of the schema still exports. Only the
	// table listing itself failing aborts the export.
	tables := make(map[string]catalog.Table, len(order))
	for i, name := range order {
		t, err := catalog.TableDetail(ctx, e.db.DB, schema, name)
		if err != nil {
			e.warn(result, "introspecting table %s.%s: %v", schema, name, err)
			continue
		}
		tables[name] = *t
		sb.WriteString(catalog.CreateTableSQL(*t) + "\n\n")
		e.progress.Progress(phase, i+1, len(order))
	}

	if cons, err := catalog.Constraints(ctx, e.db.DB, schema); err != nil {
		e.warn(result, "reading constraints in %s: %v", schema, err)
	} else {
		for _, c := range cons {
			sb.WriteString(catalog.AddConstraintSQL(c) + "\n\n")
		}
	}

	if idxs, err := catalog.Indexes(ctx, e.db.DB, schema); err != nil {
		e.warn(result, "reading indexes in %s: %v", schema, err)
	} else {
		for _, idx := range idxs {
			sb.WriteString(catalog.CreateIndexSQL(idx) + "\n")
		}
		if len(idxs) > 0 {
			sb.WriteString("\n")
		}
	}

	if views, err := catalog.Views(ctx, e.db.DB, schema); err != nil {
		e.warn(result, "reading views in %s: %v", schema, err)
	} else {
		result.Views += len(views)
		for _, v := range views {
			sb.WriteString(catalog.CreateViewSQL(v) + "\n\n")
		}
	}

	if err := WriteArtifact(e.opts.Dir, SchemaArtifactName(schema), sb.String()); err != nil {
		return nil, err
	}
	e.progress.CompletePhase(phase, len(order), time.Since(start))
	return tables, nil
}

func (e *Exporter) writeFunctionsArtifact(ctx context.Context, schema string, result *Result, phase progress.Phase) int {
	start := time.Now()
	fns, err := catalog.Functions(ctx, e.db.DB, schema)
	if err != nil {
		e.warn(result, "reading functions in %s: %v", schema, err)
		return 0
	}
	e.progress.StartPhase(phase, len(fns))

	var sb strings.Builder
	fmt.Fprintf(&sb, "-- Functions export for %s\n-- Generated: %s\n\n", schema, time.Now().UTC().Format(time.RFC3339))
	for _, f := range fns {
		sb.WriteString(strings.TrimSpace(f.Definition))
		sb.WriteString(";\n\n")
	}

	if err := WriteArtifact(e.opts.Dir, FunctionsArtifactName(schema), sb.String()); err != nil {
		e.warn(result, "%v", err)
		return 0
	}
	e.progress.CompletePhase(phase, len(fns), time.Since(start))
	return len(fns)
}

func (e *Exporter) writeTriggersArtifact(ctx context.Context, schema string, result *Result, phase progress.Phase) int {
	start := time.Now()
	trgs, err := catalog.Triggers(ctx, e.db.DB, schema)
	if err != nil {
		e.warn(result, "reading triggers in %s: %v", schema, err)
		return 0
	}
	e.progress.StartPhase(phase, len(trgs))

	var sb strings.Builder
	fmt.Fprintf(&sb, "-- Triggers export for %s\n-- Generated: %s\n\n", schema, time.Now().UTC().Format(time.RFC3339))
	for _, trg := range trgs {
		sb.WriteString(strings.TrimSpace(trg.Definition))
		sb.WriteString(";\n")
	}

	if err := WriteArtifact(e.opts.Dir, TriggersArtifactName(schema), sb.String()); err != nil {
		e.warn(result, "%v", err)
		return 0
	}
	e.progress.CompletePhase(phase, len(trgs), time.Since(start))
	return len(trgs)
}

// exportData streams each table to its data artifact in dependency order.
// Files land on disk in that order too, so their lexical discovery order at
// import time matches the captured dependency order. One table failing
// aborts only that table.
func (e *Exporter) exportData(ctx context.Context, tables map[string]catalog.Table, order []string, sm *SchemaManifest, result *Result, phase progress.Phase) {
	e.progress.StartPhase(phase, len(order))
	start := time.Now()

	for i, name := range order {
		t, ok := tables[name]
		if !ok {
			continue
		}
		rows, err := e.exportTable(ctx, t)
		if err != nil {
			e.warn(result, "exporting data for %s: %v", t.ID(), err)
			continue
		}
		sm.RowCounts[name] = rows
		result.Rows += rows
		e.progress.Progress(phase, i+1, len(order))
	}
	e.progress.CompletePhase(phase, len(order), time.Since(start))
}

// exportTable writes one table's data artifact. Zero-row tables are skipped
// entirely: no artifact file, zero reported rows, same outcome every run.
func (e *Exporter) exportTable(ctx context.Context, t catalog.Table) (int64, error) {
	if t.RowCount == 0 {
		return 0, nil
	}

	w, err := NewDataWriter(e.opts.Dir, t.Schema, t.Name, e.opts.Format, t.RowCount, time.Now())
	if err != nil {
		return 0, err
	}

	rows, err := Stream(ctx, e.db, t, e.opts.BatchSize, w.WriteBatch)
	if err != nil {
		w.Close()
		return rows, err
	}
	if err := w.Close(); err != nil {
		return rows, fmt.Errorf("closing data artifact for %s: %w", t.ID(), err)
	}
	return rows, nil
}

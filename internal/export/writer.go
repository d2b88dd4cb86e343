package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Format selects how table data artifacts are rendered.
type Format string

const (
	FormatSQL  Format = "sql"
	FormatJSON Format = "json"
)

// ParseFormat validates a user-supplied format string.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatSQL:
		return FormatSQL, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown data format %q (want sql or json)", s)
}

// Artifact file names the import side discovers by convention.
func SchemaArtifactName(schema string) string    { return "schema-" + schema + ".sql" }
func FunctionsArtifactName(schema string) string { return "functions-" + schema + ".sql" }
func TriggersArtifactName(schema string) string  { return "triggers-" + schema + ".sql" }

// DataArtifactName returns the per-table data file name under the data
// subdirectory. The schema.table prefix keeps one file per table and lets
// the planner recover both parts from the name alone.
func DataArtifactName(schema, table string, format Format) string {
	return filepath.Join("data", schema+"."+table+"."+string(format))
}

// WriteArtifact writes content to name inside dir, creating parent
// directories as needed.
func WriteArtifact(dir, name, content string) error {
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// DataWriter streams one table's batches into a single data artifact,
// writing incrementally so the full row set is never held in memory.
type DataWriter struct {
	f      *os.File
	format Format
	schema string
	table  string
	rows   int64
}

// NewDataWriter opens the data artifact for schema.table and writes the
// format's preamble. For SQL that is a header comment plus the statement
// that suspends trigger and FK enforcement for the session; for JSON it is
// the opening bracket of the top-level array.
func NewDataWriter(dir, schema, table string, format Format, totalRows int64, now time.Time) (*DataWriter, error) {
	name := DataArtifactName(schema, table, format)
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", name, err)
	}
	w := &DataWriter{f: f, format: format, schema: schema, table: table}

	switch format {
	case FormatJSON:
		if _, err := f.WriteString("[\n"); err != nil {
			f.Close()
			return nil, err
		}
	default:
		header := fmt.Sprintf("-- Data for %s.%s\n-- Generated: %s\n-- Rows: %d\n\nSET session_replication_role = replica;\n\n",
			schema, table, now.UTC().Format(time.RFC3339), totalRows)
		if _, err := f.WriteString(header); err != nil {
			f.Close()
			return nil, err
		}
	}
	return w, nil
}

// WriteBatch appends one batch of rows to the artifact.
func (w *DataWriter) WriteBatch(b Batch) error {
	var sb strings.Builder
	for _, row := range b.Rows {
		switch w.format {
		case FormatJSON:
			if w.rows > 0 {
				sb.WriteString(",\n")
			}
			if err := appendJSONRow(&sb, b.Columns, row); err != nil {
				return fmt.Errorf("encoding row from %s.%s: %w", w.schema, w.table, err)
			}
		default:
			sb.WriteString(InsertStatement(w.schema, w.table, b.Columns, row))
			sb.WriteByte('\n')
		}
		w.rows++
	}
	if _, err := w.f.WriteString(sb.String()); err != nil {
		return fmt.Errorf("writing data for %s.%s: %w", w.schema, w.table, err)
	}
	return nil
}

// appendJSONRow renders one row as a flat JSON object, preserving column
// order rather than letting map encoding sort the keys.
func appendJSONRow(sb *strings.Builder, columns []string, row []Value) error {
	sb.WriteString("  {")
	for i, col := range columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		key, err := json.Marshal(col)
		if err != nil {
			return err
		}
		sb.Write(key)
		sb.WriteString(": ")
		val, err := json.Marshal(row[i].JSONValue())
		if err != nil {
			return err
		}
		sb.Write(val)
	}
	sb.WriteString("}")
	return nil
}

// Rows reports how many rows have been written so far.
func (w *DataWriter) Rows() int64 { return w.rows }

// Close writes the postamble and closes the file. For SQL the postamble
// restores trigger enforcement; for JSON it closes the array, which stays
// valid even when zero rows were written.
func (w *DataWriter) Close() error {
	var tail string
	switch w.format {
	case FormatJSON:
		if w.rows == 0 {
			tail = "]\n"
		} else {
			tail = "\n]\n"
		}
	default:
		tail = "\nSET session_replication_role = DEFAULT;\n"
	}
	if _, err := w.f.WriteString(tail); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// Package progress provides phase reporting shared by the export, import,
// and clone pipelines.
package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Phase represents a named pipeline phase (e.g., "Schema", "Functions", "Data").
type Phase struct {
	Name  string // e.g., "Schema", "Functions", "Triggers", "Data"
	Index int    // 1-based index (1 of 4)
	Total int    // total number of phases
}

// Reporter receives progress updates from a pipeline. Implementations must be
// safe for use from a single goroutine; the pipelines never call them
// concurrently.
type Reporter interface {
	// StartPhase is called when a new phase begins.
	StartPhase(phase Phase, totalItems int)
	// Progress is called as items are processed within a phase.
	Progress(phase Phase, completed int, totalItems int)
	// CompletePhase is called when a phase finishes.
	CompletePhase(phase Phase, totalItems int, elapsed time.Duration)
	// Warn reports a non-fatal warning.
	Warn(msg string)
}

// CLIReporter prints progress to a terminal writer.
type CLIReporter struct {
	w  io.Writer
	mu sync.Mutex
}

// NewCLIReporter creates a reporter that writes to w.
func NewCLIReporter(w io.Writer) *CLIReporter {
	return &CLIReporter{w: w}
}

func (r *CLIReporter) StartPhase(phase Phase, totalItems int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "  [%d/%d] %-16s", phase.Index, phase.Total, phase.Name)
}

func (r *CLIReporter) Progress(phase Phase, completed int, totalItems int) {
	// For CLI, we overwrite the current line with progress
	r.mu.Lock()
	defer r.mu.Unlock()
	if totalItems > 0 {
		fmt.Fprintf(r.w, "\r  [%d/%d] %-16s %d/%d",
			phase.Index, phase.Total, phase.Name, completed, totalItems)
	}
}

func (r *CLIReporter) CompletePhase(phase Phase, totalItems int, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	label := fmt.Sprintf("%d items", totalItems)
	if totalItems == 0 {
		label = "skipped"
	}
	fmt.Fprintf(r.w, "\r  [%d/%d] %-16s %-20s done  (%s)\n",
		phase.Index, phase.Total, phase.Name, label, formatDuration(elapsed))
}

func (r *CLIReporter) Warn(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "  Warning: %s\n", msg)
}

// NopReporter discards all progress updates (used in tests and --json mode).
type NopReporter struct{}

func (NopReporter) StartPhase(Phase, int)                   {}
func (NopReporter) Progress(Phase, int, int)                {}
func (NopReporter) CompletePhase(Phase, int, time.Duration) {}
func (NopReporter) Warn(string)                             {}

// CaptureReporter records warnings and phase names so tests can assert on
// them without parsing terminal output.
type CaptureReporter struct {
	mu       sync.Mutex
	Phases   []string
	Warnings []string
}

func (c *CaptureReporter) StartPhase(phase Phase, totalItems int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Phases = append(c.Phases, phase.Name)
}

func (c *CaptureReporter) Progress(Phase, int, int) {}

func (c *CaptureReporter) CompletePhase(Phase, int, time.Duration) {}

func (c *CaptureReporter) Warn(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Warnings = append(c.Warnings, msg)
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// SourceType identifies what a source argument points at.
type SourceType int

const (
	SourceUnknown   SourceType = iota
	SourcePostgres             // Generic Postgres connection
	SourceSupabase             // Supabase-hosted Postgres connection
	SourceExportDir            // Local export directory of artifacts
)

func (s SourceType) String() string {
	switch s {
	case SourcePostgres:
		return "PostgreSQL"
	case SourceSupabase:
		return "Supabase"
	case SourceExportDir:
		return "export directory"
	default:
		return "unknown"
	}
}

// DetectSource determines the source type from a --source/--dir style value.
//
// Detection rules:
//   - postgres:// or postgresql:// URL containing "supabase" → Supabase
//   - any other postgres:// or postgresql:// URL → generic Postgres
//   - anything without a URL scheme → local export directory
func DetectSource(from string) SourceType {
	if strings.HasPrefix(from, "postgres://") || strings.HasPrefix(from, "postgresql://") {
		if strings.Contains(from, "supabase") {
			return SourceSupabase
		}
		return SourcePostgres
	}
	if !strings.Contains(from, "://") {
		return SourceExportDir
	}
	return SourceUnknown
}

// AnalysisReport summarizes a source before an export or clone proceeds.
type AnalysisReport struct {
	SourceType string   `json:"sourceType"`
	SourceInfo string   `json:"sourceInfo"` // e.g., "PostgreSQL 16.3, 2 schemas"
	Schemas    []string `json:"schemas,omitempty"`
	Tables     int      `json:"tables"`
	Views      int      `json:"views"`
	Rows       int64    `json:"rows"`
	Functions  int      `json:"functions"`
	Triggers   int      `json:"triggers"`
	Sequences  int      `json:"sequences"`
	Extensions int      `json:"extensions"`
	Warnings   []string `json:"warnings,omitempty"`
}

// PrintReport writes a formatted pre-flight report to w.
func (r *AnalysisReport) PrintReport(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Migration Report — %s\n", r.SourceType)
	fmt.Fprintln(w)
	if r.SourceInfo != "" {
		fmt.Fprintf(w, "  Source: %s\n", r.SourceInfo)
		fmt.Fprintln(w)
	}
	if len(r.Schemas) > 0 {
		fmt.Fprintf(w, "  Schemas:      %s\n", strings.Join(r.Schemas, ", "))
	}

	fmt.Fprintf(w, "  Tables:       %d\n", r.Tables)
	if r.Views > 0 {
		fmt.Fprintf(w, "  Views:        %d\n", r.Views)
	}
	fmt.Fprintf(w, "  Rows:         %d\n", r.Rows)
	if r.Functions > 0 {
		fmt.Fprintf(w, "  Functions:    %d\n", r.Functions)
	}
	if r.Triggers > 0 {
		fmt.Fprintf(w, "  Triggers:     %d\n", r.Triggers)
	}
	if r.Sequences > 0 {
		fmt.Fprintf(w, "  Sequences:    %d\n", r.Sequences)
	}
	if r.Extensions > 0 {
		fmt.Fprintf(w, "  Extensions:   %d\n", r.Extensions)
	}
	fmt.Fprintln(w)

	if len(r.Warnings) > 0 {
		fmt.Fprintln(w, "  Warnings:")
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "    - %s\n", warn)
		}
		fmt.Fprintln(w)
	}
}

// FormatBytes formats a byte count as a human-readable string (B, KB, MB, GB).
func FormatBytes(b int64) string {
	switch {
	case b >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(b)/(1<<30))
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// ValidationSummary compares source and target counts after a clone.
type ValidationSummary struct {
	SourceLabel string
	TargetLabel string
	Rows        []ValidationRow
	Warnings    []string
}

// ValidationRow is a single line in the validation summary.
type ValidationRow struct {
	Label       string
	SourceCount int64
	TargetCount int64
}

// PrintSummary writes a formatted validation summary to w.
func (v *ValidationSummary) PrintSummary(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Validation Summary")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %-28s  %-20s\n", v.SourceLabel, v.TargetLabel)
	fmt.Fprintf(w, "  %-28s  %-20s\n", strings.Repeat("-", 24), strings.Repeat("-", 16))

	allMatch := true
	for _, row := range v.Rows {
		match := "ok"
		if row.SourceCount != row.TargetCount {
			match = "MISMATCH"
			allMatch = false
		}
		fmt.Fprintf(w, "  %-16s %6d  ->  %6d  %s\n",
			row.Label, row.SourceCount, row.TargetCount, match)
	}
	fmt.Fprintln(w)

	if allMatch {
		fmt.Fprintln(w, "  All counts match.")
	}

	if len(v.Warnings) > 0 {
		fmt.Fprintln(w, "  Warnings:")
		for _, warn := range v.Warnings {
			fmt.Fprintf(w, "    - %s\n", warn)
		}
	}
	fmt.Fprintln(w)
}

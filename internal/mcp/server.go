// Package mcp implements a Model Context Protocol server for pgporter.
// It exposes database analysis, export inspection, import planning, and
// run history as MCP tools so AI coding assistants can drive migrations
// through structured tool calls.
package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/pgporter/pgporter/internal/catalog"
	"github.com/pgporter/pgporter/internal/dbconn"
	"github.com/pgporter/pgporter/internal/export"
	"github.com/pgporter/pgporter/internal/history"
	"github.com/pgporter/pgporter/internal/replay"
)

// Config holds server-wide defaults for the MCP tools.
type Config struct {
	// SourceURL is the default database URL for analyze_database.
	SourceURL string
	// HistoryPath is the run ledger location (empty = default).
	HistoryPath string
	// Version is the pgporter build version.
	Version string
}

// NewServer creates the pgporter MCP server.
func NewServer(cfg Config) *mcp.Server {
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "pgporter-mcp",
		Title:   "pgporter MCP Server",
		Version: cfg.Version,
	}, &mcp.ServerOptions{
		Instructions: "pgporter MCP server — analyze PostgreSQL databases, inspect export " +
			"artifacts, plan idempotent imports, and review migration run history.",
	})

	registerTools(server, cfg)
	return server
}

// --- Input/Output types for tools ---

type AnalyzeDatabaseInput struct {
	URL     string   `json:"url,omitempty" jsonschema:"PostgreSQL connection URL (defaults to the configured source)"`
	Schemas []string `json:"schemas,omitempty" jsonschema:"Schemas to analyze (default: all user schemas)"`
}
type AnalyzeDatabaseOutput struct {
	ServerVersion string   `json:"serverVersion"`
	Schemas       []string `json:"schemas"`
	Tables        int      `json:"tables"`
	Views         int      `json:"views"`
	Rows          int64    `json:"rows"`
	Functions     int      `json:"functions"`
	Triggers      int      `json:"triggers"`
	Sequences     int      `json:"sequences"`
	Extensions    int      `json:"extensions"`
}

type InspectExportInput struct {
	Dir string `json:"dir" jsonschema:"Export directory containing manifest.json"`
}
type InspectExportOutput struct {
	RunID     string          `json:"runId"`
	Source    string          `json:"source"`
	Format    string          `json:"format"`
	Schemas   []SchemaSummary `json:"schemas"`
	Artifacts []string        `json:"artifacts"`
	Warnings  []string        `json:"warnings,omitempty"`
}
type SchemaSummary struct {
	Name       string   `json:"name"`
	TableOrder []string `json:"tableOrder"`
	TotalRows  int64    `json:"totalRows"`
	Functions  int      `json:"functions"`
	Triggers   int      `json:"triggers"`
	Views      int      `json:"views"`
}

type PlanImportInput struct {
	Dir    string `json:"dir" jsonschema:"Export directory to plan an import from"`
	Schema string `json:"schema,omitempty" jsonschema:"Schema to plan (default public)"`
}
type PlanImportOutput struct {
	Steps []PlanStep `json:"steps"`
}
type PlanStep struct {
	Rank     int    `json:"rank"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

type RunHistoryInput struct {
	Limit int   `json:"limit,omitempty" jsonschema:"Maximum runs to return (default 20)"`
	RunID int64 `json:"runId,omitempty" jsonschema:"Return one run with its steps instead of a listing"`
}
type RunHistoryOutput struct {
	Runs []history.Run `json:"runs"`
}

// --- Tool registration ---

func registerTools(s *mcp.Server, cfg Config) {
	mcp.AddTool(s, &mcp.Tool{
		Name:        "analyze_database",
		Description: "Connect to a PostgreSQL database and inventory its tables, views, functions, triggers, sequences, and row counts",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in AnalyzeDatabaseInput) (*mcp.CallToolResult, AnalyzeDatabaseOutput, error) {
		return handleAnalyzeDatabase(ctx, cfg, in)
	})

	mcp.AddTool(s, &mcp.Tool{
		Name:        "inspect_export",
		Description: "Read the manifest and artifact listing of a pgporter export directory",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in InspectExportInput) (*mcp.CallToolResult, InspectExportOutput, error) {
		return handleInspectExport(ctx, in)
	})

	mcp.AddTool(s, &mcp.Tool{
		Name:        "plan_import",
		Description: "Return the ordered, idempotent step plan an import of an export directory would execute",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in PlanImportInput) (*mcp.CallToolResult, PlanImportOutput, error) {
		return handlePlanImport(ctx, in)
	})

	mcp.AddTool(s, &mcp.Tool{
		Name:        "run_history",
		Description: "List recent pgporter runs from the local history ledger, or show one run's steps",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in RunHistoryInput) (*mcp.CallToolResult, RunHistoryOutput, error) {
		return handleRunHistory(ctx, cfg, in)
	})
}

// --- Tool handlers ---

func handleAnalyzeDatabase(ctx context.Context, cfg Config, in AnalyzeDatabaseInput) (*mcp.CallToolResult, AnalyzeDatabaseOutput, error) {
	url := in.URL
	if url == "" {
		url = cfg.SourceURL
	}
	if url == "" {
		return nil, AnalyzeDatabaseOutput{}, fmt.Errorf("no database URL: pass url or configure source.url")
	}

	db, err := dbconn.Open(ctx, url)
	if err != nil {
		return nil, AnalyzeDatabaseOutput{}, err
	}
	defer db.Close()

	version, err := db.ServerVersion(ctx)
	if err != nil {
		return nil, AnalyzeDatabaseOutput{}, err
	}

	report, err := catalog.Analyze(ctx, db.DB, in.Schemas)
	if err != nil {
		return nil, AnalyzeDatabaseOutput{}, err
	}

	return nil, AnalyzeDatabaseOutput{
		ServerVersion: version,
		Schemas:       report.Schemas,
		Tables:        report.Tables,
		Views:         report.Views,
		Rows:          report.Rows,
		Functions:     report.Functions,
		Triggers:      report.Triggers,
		Sequences:     report.Sequences,
		Extensions:    report.Extensions,
	}, nil
}

func handleInspectExport(ctx context.Context, in InspectExportInput) (*mcp.CallToolResult, InspectExportOutput, error) {
	m, err := export.ReadManifest(in.Dir)
	if err != nil {
		return nil, InspectExportOutput{}, err
	}

	out := InspectExportOutput{
		RunID:    m.RunID,
		Source:   m.Source,
		Format:   string(m.Format),
		Warnings: m.Warnings,
	}
	for _, sm := range m.Schemas {
		summary := SchemaSummary{
			Name:       sm.Name,
			TableOrder: sm.TableOrder,
			Functions:  sm.Functions,
			Triggers:   sm.Triggers,
			Views:      sm.Views,
		}
		for _, n := range sm.RowCounts {
			summary.TotalRows += n
		}
		out.Schemas = append(out.Schemas, summary)
	}

	out.Artifacts, err = listArtifacts(in.Dir)
	if err != nil {
		return nil, InspectExportOutput{}, err
	}
	return nil, out, nil
}

// listArtifacts returns export-relative paths of every artifact file.
func listArtifacts(dir string) ([]string, error) {
	var artifacts []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		artifacts = append(artifacts, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing artifacts: %w", err)
	}
	sort.Strings(artifacts)
	return artifacts, nil
}

func handlePlanImport(ctx context.Context, in PlanImportInput) (*mcp.CallToolResult, PlanImportOutput, error) {
	schema := in.Schema
	if schema == "" {
		schema = "public"
	}
	steps, err := replay.Plan(in.Dir, schema)
	if err != nil {
		return nil, PlanImportOutput{}, err
	}

	out := PlanImportOutput{Steps: make([]PlanStep, 0, len(steps))}
	for _, step := range steps {
		out.Steps = append(out.Steps, PlanStep{
			Rank:     step.Rank,
			Name:     step.Name,
			Category: string(step.Category),
		})
	}
	return nil, out, nil
}

func handleRunHistory(ctx context.Context, cfg Config, in RunHistoryInput) (*mcp.CallToolResult, RunHistoryOutput, error) {
	path := cfg.HistoryPath
	if path == "" {
		var err error
		if path, err = history.DefaultPath(); err != nil {
			return nil, RunHistoryOutput{}, err
		}
	}

	ledger, err := history.Open(path)
	if err != nil {
		return nil, RunHistoryOutput{}, err
	}
	defer ledger.Close()

	if in.RunID > 0 {
		run, err := ledger.Show(ctx, in.RunID)
		if err != nil {
			return nil, RunHistoryOutput{}, err
		}
		return nil, RunHistoryOutput{Runs: []history.Run{*run}}, nil
	}

	runs, err := ledger.List(ctx, in.Limit)
	if err != nil {
		return nil, RunHistoryOutput{}, err
	}
	return nil, RunHistoryOutput{Runs: runs}, nil
}

package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ManifestName is the export run's self-description file inside the export
// directory. It is informational: replay order authority stays with the
// planner's file-discovery contract.
const ManifestName = "manifest.json"

// Manifest describes one export run.
type Manifest struct {
	RunID      string           `json:"run_id"`
	Version    string           `json:"version"`
	Source     string           `json:"source"` // credentials stripped
	Format     Format           `json:"format"`
	Schemas    []SchemaManifest `json:"schemas"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Warnings   []string         `json:"warnings,omitempty"`
}

// SchemaManifest records the captured table order and row counts for one schema.
type SchemaManifest struct {
	Name       string           `json:"name"`
	TableOrder []string         `json:"table_order"` // dependency-resolved order at export time
	RowCounts  map[string]int64 `json:"row_counts"`
	Functions  int              `json:"functions"`
	Triggers   int              `json:"triggers"`
	Views      int              `json:"views"`
}

// Write serializes the manifest into dir.
func (m *Manifest) Write(dir string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	path := filepath.Join(dir, ManifestName)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// ReadManifest loads a manifest from an export directory.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return &m, nil
}

package replay

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pgporter/pgporter/internal/export"
)

// Plan discovers the artifacts for schema under dir and orders them into an
// executable step list: schema, then functions, then triggers, then one data
// step per table in lexical filename order. The exporter writes data files
// in dependency order, so lexical order is already FK-safe; the files also
// carry the session_replication_role preamble as a second line of defense.
//
// Missing schema/functions/triggers artifacts are simply omitted. An export
// directory with no recognizable artifacts yields an empty plan, which the
// executor treats as a no-op. A missing directory is an error.
func Plan(dir, schema string) ([]Step, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("migration directory %s: %w", dir, err)
	}

	var steps []Step
	rank := 1
	add := func(name, file string, cat Category) {
		path := filepath.Join(dir, file)
		if _, err := os.Stat(path); err != nil {
			return
		}
		steps = append(steps, Step{Name: name, Path: path, Rank: rank, Category: cat})
		rank++
	}

	add("schema", export.SchemaArtifactName(schema), CategorySchema)
	add("functions", export.FunctionsArtifactName(schema), CategoryFunctions)
	add("triggers", export.TriggersArtifactName(schema), CategoryTriggers)

	dataSteps, err := planData(dir, schema, rank)
	if err != nil {
		return nil, err
	}
	return append(steps, dataSteps...), nil
}

// planData lists data/<schema>.<table>.sql files in lexical order. JSON data
// artifacts are not replayable as statements and are skipped here; importing
// a JSON export is a documented limitation of the replay path.
func planData(dir, schema string, rank int) ([]Step, error) {
	dataDir := filepath.Join(dir, "data")
	entries, err := os.ReadDir(dataDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading data directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, schema+".") || !strings.HasSuffix(name, ".sql") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	steps := make([]Step, 0, len(names))
	for _, name := range names {
		table := strings.TrimSuffix(name, ".sql")
		steps = append(steps, Step{
			Name:     "data " + table,
			Path:     filepath.Join(dataDir, name),
			Rank:     rank,
			Category: CategoryData,
		})
		rank++
	}
	return steps, nil
}

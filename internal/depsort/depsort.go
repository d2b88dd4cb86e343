// Package depsort orders the tables of a schema so that foreign-key
// targets appear before the tables that reference them.
package depsort

import (
	"context"
	"fmt"
	"sort"

	"github.com/pgporter/pgporter/internal/catalog"
	"github.com/pgporter/pgporter/internal/dbconn"
	"github.com/pgporter/pgporter/internal/progress"
)

// maxDepth caps the chain computation so cyclic graphs always terminate.
const maxDepth = 20

// Edge records that table From holds a foreign key referencing table To.
// Both tables live in the same schema; self-references carry no ordering
// information and are ignored.
type Edge struct {
	From string
	To   string
}

// Order returns tables sorted so that, wherever the foreign-key graph
// permits, a referenced table precedes every table referencing it. Tables
// whose dependencies cannot be resolved within maxDepth passes (cycles,
// or chains longer than the cap) are appended after the resolved tables
// in alphabetical order. Every input table appears exactly once.
//
// This is a pure function with no DB dependencies, easy to unit test.
func Order(tables []string, edges []Edge) []string {
	inSet := make(map[string]bool, len(tables))
	for _, t := range tables {
		inSet[t] = true
	}

	// deps maps a table to the distinct tables it references. Edges with
	// an endpoint outside the table set and self-references are dropped.
	deps := make(map[string]map[string]bool, len(tables))
	for _, e := range edges {
		if e.From == e.To || !inSet[e.From] || !inSet[e.To] {
			continue
		}
		if deps[e.From] == nil {
			deps[e.From] = make(map[string]bool)
		}
		deps[e.From][e.To] = true
	}

	// A table's depth is the length of its longest resolved dependency
	// chain. Tables with no dependencies settle at depth 0 on the first
	// pass; each later pass settles tables whose dependencies all have a
	// depth already.
	depth := make(map[string]int, len(tables))
	for pass := 0; pass < maxDepth; pass++ {
		progressed := false
		for _, t := range tables {
			if _, done := depth[t]; done {
				continue
			}
			d := 0
			resolved := true
			for dep := range deps[t] {
				dd, ok := depth[dep]
				if !ok {
					resolved = false
					break
				}
				if dd+1 > d {
					d = dd + 1
				}
			}
			if resolved {
				depth[t] = d
				progressed = true
			}
		}
		if !progressed {
			break
		}
	}

	resolved := make([]string, 0, len(tables))
	unresolved := make([]string, 0)
	for _, t := range tables {
		if _, ok := depth[t]; ok {
			resolved = append(resolved, t)
		} else {
			unresolved = append(unresolved, t)
		}
	}
	sort.Slice(resolved, func(i, j int) bool {
		di, dj := depth[resolved[i]], depth[resolved[j]]
		if di != dj {
			return di < dj
		}
		return resolved[i] < resolved[j]
	})
	sort.Strings(unresolved)

	return append(resolved, unresolved...)
}

// ForeignKeyEdges reads the foreign-key pairs whose source and target
// tables both live in schema.
func ForeignKeyEdges(ctx context.Context, db *dbconn.DB, schema string) ([]Edge, error) {
	const q = `
		SELECT src.relname, dst.relname
		FROM pg_constraint c
		JOIN pg_class src ON src.oid = c.conrelid
		JOIN pg_class dst ON dst.oid = c.confrelid
		JOIN pg_namespace sn ON sn.oid = src.relnamespace
		JOIN pg_namespace dn ON dn.oid = dst.relnamespace
		WHERE c.contype = 'f' AND sn.nspname = $1 AND dn.nspname = $1`
	rows, err := db.QueryContext(ctx, q, schema)
	if err != nil {
		return nil, fmt.Errorf("querying foreign keys in %s: %w", schema, err)
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.From, &e.To); err != nil {
			return nil, fmt.Errorf("scanning foreign key edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// Resolve lists every base table in schema in foreign-key-safe order.
// When the dependency metadata cannot be read the export must still
// proceed, so Resolve degrades to a plain alphabetical listing and
// reports a warning instead of failing.
func Resolve(ctx context.Context, db *dbconn.DB, schema string, rep progress.Reporter) ([]string, error) {
	tables, err := catalog.TableNames(ctx, db.DB, schema)
	if err != nil {
		return nil, fmt.Errorf("listing tables in %s: %w", schema, err)
	}
	edges, err := ForeignKeyEdges(ctx, db, schema)
	if err != nil {
		rep.Warn(fmt.Sprintf("dependency analysis for schema %s failed, falling back to alphabetical order: %v", schema, err))
		sorted := append([]string(nil), tables...)
		sort.Strings(sorted)
		return sorted, nil
	}
	return Order(tables, edges), nil
}

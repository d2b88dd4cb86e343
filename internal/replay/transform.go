package replay

import (
	"fmt"
	"regexp"
	"strings"
)

// The rewrites below are textual, pattern-based, and deliberately canonical:
// each pattern matches both the raw and the already-rewritten form and
// replaces it with one canonical spelling, so applying a transform twice
// yields the same text as applying it once.
var (
	// CREATE SCHEMA x and CREATE SCHEMA IF NOT EXISTS x both collapse to
	// the IF NOT EXISTS form.
	createSchemaRe = regexp.MustCompile(`(?i)\bCREATE\s+SCHEMA\s+(IF\s+NOT\s+EXISTS\s+)?`)

	// CREATE FUNCTION and CREATE OR REPLACE FUNCTION both collapse to
	// CREATE OR REPLACE FUNCTION.
	createFunctionRe = regexp.MustCompile(`(?i)\bCREATE\s+(OR\s+REPLACE\s+)?FUNCTION\b`)

	// Matches a pg_get_triggerdef-style statement and captures the trigger
	// name and target table. The first " ON " after the event list is the
	// table clause.
	createTriggerRe = regexp.MustCompile(`(?i)^\s*CREATE\s+(?:CONSTRAINT\s+)?TRIGGER\s+(\S+)\s.*?\sON\s+(\S+)`)
)

// Transform rewrites raw artifact text for its category so that replaying it
// against a target that already holds some of the objects does not abort the
// run. Objects not mentioned in the text are never touched, and the
// transform is idempotent: Transform(cat, Transform(cat, s)) == Transform(cat, s).
func Transform(category Category, raw string) string {
	switch category {
	case CategorySchema:
		return createSchemaRe.ReplaceAllString(raw, "CREATE SCHEMA IF NOT EXISTS ")
	case CategoryFunctions:
		return createFunctionRe.ReplaceAllString(raw, "CREATE OR REPLACE FUNCTION")
	case CategoryTriggers:
		return injectTriggerDrops(raw)
	default:
		// Data artifacts are already conflict tolerant; pass through.
		return raw
	}
}

// injectTriggerDrops precedes every CREATE TRIGGER statement with a matching
// DROP TRIGGER IF EXISTS, so replay always installs the latest definition.
// A DROP already present immediately before the CREATE is not duplicated.
func injectTriggerDrops(raw string) string {
	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines)+8)

	lastStatement := ""
	for _, line := range lines {
		if m := createTriggerRe.FindStringSubmatch(line); m != nil {
			drop := fmt.Sprintf("DROP TRIGGER IF EXISTS %s ON %s;", m[1], m[2])
			if lastStatement != drop {
				out = append(out, drop)
			}
		}
		out = append(out, line)
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lastStatement = trimmed
		}
	}
	return strings.Join(out, "\n")
}

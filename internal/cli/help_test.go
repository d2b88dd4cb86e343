package cli

import (
	"testing"

	"github.com/pgporter/pgporter/internal/testutil"
)

func TestSplitFlagLine(t *testing.T) {
	parts := splitFlagLine("--dir string   Output directory")
	testutil.SliceLen(t, parts, 2)
	testutil.Equal(t, "--dir string", parts[0])
	testutil.Equal(t, "Output directory", parts[1])
}

func TestSplitFlagLineNoDescription(t *testing.T) {
	parts := splitFlagLine("--dry-run")
	testutil.SliceLen(t, parts, 1)
	testutil.Equal(t, "--dry-run", parts[0])
}

func TestColorizeFlagPlainWhenDisabled(t *testing.T) {
	line := "      --dir string   Output directory"
	testutil.Equal(t, line, colorizeFlag(line, false))
}

func TestFirstNonEmpty(t *testing.T) {
	testutil.Equal(t, "a", firstNonEmpty("", "a", "b"))
	testutil.Equal(t, "", firstNonEmpty("", ""))
	testutil.Equal(t, "x", firstNonEmpty("x"))
}

func TestRootCommandGroups(t *testing.T) {
	byName := map[string]string{}
	for _, sub := range rootCmd.Commands() {
		byName[sub.Name()] = sub.GroupID
	}
	testutil.Equal(t, groupMigrate, byName["export"])
	testutil.Equal(t, groupMigrate, byName["import"])
	testutil.Equal(t, groupMigrate, byName["clone"])
	testutil.Equal(t, groupInspect, byName["analyze"])
	testutil.Equal(t, groupConfig, byName["version"])
}

package cli

import (
	"fmt"

	"github.com/pgporter/pgporter/internal/cli/ui"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print pgporter version",
	Run: func(cmd *cobra.Command, args []string) {
		if jsonOut(cmd) {
			printJSON(map[string]any{
				"version": buildVersion,
				"commit":  buildCommit,
				"date":    buildDate,
			})
			return
		}
		fmt.Printf("%s pgporter %s (commit: %s, built: %s)\n", ui.BrandEmoji, buildVersion, buildCommit, buildDate)
	},
}

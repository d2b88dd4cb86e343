package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pgporter/pgporter/internal/cli/ui"
	"github.com/pgporter/pgporter/internal/fndeploy"
)

var functionsCmd = &cobra.Command{
	Use:   "functions",
	Short: "Edge function operations",
}

var functionsDeployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy edge functions to a target project",
	Long: `Deploy invokes the platform CLI once per function directory. A function
is a subdirectory of --src containing an index.ts or index.js entrypoint.
Individual deploy failures are reported and the rest still deploy.

  pgporter functions deploy --src ./supabase/functions --project-ref abcd1234

The access token is read from SUPABASE_ACCESS_TOKEN (or --token) and passed
to the CLI via its environment, never on the command line.`,
	RunE: runFunctionsDeploy,
}

func init() {
	functionsDeployCmd.Flags().String("src", "", "Directory containing one subdirectory per function")
	functionsDeployCmd.Flags().String("project-ref", "", "Target project ref")
	functionsDeployCmd.Flags().String("token", "", "Access token (or set SUPABASE_ACCESS_TOKEN)")
	functionsDeployCmd.Flags().Bool("dry-run", false, "List functions that would deploy")

	functionsCmd.AddCommand(functionsDeployCmd)
}

func runFunctionsDeploy(cmd *cobra.Command, args []string) error {
	src, _ := cmd.Flags().GetString("src")
	projectRef, _ := cmd.Flags().GetString("project-ref")
	token, _ := cmd.Flags().GetString("token")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	if token == "" {
		token = os.Getenv("SUPABASE_ACCESS_TOKEN")
	}

	deployer, err := fndeploy.New(fndeploy.Options{
		SourceDir:   src,
		ProjectRef:  projectRef,
		AccessToken: token,
		DryRun:      dryRun,
		Progress:    newReporter(cmd),
	})
	if err != nil {
		return err
	}

	stats, err := deployer.Run(cmd.Context())
	if err != nil {
		return err
	}

	if jsonOut(cmd) {
		return printJSON(stats)
	}
	fmt.Printf("\n  %s Deployed %d functions\n", ui.StyleSuccess.Render(ui.SymbolCheck), stats.Deployed)
	if len(stats.Errors) > 0 {
		fmt.Printf("  %s %d functions failed to deploy\n",
			ui.StyleWarning.Render(ui.SymbolWarning), len(stats.Errors))
	}
	return nil
}

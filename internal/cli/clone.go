package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pgporter/pgporter/internal/cli/ui"
	"github.com/pgporter/pgporter/internal/clone"
	"github.com/pgporter/pgporter/internal/dbconn"
	"github.com/pgporter/pgporter/internal/history"
	"github.com/pgporter/pgporter/internal/notify"
)

var cloneCmd = &cobra.Command{
	Use:   "clone",
	Short: "Copy schema, functions, triggers, and data directly between databases",
	Long: `Clone connects to both databases and copies everything across without
intermediate files: schema objects first, then functions, then data in
foreign-key-safe order, then triggers (so loading never fires them), and
finally sequence values. Objects and rows that already exist in the target
are skipped, so a clone can be re-run.

  pgporter clone --source postgresql://.../app --target postgresql://.../new`,
	RunE: runClone,
}

func init() {
	cloneCmd.Flags().String("source", "", "Source PostgreSQL URL (or PGPORTER_SOURCE_URL / source.url)")
	cloneCmd.Flags().String("target", "", "Target PostgreSQL URL (or PGPORTER_TARGET_URL / target.url)")
	cloneCmd.Flags().String("schema", "public", "Schema to clone")
	cloneCmd.Flags().StringSlice("tables", nil, "Only clone these tables (comma separated)")
	cloneCmd.Flags().Bool("skip-data", false, "Clone DDL only, no rows")
	cloneCmd.Flags().Bool("skip-functions", false, "Do not clone functions")
	cloneCmd.Flags().Bool("skip-triggers", false, "Do not clone triggers")
	cloneCmd.Flags().Bool("dry-run", false, "Report what would be cloned without writing")
	cloneCmd.Flags().Bool("validate", false, "Compare source and target row counts after cloning")
}

func runClone(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	sourceFlag, _ := cmd.Flags().GetString("source")
	targetFlag, _ := cmd.Flags().GetString("target")
	schema, _ := cmd.Flags().GetString("schema")
	tables, _ := cmd.Flags().GetStringSlice("tables")
	skipData, _ := cmd.Flags().GetBool("skip-data")
	skipFunctions, _ := cmd.Flags().GetBool("skip-functions")
	skipTriggers, _ := cmd.Flags().GetBool("skip-triggers")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	validate, _ := cmd.Flags().GetBool("validate")

	sourceURL := firstNonEmpty(sourceFlag, cfg.Source.URL)
	targetURL := firstNonEmpty(targetFlag, cfg.Target.URL)
	if sourceURL == "" {
		return fmt.Errorf("no source database: pass --source, set PGPORTER_SOURCE_URL, or configure source.url")
	}
	if targetURL == "" {
		return fmt.Errorf("no target database: pass --target, set PGPORTER_TARGET_URL, or configure target.url")
	}

	ctx := cmd.Context()

	sp := ui.NewStepSpinner(os.Stderr, !ui.StderrIsTTY())
	sp.Start("Connecting to source and target")
	cloner, err := clone.New(ctx, clone.Options{
		SourceURL:     sourceURL,
		TargetURL:     targetURL,
		Schema:        schema,
		Tables:        tables,
		SkipData:      skipData,
		SkipFunctions: skipFunctions,
		SkipTriggers:  skipTriggers,
		DryRun:        dryRun,
		Progress:      newReporter(cmd),
		Output:        os.Stderr,
	})
	if err != nil {
		sp.Fail()
		return err
	}
	sp.Done()
	defer cloner.Close()

	started := time.Now()
	stats, err := cloner.Run(ctx)
	finished := time.Now()
	if err != nil {
		return err
	}

	if !dryRun {
		recordRun(ctx, cfg, history.Run{
			RunID:      uuid.NewString(),
			Command:    "clone",
			Source:     dbconn.Redact(sourceURL),
			Target:     dbconn.Redact(targetURL),
			Succeeded:  len(stats.Errors) == 0,
			Tables:     stats.Tables,
			Rows:       stats.Rows,
			Errors:     stats.Errors,
			StartedAt:  started,
			FinishedAt: finished,
		})
		notifyRun(ctx, cfg, notify.RunSummary{
			Command:    "clone",
			Succeeded:  len(stats.Errors) == 0,
			Source:     dbconn.Redact(sourceURL),
			Target:     dbconn.Redact(targetURL),
			Tables:     stats.Tables,
			Rows:       stats.Rows,
			Errors:     stats.Errors,
			Duration:   stats.Duration,
			FinishedAt: finished,
		})
	}

	if validate && !dryRun {
		summary, err := cloner.Validate(ctx, nil)
		if err != nil {
			fmt.Fprint(os.Stderr, ui.FormatWarning(fmt.Sprintf("validation failed: %v", err)))
		} else if !jsonOut(cmd) {
			summary.PrintSummary(os.Stdout)
		}
	}

	if jsonOut(cmd) {
		return printJSON(stats)
	}

	fmt.Printf("\n  %s Cloned %d tables (%d rows), %d functions, %d triggers; %d sequences reset\n",
		ui.StyleSuccess.Render(ui.SymbolCheck),
		stats.Tables, stats.Rows, stats.Functions, stats.Triggers, stats.SequencesReset)
	if len(stats.Errors) > 0 {
		fmt.Printf("  %s %d objects or rows could not be copied\n",
			ui.StyleWarning.Render(ui.SymbolWarning), len(stats.Errors))
	}
	return nil
}

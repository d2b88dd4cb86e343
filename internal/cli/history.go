package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/pgporter/pgporter/internal/cli/ui"
	"github.com/pgporter/pgporter/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent pgporter runs",
	RunE:  runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show one run with its steps",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

func init() {
	historyCmd.Flags().Int("limit", 20, "Maximum runs to list")
	historyCmd.AddCommand(historyShowCmd)
}

func openLedger(cmd *cobra.Command) (*history.Ledger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	path := cfg.History.Path
	if path == "" {
		if path, err = history.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return history.Open(path)
}

func runHistory(cmd *cobra.Command, args []string) error {
	ledger, err := openLedger(cmd)
	if err != nil {
		return err
	}
	defer ledger.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := ledger.List(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if jsonOut(cmd) {
		return printJSON(runs)
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return nil
	}
	fmt.Printf("  %-5s %-8s %-9s %-7s %10s  %s\n", "ID", "COMMAND", "STATUS", "TABLES", "ROWS", "FINISHED")
	for _, run := range runs {
		status := ui.StyleSuccess.Render("ok")
		if !run.Succeeded {
			status = ui.StyleError.Render("failed")
		}
		fmt.Printf("  %-5d %-8s %-9s %-7d %10d  %s\n",
			run.ID, run.Command, status, run.Tables, run.Rows,
			run.FinishedAt.Local().Format(time.DateTime))
	}
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid run id %q", args[0])
	}

	ledger, err := openLedger(cmd)
	if err != nil {
		return err
	}
	defer ledger.Close()

	run, err := ledger.Show(cmd.Context(), id)
	if err != nil {
		return err
	}

	if jsonOut(cmd) {
		return printJSON(run)
	}

	outcome := ui.StyleSuccess.Render("succeeded")
	if !run.Succeeded {
		outcome = ui.StyleError.Render("failed")
	}
	fmt.Printf("\n  Run %d — %s %s\n", run.ID, run.Command, outcome)
	if run.Source != "" {
		fmt.Printf("  Source:   %s\n", run.Source)
	}
	if run.Target != "" {
		fmt.Printf("  Target:   %s\n", run.Target)
	}
	fmt.Printf("  Finished: %s (%s)\n\n",
		run.FinishedAt.Local().Format(time.DateTime),
		run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))

	for _, step := range run.Steps {
		symbol := ui.StyleSuccess.Render(ui.SymbolCheck)
		switch step.Status {
		case "failed":
			symbol = ui.StyleError.Render(ui.SymbolCross)
		case "skipped":
			symbol = ui.StyleDim.Render(ui.SymbolDot)
		}
		fmt.Printf("  %s %-32s %s (%dms)\n", symbol, step.Name, step.Status, step.DurationMS)
		if step.Error != "" {
			fmt.Printf("      %s\n", ui.StyleError.Render(step.Error))
		}
	}
	for _, e := range run.Errors {
		fmt.Printf("  %s %s\n", ui.StyleWarning.Render(ui.SymbolWarning), e)
	}
	return nil
}

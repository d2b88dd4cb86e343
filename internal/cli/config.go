package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pgporter/pgporter/internal/cli/ui"
	"github.com/pgporter/pgporter/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage pgporter configuration",
	Long: `Manage the pgporter.toml configuration file. Without a subcommand,
prints the resolved configuration (defaults, file, and environment merged).`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved configuration as TOML",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented default pgporter.toml",
	RunE:  runConfigInit,
}

var configGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Get a configuration value by dotted key",
	Long: `Get a configuration value by dotted key path.
Examples: source.url, export.batch_size, notify.backend`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Set a configuration value in pgporter.toml",
	Long: `Set a configuration value in the pgporter.toml config file.
Creates the file if it doesn't exist.
Examples:
  pgporter config set source.url postgresql://localhost:5432/app
  pgporter config set export.batch_size 500
  pgporter config set notify.backend smtp`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
}

func configPath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = "pgporter.toml"
	}
	return path
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if jsonOut(cmd) {
		return printJSON(cfg)
	}
	out, err := cfg.ToTOML()
	if err != nil {
		return fmt.Errorf("serializing config: %w", err)
	}
	fmt.Print(out)
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath(cmd)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := config.GenerateDefault(path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Printf("  %s Wrote %s\n", ui.StyleSuccess.Render(ui.SymbolCheck), path)
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	value, err := config.GetValue(cfg, args[0])
	if err != nil {
		return err
	}

	if jsonOut(cmd) {
		return printJSON(map[string]any{"key": args[0], "value": value})
	}
	fmt.Println(value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	path := configPath(cmd)
	key, value := args[0], args[1]

	if !config.IsValidKey(key) {
		return fmt.Errorf("unknown configuration key: %s", key)
	}

	if err := config.SetValue(path, key, value); err != nil {
		return fmt.Errorf("setting config value: %w", err)
	}

	fmt.Printf("%s = %s\n", key, value)
	fmt.Printf("Written to %s\n", path)

	// Only warn on validation problems — the user may be setting values
	// incrementally.
	if _, err := config.Load(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	return nil
}

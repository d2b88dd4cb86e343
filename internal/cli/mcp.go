package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	pgportermcp "github.com/pgporter/pgporter/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP (Model Context Protocol) server",
	Long: `Start a Model Context Protocol server over stdio that exposes database
analysis, export inspection, import planning, and run history as tools for
AI coding assistants.

Configuration in Claude Desktop (claude_desktop_config.json):
  {
    "mcpServers": {
      "pgporter": {
        "command": "pgporter",
        "args": ["mcp"]
      }
    }
  }`,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	srv := pgportermcp.NewServer(pgportermcp.Config{
		SourceURL:   cfg.Source.URL,
		HistoryPath: cfg.History.Path,
		Version:     buildVersion,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}

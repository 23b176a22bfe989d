package cli

import (
	"fmt"

	"github.com/neilberkman/acctabs/cmd/acctabs/mcp"
	"github.com/neilberkman/acctabs/internal/core/logging"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "serve-mcp",
	Short: "Start MCP server exposing the account list",
	Long: `Start an MCP (Model Context Protocol) server over stdio that lets an
assistant list accounts and look one up. The server only reads the store.

Configure in your MCP client's config file:
  {
    "mcpServers": {
      "acctabs": {
        "command": "acctabs",
        "args": ["serve-mcp"]
      }
    }
  }
`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// stdout carries the protocol, so logs only go to the file
	logCfg := logging.DefaultConfig(cfg.LogPath())
	logCfg.Level = cfg.LogLevel
	logger, err := logging.New(logCfg)
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := mcp.StartServer(cfg.DBPath(), logger.Named("mcp")); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

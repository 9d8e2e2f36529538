package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"lockbox/internal/mcp"
)

func init() {
	rootCmd.AddCommand(mcpServerCmd)
}

// mcpServerCmd starts the MCP server for AI coding assistant integration
var mcpServerCmd = &cobra.Command{
	Use:   "mcp-server",
	Short: "Start the MCP server for AI assistant integration",
	Long: `Start the MCP server that gives AI assistants read-only access to vault
metadata. Sensitive values are never exposed in plaintext; at most their
masked form (e.g. "••••••••3456"), and only when the policy allows it.

Available tools:
  - item_list:       List items with labels and masked previews
  - item_search:     Search items by label and non-sensitive fields
  - item_get_masked: Get one item with sensitive values masked
  - category_list:   List category definitions

Authentication:
  Set LOCKBOX_PASSWORD environment variable before starting the server.
  The password is read once and immediately cleared from the environment.

Policy:
  Create mcp-policy.yaml in the vault directory to allow masked values and
  deny categories. Without a policy file, masked values are denied:

    version: 1
    default_action: allow
    denied_categories:
      - govId`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCPServer()
	},
}

func runMCPServer() error {
	server, err := mcp.NewServer(&mcp.ServerOptions{VaultPath: vaultPath})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	// Set up signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		cancel()
		server.Close()
	}()

	if err := server.Run(ctx); err != nil {
		// Don't report context canceled as an error
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("MCP server error: %w", err)
	}

	return nil
}

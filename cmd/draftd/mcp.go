package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fablesmithlabs/draftd/internal/mcp"
)

// mcpCmd serves the compose workflow as MCP tools over stdio. Stdout
// carries the protocol, so logs go to stderr.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve MCP tools over stdio",
	Long: `Serve the compose workflow as MCP tools over stdio, for use as an
agent or editor integration.

Examples:
  # Run against the default data directory
  draftd mcp

  # Run against a dedicated data directory
  DRAFTD_DATA_DIR=/tmp/draftd draftd mcp`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

// runMCP wires the dependency chain and blocks in the stdio server until
// the client disconnects or a shutdown signal arrives.
func runMCP(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, appOptions{logToStderr: true})
	if err != nil {
		return err
	}
	defer a.Close()

	srv, err := mcp.NewServer(&mcp.Config{
		Name:    "draftd",
		Version: version,
		Logger:  a.logger,
	}, a.manager, a.stories)
	if err != nil {
		return err
	}
	defer func() {
		if err := srv.Close(); err != nil {
			a.logger.Warn("mcp server close failed", zap.Error(err))
		}
	}()

	return srv.Run(ctx)
}

// Draftd is a drafting daemon for serialized fiction. Every chapter moves
// through a phased compose workflow (plot outline, chapter detail, final
// edit) with validation gates between phases and durable JSON state on disk.
//
// The workflow is exposed two ways: an HTTP/SSE API for editors and
// dashboards, and MCP tools over stdio for agent integration.
//
// Configuration is loaded from ~/.config/draftd/config.yaml plus DRAFTD_*
// environment variables. See internal/config for details.
//
// Usage:
//
//	# Start the HTTP server with defaults
//	draftd
//
//	# Start with an explicit config file
//	draftd serve --config /etc/draftd/config.yaml
//
//	# Speak MCP over stdio
//	draftd mcp
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// configPath is the --config flag value. Empty falls back to the
// DRAFTD_CONFIG environment variable, then the per-user default.
var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "draftd",
	Short: "Chapter drafting daemon with a phased compose workflow",
	Long: `draftd manages chapter composition for serialized fiction: every chapter
moves through plot outline, chapter detail, and final edit, with validation
gates between phases and durable state on disk.

Running draftd without a subcommand starts the HTTP server.`,
	Version: version,
	Args:    cobra.NoArgs,
	RunE:    runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default ~/.config/draftd/config.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveConfigPath returns the config file location: the --config flag
// wins, then DRAFTD_CONFIG, then empty for the per-user default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return os.Getenv("DRAFTD_CONFIG")
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fablesmithlabs/draftd/internal/http"
)

// serveCmd starts the HTTP server. Running draftd with no subcommand does
// the same.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the draftd HTTP server",
	Long: `Start the HTTP server with SSE streaming of compose state.

Examples:
  # Start with defaults (127.0.0.1:8787)
  draftd serve

  # Override the listen port
  DRAFTD_SERVER_PORT=9800 draftd serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

// runServe wires the dependency chain and blocks in the HTTP server until
// a shutdown signal arrives.
func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	srv, err := http.NewServer(a.cfg.Server, a.manager, a.stories, a.assistants, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	a.logger.Info("draftd serving",
		zap.String("addr", a.cfg.Server.Addr()),
		zap.String("version", version),
	)
	return srv.Start(ctx)
}

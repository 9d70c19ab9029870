// Package mcp exposes the compose workflow as MCP tools over stdio.
//
// This implementation uses the MCP SDK (github.com/modelcontextprotocol/go-sdk/mcp)
// and calls the compose manager and story service directly. Tools cover the
// workflow lifecycle (status, advance, revert, payload setters, progress) and
// story management (create, list, finalize).
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fablesmithlabs/draftd/internal/compose"
	"github.com/fablesmithlabs/draftd/internal/story"
)

// Server bridges MCP tool calls to the compose core.
type Server struct {
	mcp     *mcp.Server
	manager *compose.Manager
	stories *story.Service
	metrics *Metrics
	logger  *zap.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "draftd")
	Name string

	// Version is the server version (default: "0.1.0")
	Version string

	// Logger for structured logging
	Logger *zap.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "draftd",
		Version: "0.1.0",
		Logger:  zap.NewNop(),
	}
}

// NewServer creates an MCP server over the given compose manager and story
// service.
func NewServer(cfg *Config, manager *compose.Manager, stories *story.Service) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if manager == nil {
		return nil, fmt.Errorf("compose manager is required")
	}
	if stories == nil {
		return nil, fmt.Errorf("story service is required")
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		},
		nil,
	)

	s := &Server{
		mcp:     mcpServer,
		manager: manager,
		stories: stories,
		metrics: NewMetrics(cfg.Logger),
		logger:  cfg.Logger,
	}
	s.registerComposeTools()
	s.registerStoryTools()
	return s, nil
}

// Run starts the MCP server on the stdio transport and blocks until the
// context is canceled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	transport := &mcp.StdioTransport{}
	if err := s.mcp.Run(ctx, transport); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

// Close drops all live controllers. Persisted compose state is untouched.
func (s *Server) Close() error {
	s.logger.Info("closing MCP server")
	s.manager.Close()
	return nil
}

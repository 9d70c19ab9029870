// Package http exposes the draftd REST API: story records, finalized
// chapters, the chapter-compose workflow, and the writing assistants. Compose
// state changes stream to clients over Server-Sent Events.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fablesmithlabs/draftd/internal/assistant"
	"github.com/fablesmithlabs/draftd/internal/compose"
	"github.com/fablesmithlabs/draftd/internal/config"
	"github.com/fablesmithlabs/draftd/internal/story"
)

// Server provides HTTP endpoints for draftd.
type Server struct {
	echo       *echo.Echo
	config     config.ServerConfig
	manager    *compose.Manager
	stories    *story.Service
	assistants *assistant.Service
	logger     *zap.Logger
}

// NewServer creates a new HTTP server. The assistant service may be nil, in
// which case the assistant routes answer 503.
func NewServer(cfg config.ServerConfig, manager *compose.Manager, stories *story.Service, assistants *assistant.Service, logger *zap.Logger) (*Server, error) {
	if manager == nil {
		return nil, fmt.Errorf("compose manager cannot be nil")
	}
	if stories == nil {
		return nil, fmt.Errorf("story service cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())

	s := &Server{
		echo:       e,
		config:     cfg,
		manager:    manager,
		stories:    stories,
		assistants: assistants,
		logger:     logger,
	}

	// Register routes
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	// Health check and Prometheus metrics
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// API v1 routes
	v1 := s.echo.Group("/api/v1")

	v1.POST("/stories", s.handleCreateStory)
	v1.GET("/stories", s.handleListStories)
	v1.GET("/stories/:story", s.handleGetStory)
	v1.GET("/stories/:story/chapters", s.handleListChapters)
	v1.GET("/stories/:story/chapters/:n", s.handleGetChapter)
	v1.POST("/stories/:story/chapters/:n/finalize", s.handleFinalizeChapter)

	cmp := v1.Group("/stories/:story/chapters/:n/compose")
	cmp.POST("", s.handleOpenCompose)
	cmp.GET("", s.handleGetCompose)
	cmp.POST("/advance", s.handleAdvance)
	cmp.POST("/revert", s.handleRevert)
	cmp.PATCH("/progress", s.handleUpdateProgress)
	cmp.PUT("/outline", s.handleSetOutline)
	cmp.PUT("/draft", s.handleSetDraft)
	cmp.POST("/reviews/:id/select", s.handleSelectReview)
	cmp.POST("/reviews/:id/apply", s.handleApplyReview)
	cmp.GET("/events", s.handleComposeEvents)

	ast := v1.Group("/stories/:story/chapters/:n/assistants")
	ast.POST("/character", s.handleCharacterReply)
	ast.POST("/tone", s.handleRateTone)
	ast.POST("/editor", s.handleReviewDraft)
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Service: "draftd"})
}

// Start starts the HTTP server and blocks until ctx is cancelled, then
// performs graceful shutdown with the configured timeout.
func (s *Server) Start(ctx context.Context) error {
	addr := s.config.Addr()
	s.logger.Info("starting http server", zap.String("addr", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout.Duration())
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fablesmithlabs/draftd/internal/assistant"
	"github.com/fablesmithlabs/draftd/internal/compose"
	"github.com/fablesmithlabs/draftd/internal/config"
	"github.com/fablesmithlabs/draftd/internal/logging"
	"github.com/fablesmithlabs/draftd/internal/store"
	"github.com/fablesmithlabs/draftd/internal/story"
	"github.com/fablesmithlabs/draftd/internal/telemetry"
)

// app holds the dependency chain shared by the serve and mcp commands:
// configuration, logging, telemetry, the file store and its change watcher,
// the compose manager, the story service, and the assistant service.
type app struct {
	cfg        *config.Config
	logs       *logging.Logger
	logger     *zap.Logger
	telemetry  *telemetry.Telemetry
	fileStore  *store.FileStore
	watcher    *store.ChangeWatcher
	manager    *compose.Manager
	stories    *story.Service
	assistants *assistant.Service
}

// appOptions tweaks wiring per command.
type appOptions struct {
	// logToStderr keeps stdout free for commands that use it as a
	// transport, as the mcp command does.
	logToStderr bool
}

// newApp initializes the dependency chain:
//  1. Loads and validates configuration
//  2. Starts telemetry, then the logger bridged into it
//  3. Opens the file store and, if enabled, the change watcher
//  4. Creates the compose manager and story service
//  5. Creates the assistant service over the configured chat backend
//
// On error, anything already started has been shut down.
func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Telemetry before the logger so log records can flow to the OTLP
	// exporter alongside the console.
	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg.Telemetry))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logCfg, err := logging.FromAppConfig(cfg.Logging)
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, err
	}
	if opts.logToStderr {
		logCfg.Output.Stdout = false
		logCfg.Output.Stderr = true
	}
	if tel.LoggerProvider() != nil {
		logCfg.Output.OTEL = true
	}
	logs, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		_ = tel.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a := &app{
		cfg:       cfg,
		logs:      logs,
		logger:    logs.Underlying(),
		telemetry: tel,
	}

	a.fileStore, err = store.NewFileStore(cfg.Data.Dir, a.logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize file store: %w", err)
	}

	a.manager, err = compose.NewManager(a.fileStore, a.logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.stories, err = story.NewService(a.fileStore, a.manager, a.logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Data.WatchEnabled {
		watcher, err := store.NewChangeWatcher(a.fileStore, a.logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		if err := watcher.Start(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to start change watcher: %w", err)
		}
		a.watcher = watcher
		go a.reloadOnChange(ctx)
	}

	a.assistants, err = initAssistants(cfg, a.logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.logger.Info("draftd initialized",
		zap.String("data_dir", a.fileStore.DataDir()),
		zap.Bool("watcher", a.watcher != nil),
		zap.String("llm_model", cfg.LLM.Model),
		zap.Bool("telemetry", cfg.Telemetry.Enabled),
	)
	return a, nil
}

// Close releases resources in reverse initialization order. Persisted
// state stays on disk.
func (a *app) Close() {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.manager != nil {
		a.manager.Close()
	}
	if a.telemetry != nil {
		// Shutdown applies the configured timeout when the context has
		// no deadline.
		if err := a.telemetry.Shutdown(context.Background()); err != nil {
			a.logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}
	if a.logs != nil {
		_ = a.logs.Sync() // Best-effort sync on shutdown
	}
}

// reloadOnChange feeds watcher events into the compose manager so live
// controllers pick up state edited on disk by other processes.
func (a *app) reloadOnChange(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-a.watcher.Events():
			if err := a.manager.HandleExternalChange(ctx, ev.StoryID, ev.Chapter); err != nil {
				a.logger.Warn("failed to reload changed compose state",
					zap.String("story_id", ev.StoryID),
					zap.Int("chapter", ev.Chapter),
					zap.Error(err),
				)
			}
		}
	}
}

// initAssistants builds the character-dialogue service over the configured
// OpenAI-compatible backend. The client does not dial at construction, so
// this succeeds even when the backend is not running yet.
func initAssistants(cfg *config.Config, logger *zap.Logger) (*assistant.Service, error) {
	client, err := assistant.NewOpenAIClient(assistant.Config{
		BaseURL:           cfg.LLM.BaseURL,
		Model:             cfg.LLM.Model,
		APIKey:            cfg.LLM.APIKey.Value(),
		Temperature:       cfg.LLM.Temperature,
		MaxTokens:         cfg.LLM.MaxTokens,
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
		MaxRetries:        cfg.LLM.MaxRetries,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat client: %w", err)
	}

	personas, err := assistant.LoadPersonas(cfg.LLM.PersonasPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load personas: %w", err)
	}

	return assistant.NewService(client, personas, logger)
}

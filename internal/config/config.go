// Package config provides configuration loading for draftd.
//
// Configuration is read from an optional YAML file and overridden by
// DRAFTD_-prefixed environment variables. Values absent from both fall back
// to the defaults in Default.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete draftd configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Data      DataConfig      `koanf:"data"`
	LLM       LLMConfig       `koanf:"llm"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DataConfig holds story storage configuration.
type DataConfig struct {
	// Dir is the root data directory. Empty selects the platform default
	// (~/.local/share/draftd).
	Dir string `koanf:"dir"`

	// WatchEnabled reloads compose state edited on disk by other processes.
	WatchEnabled bool `koanf:"watch_enabled"`
}

// LLMConfig holds the chat completion backend configuration.
type LLMConfig struct {
	BaseURL           string  `koanf:"base_url"`
	Model             string  `koanf:"model"`
	APIKey            Secret  `koanf:"api_key"`
	Temperature       float64 `koanf:"temperature"`
	MaxTokens         int     `koanf:"max_tokens"`
	RequestsPerMinute int     `koanf:"requests_per_minute"`
	MaxRetries        int     `koanf:"max_retries"`
	PersonasPath      string  `koanf:"personas_path"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// TelemetryConfig holds OpenTelemetry export configuration.
type TelemetryConfig struct {
	Enabled      bool   `koanf:"enabled"`
	ServiceName  string `koanf:"service_name"`
	OTLPEndpoint string `koanf:"otlp_endpoint"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8787,
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Data: DataConfig{
			WatchEnabled: true,
		},
		LLM: LLMConfig{
			BaseURL:           "http://localhost:11434/v1",
			Model:             "llama3.1",
			Temperature:       0.7,
			MaxTokens:         2048,
			RequestsPerMinute: 30,
			MaxRetries:        3,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			ServiceName:  "draftd",
			OTLPEndpoint: "localhost:4318",
		},
	}
}

// Validate checks the configuration for values the daemon cannot run with.
//
// Returns an error if:
//   - Server port is not between 1 and 65535
//   - Shutdown timeout is not positive
//   - LLM base URL or model is empty, or temperature is outside [0, 2]
//   - Log level or format is unknown
//   - Telemetry is enabled without a service name or OTLP endpoint
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	if c.LLM.BaseURL == "" {
		return errors.New("llm base_url is required")
	}
	if c.LLM.Model == "" {
		return errors.New("llm model is required")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm temperature out of range: %v (must be 0-2)", c.LLM.Temperature)
	}
	if c.LLM.MaxTokens < 1 {
		return fmt.Errorf("llm max_tokens must be positive, got %d", c.LLM.MaxTokens)
	}
	if c.LLM.RequestsPerMinute < 0 {
		return fmt.Errorf("llm requests_per_minute cannot be negative, got %d", c.LLM.RequestsPerMinute)
	}
	if c.LLM.MaxRetries < 1 {
		return fmt.Errorf("llm max_retries must be at least 1, got %d", c.LLM.MaxRetries)
	}

	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log format: %q", c.Logging.Format)
	}

	if c.Telemetry.Enabled && c.Telemetry.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}
	if c.Telemetry.Enabled && c.Telemetry.OTLPEndpoint == "" {
		return errors.New("otlp endpoint required when telemetry is enabled")
	}

	return nil
}

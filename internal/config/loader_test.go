package config

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// setupTestHome points HOME at a temp directory and creates the draftd
// config directory inside it. Returns the config file path.
func setupTestHome(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)

	configDir := filepath.Join(home, ".config", "draftd")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}
	return filepath.Join(configDir, "config.yaml")
}

func TestLoad_ValidYAML(t *testing.T) {
	configPath := setupTestHome(t)

	yamlContent := `server:
  host: 0.0.0.0
  port: 9090
  shutdown_timeout: 30s

data:
  dir: /var/lib/draftd
  watch_enabled: false

llm:
  base_url: http://llm.internal:8000/v1
  model: mistral
  api_key: sk-test
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0600); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Server.ShutdownTimeout.Duration() != 30*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v, want 30s", cfg.Server.ShutdownTimeout.Duration())
	}
	if cfg.Data.Dir != "/var/lib/draftd" {
		t.Errorf("Data.Dir = %q, want /var/lib/draftd", cfg.Data.Dir)
	}
	if cfg.Data.WatchEnabled {
		t.Error("Data.WatchEnabled = true, want false (set in YAML)")
	}
	if cfg.LLM.Model != "mistral" {
		t.Errorf("LLM.Model = %q, want mistral", cfg.LLM.Model)
	}
	if cfg.LLM.APIKey.Value() != "sk-test" {
		t.Errorf("LLM.APIKey.Value() = %q, want sk-test", cfg.LLM.APIKey.Value())
	}

	// Values absent from the file keep their defaults.
	if cfg.LLM.MaxTokens != 2048 {
		t.Errorf("LLM.MaxTokens = %d, want default 2048", cfg.LLM.MaxTokens)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want default info", cfg.Logging.Level)
	}
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	configPath := setupTestHome(t)

	yamlContent := `server:
  port: 9090

llm:
  model: yaml-model
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0600); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	t.Setenv("DRAFTD_SERVER_PORT", "7777")
	t.Setenv("DRAFTD_LLM_MODEL", "env-model")
	t.Setenv("DRAFTD_LLM_API_KEY", "sk-from-env")
	t.Setenv("DRAFTD_DATA_WATCH_ENABLED", "false")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}

	if cfg.Server.Port != 7777 {
		t.Errorf("Server.Port = %d, want 7777 (from env override)", cfg.Server.Port)
	}
	if cfg.LLM.Model != "env-model" {
		t.Errorf("LLM.Model = %q, want env-model (from env override)", cfg.LLM.Model)
	}
	if cfg.LLM.APIKey.Value() != "sk-from-env" {
		t.Errorf("LLM.APIKey.Value() = %q, want sk-from-env", cfg.LLM.APIKey.Value())
	}
	if cfg.Data.WatchEnabled {
		t.Error("Data.WatchEnabled = true, want false (from env override)")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	configPath := setupTestHome(t)

	// No file written; Load should fall back to defaults.
	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() should not error on missing file, got: %v", err)
	}
	if cfg.Server.Port != 8787 {
		t.Errorf("Server.Port = %d, want default 8787", cfg.Server.Port)
	}
	if !cfg.Data.WatchEnabled {
		t.Error("Data.WatchEnabled = false, want default true")
	}
}

func TestLoad_DefaultPathWhenEmpty(t *testing.T) {
	setupTestHome(t)

	// Empty path resolves to ~/.config/draftd/config.yaml, which does not
	// exist here, so defaults apply.
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v, want nil", err)
	}
	if cfg.Server.Port != 8787 {
		t.Errorf("Server.Port = %d, want default 8787", cfg.Server.Port)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := setupTestHome(t)

	invalidYAML := `server:
  port: [this is
  not yaml
`
	if err := os.WriteFile(configPath, []byte(invalidYAML), 0600); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("Load() should error on invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	configPath := setupTestHome(t)

	yamlContent := `server:
  port: 99999
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0600); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() should error on invalid port, got nil")
	}
	if !strings.Contains(err.Error(), "validation failed") {
		t.Errorf("Expected validation error, got: %v", err)
	}
}

func TestLoad_PathOutsideAllowedDirs(t *testing.T) {
	setupTestHome(t)

	_, err := Load("/tmp/evil/config.yaml")
	if err == nil {
		t.Fatal("Expected error for path outside allowed directories, got nil")
	}
	if !strings.Contains(err.Error(), "must be in") {
		t.Errorf("Expected path validation error, got: %v", err)
	}
}

func TestLoad_PathTraversal(t *testing.T) {
	setupTestHome(t)

	_, err := Load("../../../../etc/passwd")
	if err == nil {
		t.Error("Expected error for path traversal, got nil")
	}
}

func TestLoad_InsecurePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Skipping permission test on Windows")
	}

	configPath := setupTestHome(t)

	if err := os.WriteFile(configPath, []byte("server:\n  port: 9090\n"), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected error for insecure permissions, got nil")
	}
	if !strings.Contains(err.Error(), "insecure") {
		t.Errorf("Expected 'insecure permissions' error, got: %v", err)
	}
}

func TestLoad_SecurePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Skipping permission test on Windows")
	}

	configPath := setupTestHome(t)

	if err := os.WriteFile(configPath, []byte("server:\n  port: 9090\n"), 0400); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() should accept 0400 permissions, got error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
}

func TestLoad_FileTooLarge(t *testing.T) {
	configPath := setupTestHome(t)

	largeContent := bytes.Repeat([]byte("# comment line\n"), 150000)
	if err := os.WriteFile(configPath, largeContent, 0600); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected error for large file, got nil")
	}
	if !strings.Contains(err.Error(), "too large") {
		t.Errorf("Expected 'too large' error, got: %v", err)
	}
}

func TestEnvToKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"DRAFTD_SERVER_PORT", "server.port"},
		{"DRAFTD_SERVER_SHUTDOWN_TIMEOUT", "server.shutdown_timeout"},
		{"DRAFTD_LLM_BASE_URL", "llm.base_url"},
		{"DRAFTD_LLM_REQUESTS_PER_MINUTE", "llm.requests_per_minute"},
		{"DRAFTD_DATA_WATCH_ENABLED", "data.watch_enabled"},
		{"DRAFTD_TELEMETRY_OTLP_ENDPOINT", "telemetry.otlp_endpoint"},
		{"DRAFTD_CONFIG", "config"},
	}

	for _, tt := range tests {
		if got := envToKey(tt.in); got != tt.want {
			t.Errorf("envToKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateConfigPath_AllowsEtcDraftd(t *testing.T) {
	if err := validateConfigPath("/etc/draftd/config.yaml"); err != nil {
		t.Errorf("validateConfigPath(/etc/draftd/config.yaml) = %v, want nil", err)
	}
}

func TestEnsureConfigDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if err := EnsureConfigDir(); err != nil {
		t.Fatalf("EnsureConfigDir() error = %v", err)
	}

	info, err := os.Stat(filepath.Join(home, ".config", "draftd"))
	if err != nil {
		t.Fatalf("config dir not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("config path is not a directory")
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0700 {
		t.Errorf("config dir permissions = %v, want 0700", info.Mode().Perm())
	}
}

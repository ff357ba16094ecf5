package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

// Helper to clear all config-related env vars. Empty values never override.
func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"ONBOARD_PORT",
		"ONBOARD_READ_TIMEOUT",
		"ONBOARD_WRITE_TIMEOUT",
		"ONBOARD_SHUTDOWN_TIMEOUT",
		"ONBOARD_DB_PATH",
		"ONBOARD_API_KEY",
		"ONBOARD_LOG_LEVEL",
		"ONBOARD_LOG_FORMAT",
		"ONBOARD_DEV_MODE",
		"ONBOARD_FILES_BUCKET",
		"ONBOARD_FILES_ENDPOINT",
		"ONBOARD_FILES_REGION",
		"ONBOARD_FILES_ACCESS_KEY",
		"ONBOARD_FILES_SECRET_KEY",
		"ONBOARD_FILES_PREFIX",
		"ONBOARD_FILES_LOCAL_DIR",
		"ONBOARD_FILES_URL_EXPIRY",
		"ONBOARD_FILES_USE_SSL",
		"ONBOARD_URL",
		"ONBOARD_CLIENT_API_KEY",
		"ONBOARD_CLIENT_TIMEOUT",
		"ONBOARD_CLIENT_LIST_RETRIES",
		"ONBOARD_SYNC_INTERVAL",
	}
	for _, v := range envVars {
		t.Setenv(v, "")
	}
	t.Setenv("ONBOARD_CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))
}

func setDevModeEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ONBOARD_DEV_MODE", "true")
}

// dur converts Duration to time.Duration for comparison
func dur(d Duration) time.Duration {
	return time.Duration(d)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

// Test: Default values when no config file and no env vars (dev mode)
func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	setDevModeEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if dur(cfg.Server.ReadTimeout) != 30*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 30s", cfg.Server.ReadTimeout)
	}
	if dur(cfg.Server.ShutdownTimeout) != 15*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v, want 15s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Database.Path != "data/onboard.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "data/onboard.db")
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v, want info/json", cfg.Log)
	}
	if cfg.Files.Bucket != "" {
		t.Errorf("Files.Bucket = %q, want empty (local storage)", cfg.Files.Bucket)
	}
	if cfg.Files.LocalDir != "data/documents" {
		t.Errorf("Files.LocalDir = %q", cfg.Files.LocalDir)
	}
	if dur(cfg.Files.URLExpiry) != 7*24*time.Hour {
		t.Errorf("Files.URLExpiry = %v, want 168h", cfg.Files.URLExpiry)
	}
	if cfg.Client.BaseURL != "http://localhost:8080" {
		t.Errorf("Client.BaseURL = %q", cfg.Client.BaseURL)
	}
	if cfg.Client.ListRetries != 3 {
		t.Errorf("Client.ListRetries = %d, want 3", cfg.Client.ListRetries)
	}
	if dur(cfg.Client.Timeout) != 10*time.Second {
		t.Errorf("Client.Timeout = %v, want 10s", cfg.Client.Timeout)
	}
	if dur(cfg.Client.SyncInterval) != 5*time.Second {
		t.Errorf("Client.SyncInterval = %v, want 5s", cfg.Client.SyncInterval)
	}
}

// Test: Validation fails without an API key (non-dev mode)
func TestLoad_ValidationFailsWithoutAPIKey(t *testing.T) {
	clearEnv(t)

	_, err := Load()
	if err == nil {
		t.Fatal("Load() expected error without API key, got nil")
	}
	if !strings.Contains(err.Error(), "ONBOARD_API_KEY") {
		t.Errorf("error = %v, want mention of ONBOARD_API_KEY", err)
	}
}

func TestLoad_ValidationPassesWithAPIKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("ONBOARD_API_KEY", "test-api-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.APIKey != "test-api-key" {
		t.Errorf("Auth.APIKey = %q", cfg.Auth.APIKey)
	}
	if cfg.Client.APIKey != "test-api-key" {
		t.Errorf("Client.APIKey = %q, want it to default to the auth key", cfg.Client.APIKey)
	}
}

func TestLoad_ClientKeyOverridesAuthKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("ONBOARD_API_KEY", "server-key")
	t.Setenv("ONBOARD_CLIENT_API_KEY", "client-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Client.APIKey != "client-key" {
		t.Errorf("Client.APIKey = %q, want client-key", cfg.Client.APIKey)
	}
}

func TestLoad_DevModeBypassesValidation(t *testing.T) {
	clearEnv(t)
	setDevModeEnv(t)

	if _, err := Load(); err != nil {
		t.Fatalf("Load() in dev mode error = %v", err)
	}
}

func TestLoad_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"port zero", "ONBOARD_PORT", "0"},
		{"port too large", "ONBOARD_PORT", "70000"},
		{"negative retries", "ONBOARD_CLIENT_LIST_RETRIES", "-1"},
		{"zero sync interval", "ONBOARD_SYNC_INTERVAL", "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			setDevModeEnv(t)
			t.Setenv(tt.key, tt.val)

			if _, err := Load(); err == nil {
				t.Errorf("Load() with %s=%s expected error", tt.key, tt.val)
			}
		})
	}
}

func TestLoad_AllEnvVarMappings(t *testing.T) {
	clearEnv(t)
	setDevModeEnv(t)

	env := map[string]string{
		"ONBOARD_PORT":                "9090",
		"ONBOARD_READ_TIMEOUT":        "5s",
		"ONBOARD_WRITE_TIMEOUT":       "6s",
		"ONBOARD_SHUTDOWN_TIMEOUT":    "7s",
		"ONBOARD_DB_PATH":             "/tmp/onboard.db",
		"ONBOARD_LOG_LEVEL":           "debug",
		"ONBOARD_LOG_FORMAT":          "text",
		"ONBOARD_FILES_BUCKET":        "docs",
		"ONBOARD_FILES_ENDPOINT":      "minio:9000",
		"ONBOARD_FILES_REGION":        "eu-west-1",
		"ONBOARD_FILES_ACCESS_KEY":    "access",
		"ONBOARD_FILES_SECRET_KEY":    "secret",
		"ONBOARD_FILES_PREFIX":        "uploads",
		"ONBOARD_FILES_LOCAL_DIR":     "/tmp/docs",
		"ONBOARD_FILES_URL_EXPIRY":    "1h",
		"ONBOARD_FILES_USE_SSL":       "false",
		"ONBOARD_URL":                 "http://backend:8080",
		"ONBOARD_CLIENT_TIMEOUT":      "3s",
		"ONBOARD_CLIENT_LIST_RETRIES": "5",
		"ONBOARD_SYNC_INTERVAL":       "250ms",
	}
	for k, v := range env {
		t.Setenv(k, v)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d", cfg.Server.Port)
	}
	if dur(cfg.Server.ReadTimeout) != 5*time.Second || dur(cfg.Server.WriteTimeout) != 6*time.Second {
		t.Errorf("Server timeouts = %v/%v", cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)
	}
	if dur(cfg.Server.ShutdownTimeout) != 7*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Database.Path != "/tmp/onboard.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	f := cfg.Files
	if f.Bucket != "docs" || f.Endpoint != "minio:9000" || f.Region != "eu-west-1" {
		t.Errorf("Files = %+v", f)
	}
	if f.AccessKey != "access" || f.SecretKey != "secret" {
		t.Errorf("Files credentials not applied")
	}
	if f.Prefix != "uploads" || f.LocalDir != "/tmp/docs" || dur(f.URLExpiry) != time.Hour {
		t.Errorf("Files = %+v", f)
	}
	if f.UseSSL == nil || *f.UseSSL {
		t.Errorf("Files.UseSSL = %v, want false", f.UseSSL)
	}
	c := cfg.Client
	if c.BaseURL != "http://backend:8080" || dur(c.Timeout) != 3*time.Second {
		t.Errorf("Client = %+v", c)
	}
	if c.ListRetries != 5 || dur(c.SyncInterval) != 250*time.Millisecond {
		t.Errorf("Client = %+v", c)
	}
}

func TestLoad_EmptyEnvVarDoesNotOverride(t *testing.T) {
	clearEnv(t)
	setDevModeEnv(t)
	t.Setenv("ONBOARD_DB_PATH", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "data/onboard.db" {
		t.Errorf("Database.Path = %q, want default", cfg.Database.Path)
	}
}

func TestLoadFromFile_ValidYAML(t *testing.T) {
	clearEnv(t)
	setDevModeEnv(t)

	path := writeConfig(t, `
server:
  port: 9999
  read_timeout: 60s
database:
  path: /yaml/path.db
log:
  level: warn
files:
  bucket: onboarding-docs
  endpoint: s3.amazonaws.com
  use_ssl: true
  url_expiry: 24h
client:
  base_url: https://onboard.internal
  list_retries: 1
  sync_interval: 2s
`)

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if dur(cfg.Server.ReadTimeout) != 60*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 60s", cfg.Server.ReadTimeout)
	}
	if cfg.Database.Path != "/yaml/path.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want warn", cfg.Log.Level)
	}
	if cfg.Files.Bucket != "onboarding-docs" || cfg.Files.UseSSL == nil || !*cfg.Files.UseSSL {
		t.Errorf("Files = %+v", cfg.Files)
	}
	if dur(cfg.Files.URLExpiry) != 24*time.Hour {
		t.Errorf("Files.URLExpiry = %v", cfg.Files.URLExpiry)
	}
	if cfg.Files.LocalDir != "data/documents" {
		t.Errorf("Files.LocalDir = %q, want default kept", cfg.Files.LocalDir)
	}
	if cfg.Client.BaseURL != "https://onboard.internal" || cfg.Client.ListRetries != 1 {
		t.Errorf("Client = %+v", cfg.Client)
	}
}

// Test: Env vars override YAML values
func TestLoad_EnvOverridesYAML(t *testing.T) {
	clearEnv(t)
	setDevModeEnv(t)

	path := writeConfig(t, `
server:
  port: 9000
log:
  level: warn
`)
	t.Setenv("ONBOARD_CONFIG_PATH", path)
	t.Setenv("ONBOARD_PORT", "8888")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8888 {
		t.Errorf("Server.Port = %d, want 8888 (env override)", cfg.Server.Port)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want %q (from YAML)", cfg.Log.Level, "warn")
	}
}

func TestLoadFromFile_InvalidYAML(t *testing.T) {
	clearEnv(t)
	setDevModeEnv(t)

	path := writeConfig(t, `
server:
  port: not_a_number
  this is invalid yaml [
`)

	if _, err := LoadFromFile(path); err == nil {
		t.Error("LoadFromFile() expected error for invalid YAML, got nil")
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	clearEnv(t)
	setDevModeEnv(t)

	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("LoadFromFile() expected error for missing file")
	}
}

func TestLoadFromFile_InvalidDuration(t *testing.T) {
	clearEnv(t)
	setDevModeEnv(t)

	path := writeConfig(t, `
client:
  timeout: soon
`)

	_, err := LoadFromFile(path)
	if err == nil {
		t.Fatal("LoadFromFile() expected error for invalid duration")
	}
	if !strings.Contains(err.Error(), "invalid duration") {
		t.Errorf("error = %v, want invalid duration", err)
	}
}

func TestConfig_SecretsNotInYAML(t *testing.T) {
	cfg := &Config{
		Auth:   AuthConfig{APIKey: "auth-secret"},
		Files:  FilesConfig{AccessKey: "s3-access", SecretKey: "s3-secret"},
		Client: ClientConfig{APIKey: "client-secret"},
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatalf("yaml.Marshal() error = %v", err)
	}

	yamlStr := string(data)
	for _, secret := range []string{"auth-secret", "s3-access", "s3-secret", "client-secret"} {
		if strings.Contains(yamlStr, secret) {
			t.Errorf("YAML contains secret %q: %s", secret, yamlStr)
		}
	}
}

func TestDuration_MarshalYAML(t *testing.T) {
	data, err := yaml.Marshal(struct {
		D Duration `yaml:"d"`
	}{D: Duration(90 * time.Second)})
	if err != nil {
		t.Fatalf("yaml.Marshal() error = %v", err)
	}
	if !strings.Contains(string(data), "1m30s") {
		t.Errorf("marshalled = %s, want 1m30s", data)
	}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
	Files    FilesConfig    `yaml:"files"`
	Client   ClientConfig   `yaml:"client"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	APIKey string `yaml:"-"` // env-only, never in YAML
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// FilesConfig configures where attached documents are stored. An empty
// Bucket keeps documents on local disk under LocalDir.
type FilesConfig struct {
	Bucket    string   `yaml:"bucket"`
	Endpoint  string   `yaml:"endpoint"`
	Region    string   `yaml:"region"`
	UseSSL    *bool    `yaml:"use_ssl"`
	AccessKey string   `yaml:"-"` // env-only
	SecretKey string   `yaml:"-"` // env-only
	Prefix    string   `yaml:"prefix"`
	URLExpiry Duration `yaml:"url_expiry"`
	LocalDir  string   `yaml:"local_dir"`
}

// ClientConfig contains settings for CLI commands that talk to a backend.
type ClientConfig struct {
	BaseURL      string   `yaml:"base_url"`
	APIKey       string   `yaml:"-"` // env-only, defaults to auth.api_key
	Timeout      Duration `yaml:"timeout"`
	ListRetries  int      `yaml:"list_retries"`
	SyncInterval Duration `yaml:"sync_interval"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("ONBOARD_CONFIG_PATH", "config/onboard.yaml")

	// Missing file is not an error
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific path.
// Used for testing and explicit path specification.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Database: DatabaseConfig{
			Path: "data/onboard.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Files: FilesConfig{
			Prefix:    "documents",
			URLExpiry: Duration(7 * 24 * time.Hour),
			LocalDir:  "data/documents",
		},
		Client: ClientConfig{
			BaseURL:      "http://localhost:8080",
			Timeout:      Duration(10 * time.Second),
			ListRetries:  3,
			SyncInterval: Duration(5 * time.Second),
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

func envDuration(key string, dst *Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Server
	envInt("ONBOARD_PORT", &cfg.Server.Port)
	envDuration("ONBOARD_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("ONBOARD_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("ONBOARD_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)

	// Database
	envString("ONBOARD_DB_PATH", &cfg.Database.Path)

	// Auth
	envString("ONBOARD_API_KEY", &cfg.Auth.APIKey)

	// Log
	envString("ONBOARD_LOG_LEVEL", &cfg.Log.Level)
	envString("ONBOARD_LOG_FORMAT", &cfg.Log.Format)

	// Files
	envString("ONBOARD_FILES_BUCKET", &cfg.Files.Bucket)
	envString("ONBOARD_FILES_ENDPOINT", &cfg.Files.Endpoint)
	envString("ONBOARD_FILES_REGION", &cfg.Files.Region)
	envString("ONBOARD_FILES_ACCESS_KEY", &cfg.Files.AccessKey)
	envString("ONBOARD_FILES_SECRET_KEY", &cfg.Files.SecretKey)
	envString("ONBOARD_FILES_PREFIX", &cfg.Files.Prefix)
	envString("ONBOARD_FILES_LOCAL_DIR", &cfg.Files.LocalDir)
	envDuration("ONBOARD_FILES_URL_EXPIRY", &cfg.Files.URLExpiry)
	if v := os.Getenv("ONBOARD_FILES_USE_SSL"); v != "" {
		useSSL := v == "true" || v == "1"
		cfg.Files.UseSSL = &useSSL
	}

	// Client
	envString("ONBOARD_URL", &cfg.Client.BaseURL)
	envString("ONBOARD_CLIENT_API_KEY", &cfg.Client.APIKey)
	envDuration("ONBOARD_CLIENT_TIMEOUT", &cfg.Client.Timeout)
	envInt("ONBOARD_CLIENT_LIST_RETRIES", &cfg.Client.ListRetries)
	envDuration("ONBOARD_SYNC_INTERVAL", &cfg.Client.SyncInterval)
	if cfg.Client.APIKey == "" {
		cfg.Client.APIKey = cfg.Auth.APIKey
	}
}

// validate checks that required configuration values are set.
// In dev mode (ONBOARD_DEV_MODE=true), API key validation is skipped.
func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Client.ListRetries < 0 {
		return errors.New("client.list_retries must not be negative")
	}
	if c.Client.SyncInterval <= 0 {
		return errors.New("client.sync_interval must be positive")
	}

	if os.Getenv("ONBOARD_DEV_MODE") == "true" {
		return nil
	}

	if c.Auth.APIKey == "" && c.Client.APIKey == "" {
		return errors.New("ONBOARD_API_KEY is required")
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// ABOUTME: Configuration loading and parsing for arcstate-server
// ABOUTME: Supports YAML files with environment variable expansion and an env overlay

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/arcstate/arcstate/internal/prefs"
	"github.com/arcstate/arcstate/internal/workspace"
)

// Config represents the complete arcstate-server configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	Preferences PreferencesConfig `yaml:"preferences"`
	Workspace   WorkspaceConfig   `yaml:"workspace"`
	Auth        AuthConfig        `yaml:"auth"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig holds the HTTP listener configuration.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" env:"ARCSTATE_HTTP_ADDR"`

	ShutdownTimeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	ShutdownTimeoutRaw string `yaml:"shutdown_timeout" env:"ARCSTATE_SHUTDOWN_TIMEOUT"`
}

// StorageConfig selects and locates the key-value backend.
type StorageConfig struct {
	// Backend is one of "memory", "sqlite", "bolt", "file".
	Backend string `yaml:"backend" env:"ARCSTATE_STORAGE_BACKEND"`
	// Path locates the backing file for the non-memory backends.
	// ":memory:" is accepted by the sqlite backend.
	Path string `yaml:"path" env:"ARCSTATE_STORAGE_PATH"`
}

// PreferencesConfig holds the preferences store configuration.
type PreferencesConfig struct {
	Prefix string `yaml:"prefix" env:"ARCSTATE_PREFS_PREFIX"`
}

// WorkspaceConfig holds the workspace store configuration.
type WorkspaceConfig struct {
	Prefix string `yaml:"prefix" env:"ARCSTATE_WORKSPACE_PREFIX"`

	FlushDelay time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	FlushDelayRaw string `yaml:"flush_delay" env:"ARCSTATE_WORKSPACE_FLUSH_DELAY"`
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	Enabled   bool   `yaml:"enabled" env:"ARCSTATE_AUTH_ENABLED"`
	JWTSecret string `yaml:"jwt_secret" env:"ARCSTATE_JWT_SECRET"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"ARCSTATE_LOG_LEVEL"`
	Format string `yaml:"format" env:"ARCSTATE_LOG_FORMAT"`
}

// Default returns the full default configuration tree: an in-memory backend
// behind a local listener, the stores' own default prefixes, auth off.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:           "localhost:8155",
			ShutdownTimeout:    5 * time.Second,
			ShutdownTimeoutRaw: "5s",
		},
		Storage: StorageConfig{
			Backend: "memory",
		},
		Preferences: PreferencesConfig{
			Prefix: prefs.DefaultPrefix,
		},
		Workspace: WorkspaceConfig{
			Prefix:        workspace.DefaultPrefix,
			FlushDelay:    workspace.DefaultFlushDelay,
			FlushDelayRaw: "500ms",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a configuration file from the given path and returns a parsed
// Config. A missing file is not an error: defaults are used. Environment
// variables in the format ${VAR_NAME} are expanded before parsing, and
// ARCSTATE_* variables are overlaid on the parsed result.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Run on defaults.
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		expanded := expandEnvVars(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables expand to the empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and
// valid. Returns an error describing the first validation failure.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	switch c.Storage.Backend {
	case "memory":
	case "sqlite", "bolt", "file":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the %s backend", c.Storage.Backend)
		}
	default:
		return fmt.Errorf("storage.backend must be one of memory, sqlite, bolt, file (got %q)", c.Storage.Backend)
	}

	if c.Preferences.Prefix == "" {
		return fmt.Errorf("preferences.prefix is required")
	}
	if c.Workspace.Prefix == "" {
		return fmt.Errorf("workspace.prefix is required")
	}

	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth is enabled")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values.
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Server.ShutdownTimeoutRaw != "" {
		cfg.Server.ShutdownTimeout, err = time.ParseDuration(cfg.Server.ShutdownTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing shutdown_timeout %q: %w", cfg.Server.ShutdownTimeoutRaw, err)
		}
	}

	if cfg.Workspace.FlushDelayRaw != "" {
		cfg.Workspace.FlushDelay, err = time.ParseDuration(cfg.Workspace.FlushDelayRaw)
		if err != nil {
			return fmt.Errorf("parsing flush_delay %q: %w", cfg.Workspace.FlushDelayRaw, err)
		}
		if cfg.Workspace.FlushDelay <= 0 {
			return fmt.Errorf("workspace.flush_delay must be positive")
		}
	}

	return nil
}

// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, overlay, and duration parsing

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  http_addr: "0.0.0.0:8155"
  shutdown_timeout: "10s"

storage:
  backend: "sqlite"
  path: "./state.db"

preferences:
  prefix: "_arc_"

workspace:
  prefix: "_arcworkspace"
  flush_delay: "250ms"

auth:
  enabled: true
  jwt_secret: "test-secret"

logging:
  level: "debug"
  format: "json"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:8155" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:8155")
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v, want %v", cfg.Server.ShutdownTimeout, 10*time.Second)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, "sqlite")
	}
	if cfg.Storage.Path != "./state.db" {
		t.Errorf("Storage.Path = %q, want %q", cfg.Storage.Path, "./state.db")
	}
	if cfg.Workspace.FlushDelay != 250*time.Millisecond {
		t.Errorf("Workspace.FlushDelay = %v, want %v", cfg.Workspace.FlushDelay, 250*time.Millisecond)
	}
	if !cfg.Auth.Enabled || cfg.Auth.JWTSecret != "test-secret" {
		t.Errorf("Auth = %+v, want enabled with test-secret", cfg.Auth)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want debug/json", cfg.Logging)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "no-such-file.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := Default()
	if cfg.Server.HTTPAddr != want.Server.HTTPAddr {
		t.Errorf("Server.HTTPAddr = %q, want default %q", cfg.Server.HTTPAddr, want.Server.HTTPAddr)
	}
	if cfg.Storage.Backend != "memory" {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, "memory")
	}
	if cfg.Workspace.FlushDelay != 500*time.Millisecond {
		t.Errorf("Workspace.FlushDelay = %v, want %v", cfg.Workspace.FlushDelay, 500*time.Millisecond)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_ARCSTATE_SECRET", "expanded-secret")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
auth:
  enabled: true
  jwt_secret: "${TEST_ARCSTATE_SECRET}"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Auth.JWTSecret != "expanded-secret" {
		t.Errorf("Auth.JWTSecret = %q, want %q", cfg.Auth.JWTSecret, "expanded-secret")
	}
}

func TestLoad_EnvOverlay(t *testing.T) {
	t.Setenv("ARCSTATE_HTTP_ADDR", "localhost:9999")
	t.Setenv("ARCSTATE_STORAGE_BACKEND", "sqlite")
	t.Setenv("ARCSTATE_STORAGE_PATH", ":memory:")
	t.Setenv("ARCSTATE_WORKSPACE_FLUSH_DELAY", "50ms")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	configContent := `
server:
  http_addr: "localhost:8155"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "localhost:9999" {
		t.Errorf("Server.HTTPAddr = %q, want env override %q", cfg.Server.HTTPAddr, "localhost:9999")
	}
	if cfg.Storage.Backend != "sqlite" || cfg.Storage.Path != ":memory:" {
		t.Errorf("Storage = %+v, want sqlite/:memory:", cfg.Storage)
	}
	if cfg.Workspace.FlushDelay != 50*time.Millisecond {
		t.Errorf("Workspace.FlushDelay = %v, want %v", cfg.Workspace.FlushDelay, 50*time.Millisecond)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
workspace:
  flush_delay: "not-a-duration"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected error for invalid duration, got nil")
	}
	if !strings.Contains(err.Error(), "flush_delay") {
		t.Errorf("error = %v, want mention of flush_delay", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing http addr",
			mutate:  func(c *Config) { c.Server.HTTPAddr = "" },
			wantErr: "server.http_addr",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Storage.Backend = "redis" },
			wantErr: "storage.backend",
		},
		{
			name: "sqlite without path",
			mutate: func(c *Config) {
				c.Storage.Backend = "sqlite"
				c.Storage.Path = ""
			},
			wantErr: "storage.path",
		},
		{
			name:    "empty preferences prefix",
			mutate:  func(c *Config) { c.Preferences.Prefix = "" },
			wantErr: "preferences.prefix",
		},
		{
			name:    "auth enabled without secret",
			mutate:  func(c *Config) { c.Auth.Enabled = true },
			wantErr: "auth.jwt_secret",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

// ABOUTME: Tests for backend selection and server lifecycle
// ABOUTME: Boots a real instance on a loopback port and probes it over HTTP

package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcstate/arcstate/internal/config"
)

func TestOpenBackend(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		cfg     config.StorageConfig
		wantErr bool
	}{
		{"memory", config.StorageConfig{Backend: "memory"}, false},
		{"sqlite in-memory", config.StorageConfig{Backend: "sqlite", Path: ":memory:"}, false},
		{"sqlite file", config.StorageConfig{Backend: "sqlite", Path: filepath.Join(tmpDir, "s", "state.db")}, false},
		{"bolt", config.StorageConfig{Backend: "bolt", Path: filepath.Join(tmpDir, "b", "state.bolt")}, false},
		{"file", config.StorageConfig{Backend: "file", Path: filepath.Join(tmpDir, "f", "state.json")}, false},
		{"unknown", config.StorageConfig{Backend: "redis", Path: "x"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, err := openBackend(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NoError(t, backend.Close())
		})
	}
}

func TestNew_AuthMisconfigured(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.Enabled = true // no secret

	_, err := New(cfg, slog.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verifier")
}

// freeAddr reserves a loopback port and releases it for the server to take.
func freeAddr(t *testing.T) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestRun_ServesAndShutsDownGracefully(t *testing.T) {
	cfg := config.Default()
	cfg.Server.HTTPAddr = freeAddr(t)

	srv, err := New(cfg, slog.Default())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	base := "http://" + cfg.Server.HTTPAddr

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/health")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	// A full round trip through the bridge against the live instance.
	req, err := http.NewRequest(http.MethodPut, base+"/api/preferences",
		strings.NewReader(`{"name":"theme","value":"dark"}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(base + "/api/preferences")
	require.NoError(t, err)
	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	resp.Body.Close()
	assert.Equal(t, map[string]any{"theme": "dark"}, payload["preferences"])

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

// ABOUTME: Tests for the bridge API client against a real in-process bridge
// ABOUTME: Covers round trips, error mapping, auth headers, and the change feed

package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcstate/arcstate/internal/auth"
	"github.com/arcstate/arcstate/internal/bridge"
	"github.com/arcstate/arcstate/internal/bus"
	"github.com/arcstate/arcstate/internal/kv"
	"github.com/arcstate/arcstate/internal/prefs"
	"github.com/arcstate/arcstate/internal/workspace"
)

func newServer(t *testing.T, verifier auth.TokenVerifier) (*httptest.Server, *workspace.Store) {
	t.Helper()

	backend := kv.NewMem()
	events := bus.New(nil)
	t.Cleanup(events.Close)

	ws := workspace.New(backend, workspace.WithFlushDelay(20*time.Millisecond))
	t.Cleanup(func() { _ = ws.Close() })

	mux := http.NewServeMux()
	bridge.New(bridge.Config{
		Preferences: prefs.New(backend, prefs.WithBus(events)),
		Workspace:   ws,
		Backend:     backend,
		Events:      events,
		Verifier:    verifier,
	}).RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, ws
}

func TestPreferences_RoundTrip(t *testing.T) {
	srv, _ := newServer(t, nil)
	c := New(srv.URL)
	ctx := context.Background()

	require.NoError(t, c.SetPreference(ctx, "theme", "dark"))
	require.NoError(t, c.SetPreference(ctx, "fontSize", 12))
	require.NoError(t, c.SetPreference(ctx, "beta", true))

	all, err := c.LoadPreferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"theme": "dark", "fontSize": float64(12), "beta": true}, all)

	scoped, err := c.LoadPreferences(ctx, "theme", "beta")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"theme": "dark", "beta": true}, scoped)

	require.NoError(t, c.ClearPreferences(ctx))
	all, err = c.LoadPreferences(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSetPreference_ErrorMapping(t *testing.T) {
	srv, _ := newServer(t, nil)
	c := New(srv.URL)

	err := c.SetPreference(context.Background(), "", "x")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Name is not set.", apiErr.Message)
	assert.NotEmpty(t, apiErr.RequestID)
}

func TestWorkspace_RoundTrip(t *testing.T) {
	srv, ws := newServer(t, nil)
	c := New(srv.URL)
	ctx := context.Background()

	require.NoError(t, c.SetWorkspace(ctx, map[string]any{"cursor": 42}))
	ws.Flush(ctx)

	got, err := c.LoadWorkspace(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"cursor": float64(42)}, got)

	err = c.SetWorkspace(ctx, nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Value is not set.", apiErr.Message)

	require.NoError(t, c.ClearWorkspace(ctx))
	got, err = c.LoadWorkspace(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAuth_TokenAttached(t *testing.T) {
	verifier, err := auth.NewVerifier([]byte("test-secret"))
	require.NoError(t, err)
	srv, _ := newServer(t, verifier)

	ctx := context.Background()

	unauthed := New(srv.URL)
	err = unauthed.SetPreference(ctx, "theme", "dark")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	token, err := verifier.Generate("client-1", time.Hour)
	require.NoError(t, err)

	authed := New(srv.URL, WithToken(token))
	require.NoError(t, authed.SetPreference(ctx, "theme", "dark"))
	require.NoError(t, authed.Health(ctx))
}

func TestWatch_DeliversChanges(t *testing.T) {
	srv, _ := newServer(t, nil)
	c := New(srv.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	changes, err := c.Watch(ctx, "")
	require.NoError(t, err)

	require.NoError(t, c.SetPreference(ctx, "theme", "light"))

	select {
	case change := <-changes:
		assert.Equal(t, "preferences", change.Store)
		assert.Equal(t, "theme", change.Key)
		assert.Equal(t, "light", change.Value)
	case <-ctx.Done():
		t.Fatal("no change received")
	}
}

// ABOUTME: HTTP API handlers exposing the preferences and workspace stores
// ABOUTME: Maps JSON request/response messages onto store calls with correlation IDs

package bridge

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/arcstate/arcstate/internal/auth"
	"github.com/arcstate/arcstate/internal/bus"
	"github.com/arcstate/arcstate/internal/kv"
	"github.com/arcstate/arcstate/internal/prefs"
	"github.com/arcstate/arcstate/internal/workspace"
)

// Wire messages for missing required arguments. Clients match on these
// exact strings, so they are constants rather than formatted errors.
const (
	msgNameNotSet  = "Name is not set."
	msgValueNotSet = "Value is not set."
)

// SetPreferenceRequest is the JSON request body for PUT /api/preferences.
type SetPreferenceRequest struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// SetWorkspaceRequest is the JSON request body for POST /api/workspace.
type SetWorkspaceRequest struct {
	Value map[string]any `json:"value"`
}

// Config collects the bridge's collaborators.
type Config struct {
	Preferences *prefs.Store
	Workspace   *workspace.Store
	Backend     kv.Store
	Events      *bus.Broadcaster

	// Verifier guards the /api/ routes when non-nil; health stays open.
	Verifier auth.TokenVerifier

	Logger *slog.Logger
}

// Bridge translates the HTTP request/response surface into store calls.
// Each response envelope carries a correlation request_id, the explicit
// result slot clients pair with their request.
type Bridge struct {
	prefs     *prefs.Store
	workspace *workspace.Store
	backend   kv.Store
	events    *bus.Broadcaster
	verifier  auth.TokenVerifier
	logger    *slog.Logger
	started   time.Time
}

// New creates a bridge over the given stores.
func New(cfg Config) *Bridge {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		prefs:     cfg.Preferences,
		workspace: cfg.Workspace,
		backend:   cfg.Backend,
		events:    cfg.Events,
		verifier:  cfg.Verifier,
		logger:    logger.With("component", "bridge"),
		started:   time.Now(),
	}
}

// RegisterRoutes mounts the bridge's routes on mux. When a verifier is
// configured every /api/ route requires a bearer token; the health
// endpoints never do.
func (b *Bridge) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", b.handleHealth)
	mux.HandleFunc("GET /health/ready", b.handleReady)

	api := func(h http.HandlerFunc) http.Handler {
		if b.verifier == nil {
			return h
		}
		return auth.Middleware(b.verifier)(h)
	}

	mux.Handle("GET /api/preferences", api(b.handleLoadPreferences))
	mux.Handle("PUT /api/preferences", api(b.handleSetPreference))
	mux.Handle("DELETE /api/preferences", api(b.handleClearPreferences))
	mux.Handle("GET /api/workspace", api(b.handleLoadWorkspace))
	mux.Handle("POST /api/workspace", api(b.handleSetWorkspace))
	mux.Handle("DELETE /api/workspace", api(b.handleClearWorkspace))
	mux.Handle("GET /api/events", api(b.handleEvents))

	if b.verifier != nil {
		b.logger.Info("bridge auth enabled")
	} else {
		b.logger.Warn("bridge auth disabled")
	}
}

// handleLoadPreferences handles GET /api/preferences requests. Repeated
// scope query parameters restrict the result to those names.
func (b *Bridge) handleLoadPreferences(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query()["scope"]

	values, err := b.prefs.Load(r.Context(), scope...)
	if err != nil {
		b.logger.Error("loading preferences", "error", err)
		b.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	b.sendJSON(w, http.StatusOK, map[string]any{"preferences": values})
}

// handleSetPreference handles PUT /api/preferences requests.
func (b *Bridge) handleSetPreference(w http.ResponseWriter, r *http.Request) {
	var req SetPreferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		b.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Name == "" {
		b.sendJSONError(w, http.StatusBadRequest, msgNameNotSet)
		return
	}

	err := b.prefs.Store(r.Context(), req.Name, req.Value)
	var writeErr *prefs.WriteError
	switch {
	case errors.Is(err, prefs.ErrNameRequired):
		b.sendJSONError(w, http.StatusBadRequest, msgNameNotSet)
	case errors.As(err, &writeErr):
		b.logger.Warn("preference write rejected", "name", req.Name, "error", err)
		b.sendJSONError(w, http.StatusInsufficientStorage, err.Error())
	case err != nil:
		b.logger.Error("storing preference", "name", req.Name, "error", err)
		b.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	default:
		b.sendJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	}
}

// handleClearPreferences handles DELETE /api/preferences requests.
func (b *Bridge) handleClearPreferences(w http.ResponseWriter, r *http.Request) {
	if err := b.prefs.Clear(r.Context()); err != nil {
		b.logger.Error("clearing preferences", "error", err)
		b.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	b.sendJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// handleLoadWorkspace handles GET /api/workspace requests.
func (b *Bridge) handleLoadWorkspace(w http.ResponseWriter, r *http.Request) {
	values, err := b.workspace.Load(r.Context())
	if err != nil {
		b.logger.Error("loading workspace", "error", err)
		b.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	b.sendJSON(w, http.StatusOK, map[string]any{"workspace": values})
}

// handleSetWorkspace handles POST /api/workspace requests. The write is
// fire-and-forget: a 202 means the payload was accepted for the debounced
// flush, whose per-field failures are never reported back.
func (b *Bridge) handleSetWorkspace(w http.ResponseWriter, r *http.Request) {
	var req SetWorkspaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		b.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if len(req.Value) == 0 {
		b.sendJSONError(w, http.StatusBadRequest, msgValueNotSet)
		return
	}

	switch err := b.workspace.Store(req.Value); {
	case errors.Is(err, workspace.ErrValueRequired):
		b.sendJSONError(w, http.StatusBadRequest, msgValueNotSet)
	case errors.Is(err, workspace.ErrClosed):
		b.sendJSONError(w, http.StatusServiceUnavailable, "workspace store closed")
	case err != nil:
		b.logger.Error("storing workspace", "error", err)
		b.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	default:
		b.sendJSON(w, http.StatusAccepted, map[string]any{"status": "accepted"})
	}
}

// handleClearWorkspace handles DELETE /api/workspace requests.
func (b *Bridge) handleClearWorkspace(w http.ResponseWriter, r *http.Request) {
	if err := b.workspace.Clear(r.Context()); err != nil {
		b.logger.Error("clearing workspace", "error", err)
		b.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	b.sendJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// handleHealth handles GET /health requests (liveness).
func (b *Bridge) handleHealth(w http.ResponseWriter, r *http.Request) {
	b.sendJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(b.started).Round(time.Second).String(),
	})
}

// handleReady handles GET /health/ready requests. Ready means the backend
// answers a scan.
func (b *Bridge) handleReady(w http.ResponseWriter, r *http.Request) {
	entries, err := b.backend.Len(r.Context())
	if err != nil {
		b.sendJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}
	b.sendJSON(w, http.StatusOK, map[string]any{
		"status":  "ready",
		"entries": entries,
	})
}

// sendJSON writes a response envelope with a correlation request_id.
func (b *Bridge) sendJSON(w http.ResponseWriter, status int, payload map[string]any) {
	payload["request_id"] = uuid.New().String()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		b.logger.Error("encoding response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (b *Bridge) sendJSONError(w http.ResponseWriter, status int, message string) {
	b.sendJSON(w, status, map[string]any{"error": message})
}

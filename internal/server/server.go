// ABOUTME: Server orchestrator wiring backend, stores, bus, and bridge together
// ABOUTME: Manages the HTTP listener lifecycle and graceful shutdown

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/arcstate/arcstate/internal/auth"
	"github.com/arcstate/arcstate/internal/bridge"
	"github.com/arcstate/arcstate/internal/bus"
	"github.com/arcstate/arcstate/internal/config"
	"github.com/arcstate/arcstate/internal/kv"
	"github.com/arcstate/arcstate/internal/prefs"
	"github.com/arcstate/arcstate/internal/workspace"
)

// Server orchestrates the arcstate components: it opens the configured
// backend, builds the two store facades and the change bus, mounts the
// bridge, and runs the HTTP server.
type Server struct {
	config     *config.Config
	backend    kv.Store
	events     *bus.Broadcaster
	prefs      *prefs.Store
	workspace  *workspace.Store
	httpServer *http.Server
	logger     *slog.Logger
}

// openBackend creates a kv.Store from the storage configuration, creating
// the parent data directory for file-backed backends.
func openBackend(cfg config.StorageConfig) (kv.Store, error) {
	if cfg.Backend != "memory" && cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	switch cfg.Backend {
	case "memory":
		return kv.NewMem(), nil
	case "sqlite":
		return kv.NewSQLite(cfg.Path)
	case "bolt":
		return kv.NewBolt(cfg.Path)
	case "file":
		return kv.NewFile(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// New creates a new Server instance with the given configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	backend, err := openBackend(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("opening %s backend: %w", cfg.Storage.Backend, err)
	}

	events := bus.New(logger)

	prefsStore := prefs.New(backend,
		prefs.WithPrefix(cfg.Preferences.Prefix),
		prefs.WithBus(events),
		prefs.WithLogger(logger),
	)
	workspaceStore := workspace.New(backend,
		workspace.WithPrefix(cfg.Workspace.Prefix),
		workspace.WithFlushDelay(cfg.Workspace.FlushDelay),
		workspace.WithLogger(logger),
	)

	var verifier auth.TokenVerifier
	if cfg.Auth.Enabled {
		v, err := auth.NewVerifier([]byte(cfg.Auth.JWTSecret))
		if err != nil {
			return nil, fmt.Errorf("creating JWT verifier: %w", err)
		}
		verifier = v
	}

	mux := http.NewServeMux()
	bridge.New(bridge.Config{
		Preferences: prefsStore,
		Workspace:   workspaceStore,
		Backend:     backend,
		Events:      events,
		Verifier:    verifier,
		Logger:      logger,
	}).RegisterRoutes(mux)

	return &Server{
		config:    cfg,
		backend:   backend,
		events:    events,
		prefs:     prefsStore,
		workspace: workspaceStore,
		httpServer: &http.Server{
			Addr:              cfg.Server.HTTPAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger.With("component", "server"),
	}, nil
}

// Run starts the server and blocks until the context is canceled or the
// listener fails. Returns nil on graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	// Relay cross-process backend changes for as long as we serve.
	watchCtx, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()
	if err := s.prefs.Watch(watchCtx); err != nil {
		s.logger.Warn("external change relay unavailable", "error", err)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := s.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the run context is already
// canceled by the time this runs.
func (s *Server) gracefulShutdown() error {
	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var firstErr error

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP shutdown", "error", err)
		firstErr = err
	}

	// Closing the workspace store flushes any pending debounced write, so
	// the last state reaches the backend before it closes.
	if err := s.workspace.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	s.events.Close()

	if err := s.backend.Close(); err != nil {
		s.logger.Error("closing backend", "error", err)
		if firstErr == nil {
			firstErr = err
		}
	}

	s.logger.Info("shutdown complete")
	return firstErr
}

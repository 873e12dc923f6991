// ABOUTME: Workspace store facade with a debounced, last-write-wins flush path
// ABOUTME: Batches rapid Store calls so only the final payload reaches the backend

package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/arcstate/arcstate/internal/codec"
	"github.com/arcstate/arcstate/internal/kv"
)

var (
	// ErrValueRequired reports a Store call without a payload.
	ErrValueRequired = errors.New("value is not set")

	// ErrClosed reports a Store call after Close.
	ErrClosed = errors.New("workspace store closed")
)

// DefaultPrefix namespaces workspace entries in the shared store.
const DefaultPrefix = "_arcworkspace"

// DefaultFlushDelay is the debounce window for Store calls.
const DefaultFlushDelay = 500 * time.Millisecond

// Store persists a single composite workspace object, coalescing rapid
// updates: each Store call replaces the pending payload and restarts the
// delay timer, so only the last state inside the window is written.
type Store struct {
	backend kv.Store
	prefix  string
	delay   time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[string]any
	timer   *time.Timer
	gen     uint64
	closed  bool
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithFlushDelay overrides the debounce window.
func WithFlushDelay(delay time.Duration) Option {
	return func(s *Store) { s.delay = delay }
}

// WithLogger overrides the default component logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates a workspace store over backend.
func New(backend kv.Store, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		prefix:  DefaultPrefix,
		delay:   DefaultFlushDelay,
		logger:  slog.Default().With("component", "workspace"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns every workspace field stored under the prefix.
func (s *Store) Load(ctx context.Context) (map[string]any, error) {
	keys, err := s.backend.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanning store: %w", err)
	}

	result := make(map[string]any)
	for _, key := range keys {
		field, ok := strings.CutPrefix(key, s.prefix+".")
		if !ok {
			continue
		}
		raw, ok, err := s.backend.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", key, err)
		}
		if !ok {
			continue
		}
		result[field] = codec.Unwrap(raw)
	}
	return result, nil
}

// Store records value as the pending workspace and (re)arms the debounce
// timer, cancelling any timer already running. It returns after validation
// and scheduling — the actual writes happen when the window elapses, and
// their failures are logged, never returned. An empty value fails
// synchronously with ErrValueRequired before any timer is armed.
func (s *Store) Store(value map[string]any) error {
	if len(value) == 0 {
		return ErrValueRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	s.pending = value
	if s.timer != nil {
		s.timer.Stop()
	}
	// The generation guards against a timer that already fired but lost
	// the race for the lock: its flush must not run after this re-arm.
	s.gen++
	gen := s.gen
	s.timer = time.AfterFunc(s.delay, func() { s.flushAfter(gen) })
	return nil
}

func (s *Store) flushAfter(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.pending == nil {
		s.mu.Unlock()
		return
	}
	value := s.pending
	s.pending = nil
	s.timer = nil
	s.mu.Unlock()

	s.flush(context.Background(), value)
}

// flush writes each field individually. A failed field is skipped and the
// rest still written; the batch has no failure channel.
func (s *Store) flush(ctx context.Context, value map[string]any) {
	written := 0
	for field, v := range value {
		text, err := codec.Wrap(v)
		if err != nil {
			s.logger.Warn("skipping workspace field", "field", field, "error", err)
			continue
		}
		if err := s.backend.Set(ctx, s.prefix+"."+field, text); err != nil {
			s.logger.Warn("skipping workspace field", "field", field, "error", err)
			continue
		}
		written++
	}
	s.logger.Debug("workspace flushed", "fields", written, "of", len(value))
}

// Flush writes any pending payload immediately, cancelling the armed timer.
func (s *Store) Flush(ctx context.Context) {
	s.mu.Lock()
	value := s.pending
	s.pending = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
	s.mu.Unlock()

	if value != nil {
		s.flush(ctx, value)
	}
}

// Clear removes every entry whose key starts with the store's own prefix.
func (s *Store) Clear(ctx context.Context) error {
	keys, err := s.backend.Keys(ctx)
	if err != nil {
		return fmt.Errorf("scanning store: %w", err)
	}

	removed := 0
	for _, key := range keys {
		if !strings.HasPrefix(key, s.prefix) {
			continue
		}
		if err := s.backend.Remove(ctx, key); err != nil {
			return fmt.Errorf("removing %s: %w", key, err)
		}
		removed++
	}

	s.logger.Debug("cleared workspace", "removed", removed)
	return nil
}

// Close flushes any pending payload and stops the timer. Further Store
// calls fail with ErrClosed; Load and Clear keep working against the
// backend.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	value := s.pending
	s.pending = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
	s.mu.Unlock()

	if value != nil {
		// The last state is written rather than dropped, so a shutdown
		// right after a Store call loses nothing.
		s.flush(context.Background(), value)
	}
	return nil
}

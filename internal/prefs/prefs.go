// ABOUTME: Preferences store facade: prefix-scoped Load/Store/Clear over a kv.Store
// ABOUTME: Publishes change notifications and relays cross-context storage events

package prefs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/arcstate/arcstate/internal/bus"
	"github.com/arcstate/arcstate/internal/codec"
	"github.com/arcstate/arcstate/internal/kv"
)

// ErrNameRequired reports a Store call without a preference name.
var ErrNameRequired = errors.New("name is not set")

// DefaultPrefix namespaces preference entries in the shared store.
const DefaultPrefix = "_arc_"

// Topic is the bus topic preference changes are published on.
const Topic = "preferences"

// WriteError reports that the underlying store rejected a preference write,
// e.g. because its quota was exhausted. The cause is available via Unwrap.
type WriteError struct {
	Name string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writing preference %q: %v", e.Name, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Store reads and writes named preferences under one prefix of the shared
// key-value store. Methods are safe for concurrent use when the backend is.
type Store struct {
	backend kv.Store
	prefix  string
	events  *bus.Broadcaster
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithBus sets the broadcaster change notifications are published on.
// Without one, writes still persist but nothing is notified.
func WithBus(events *bus.Broadcaster) Option {
	return func(s *Store) { s.events = events }
}

// WithLogger overrides the default component logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates a preferences store over backend.
func New(backend kv.Store, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		prefix:  DefaultPrefix,
		logger:  slog.Default().With("component", "prefs"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns every preference stored under the prefix. When scope names
// are given, only those preferences are included in the result. Absent
// names are simply absent; the only failure is a backend scan error.
func (s *Store) Load(ctx context.Context, scope ...string) (map[string]any, error) {
	keys, err := s.backend.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanning store: %w", err)
	}

	var include map[string]bool
	if len(scope) > 0 {
		include = make(map[string]bool, len(scope))
		for _, name := range scope {
			include[name] = true
		}
	}

	result := make(map[string]any)
	for _, key := range keys {
		name, ok := strings.CutPrefix(key, s.prefix+".")
		if !ok {
			continue
		}
		if include != nil && !include[name] {
			continue
		}
		raw, ok, err := s.backend.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", key, err)
		}
		if !ok {
			// Removed between scan and read; treat as absent.
			continue
		}
		result[name] = codec.Unwrap(raw)
	}
	return result, nil
}

// Store encodes value and writes it under the prefixed name. On success
// exactly one change notification is published, carrying the original
// logical value rather than its encoded form. A rejected backend write
// surfaces as a *WriteError and publishes nothing.
func (s *Store) Store(ctx context.Context, name string, value any) error {
	if name == "" {
		return ErrNameRequired
	}

	text, err := codec.Wrap(value)
	if err != nil {
		return fmt.Errorf("encoding preference %q: %w", name, err)
	}

	if err := s.backend.Set(ctx, s.prefix+"."+name, text); err != nil {
		return &WriteError{Name: name, Err: err}
	}

	s.logger.Debug("stored preference", "name", name)
	s.publish(name, value, bus.OriginLocal)
	return nil
}

// Clear removes every entry whose key starts with the store's prefix.
//
// The match is against the bare prefix, not prefix+".": a prefix that is a
// leading substring of another store's prefix (say "_arc" next to
// "_arcworkspace") sweeps that store's entries too. Kept as-is for
// compatibility with data written by earlier releases; configure prefixes
// that do not extend one another.
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

	s.logger.Debug("cleared preferences", "removed", removed)
	return nil
}

// Watch relays cross-context changes from the backend onto the bus until
// ctx is done. It returns immediately when the backend cannot report
// external changes or no bus is configured.
func (s *Store) Watch(ctx context.Context) error {
	if s.events == nil {
		return nil
	}
	notifier, ok := s.backend.(kv.Notifier)
	if !ok {
		return nil
	}

	events, err := notifier.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watching backend: %w", err)
	}

	go s.relay(ctx, notifier.Area(), events)
	return nil
}

// relay re-emits native storage events for this store's own area and
// namespace so in-process listeners observe cross-context writes without
// polling.
func (s *Store) relay(ctx context.Context, area string, events <-chan kv.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Area != area {
				continue
			}
			name, ok := strings.CutPrefix(ev.Key, s.prefix+".")
			if !ok {
				continue
			}
			var value any
			if !ev.Removed {
				value = codec.Unwrap(ev.Value)
			}
			s.logger.Debug("relaying external change", "name", name)
			s.publish(name, value, bus.OriginExternal)
		}
	}
}

func (s *Store) publish(name string, value any, origin string) {
	if s.events == nil {
		return
	}
	s.events.Publish(Topic, &bus.Change{
		Store:  Topic,
		Key:    name,
		Value:  value,
		Origin: origin,
		Time:   time.Now(),
	}, "")
}

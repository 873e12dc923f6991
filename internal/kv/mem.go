// ABOUTME: In-memory implementation of the Store interface with an optional byte quota
// ABOUTME: Emit injects external change events, simulating writes from other contexts

package kv

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// watchBufferSize is the per-watcher event buffer. Slow watchers drop
// events rather than block writers.
const watchBufferSize = 16

// Mem is a map-backed Store safe for concurrent use. Construct with NewMem.
type Mem struct {
	area  string
	quota int

	mu       sync.RWMutex
	entries  map[string]string
	size     int
	watchers map[string]chan Event
	closed   bool
}

// MemOption configures a Mem store.
type MemOption func(*Mem)

// WithArea sets the storage area name reported on events. Defaults to "local".
func WithArea(area string) MemOption {
	return func(m *Mem) { m.area = area }
}

// WithQuota caps the total bytes of keys plus values. A write that would
// exceed the cap fails with ErrWriteRejected. Zero means unlimited.
func WithQuota(maxBytes int) MemOption {
	return func(m *Mem) { m.quota = maxBytes }
}

// NewMem creates an empty in-memory store.
func NewMem(opts ...MemOption) *Mem {
	m := &Mem{
		area:     "local",
		entries:  make(map[string]string),
		watchers: make(map[string]chan Event),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Len reports the number of entries.
func (m *Mem) Len(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

// Keys returns every key, sorted for a stable ordinal order.
func (m *Mem) Keys(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.entries))
	for key := range m.entries {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys, nil
}

// Get returns the value stored under key.
func (m *Mem) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.entries[key]
	return value, ok, nil
}

// Set stores value under key, enforcing the byte quota when one is set.
func (m *Mem) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	newSize := m.size + len(key) + len(value)
	if existing, ok := m.entries[key]; ok {
		newSize -= len(key) + len(existing)
	}
	if m.quota > 0 && newSize > m.quota {
		return fmt.Errorf("%w: %d byte quota exceeded", ErrWriteRejected, m.quota)
	}

	m.entries[key] = value
	m.size = newSize
	return nil
}

// Remove deletes the entry under key.
func (m *Mem) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if existing, ok := m.entries[key]; ok {
		m.size -= len(key) + len(existing)
		delete(m.entries, key)
	}
	return nil
}

// Area names the storage area events are reported against.
func (m *Mem) Area() string {
	return m.area
}

// Watch delivers injected external events until ctx is done.
func (m *Mem) Watch(ctx context.Context) (<-chan Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}

	ch := make(chan Event, watchBufferSize)
	id := uuid.New().String()
	m.watchers[id] = ch

	go func() {
		<-ctx.Done()
		m.removeWatcher(id)
	}()

	return ch, nil
}

// Emit delivers an external change event to every watcher. The store never
// emits its own writes; Emit exists so callers sharing an area out of band
// (and tests standing in for other execution contexts) can relay theirs.
// An empty Area is filled in with the store's own.
func (m *Mem) Emit(ev Event) {
	if ev.Area == "" {
		ev.Area = m.area
	}

	// Sending under the read lock keeps removeWatcher from closing a
	// channel mid-send.
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, ch := range m.watchers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close marks the store closed and ends every watch subscription.
func (m *Mem) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	for id, ch := range m.watchers {
		close(ch)
		delete(m.watchers, id)
	}
	return nil
}

func (m *Mem) removeWatcher(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ch, ok := m.watchers[id]; ok {
		close(ch)
		delete(m.watchers, id)
	}
}

var _ Store = (*Mem)(nil)
var _ Notifier = (*Mem)(nil)

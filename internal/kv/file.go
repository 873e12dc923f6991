// ABOUTME: Flat-file implementation of the Store interface, one JSON document per store
// ABOUTME: Atomic temp+rename writes and an fsnotify watcher for cross-process changes

package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

// sweepInterval is how often the watch loop folds accumulated filesystem
// events into a single re-read and diff.
const sweepInterval = 200 * time.Millisecond

// File stores all entries in one JSON document on disk. Every mutation
// rewrites the document atomically (temp file + rename). External writers
// replacing the same document are observed via fsnotify and surfaced as
// change events; the handle's own writes produce no events because the
// re-read matches the in-memory image.
type File struct {
	path   string
	logger *slog.Logger

	mu       sync.RWMutex
	entries  map[string]string
	watchers map[string]chan Event
	closed   bool

	watchOnce sync.Once
	watchErr  error
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewFile opens (or creates) the document at path. A missing file starts
// the store empty; parent directories are created as needed.
func NewFile(path string) (*File, error) {
	logger := slog.Default().With("component", "kv.file")

	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	entries, err := readDocument(path)
	if err != nil {
		return nil, err
	}

	logger.Info("file store initialized", "path", path, "entries", len(entries))
	return &File{
		path:     path,
		logger:   logger,
		entries:  entries,
		watchers: make(map[string]chan Event),
	}, nil
}

func readDocument(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}

	entries := make(map[string]string)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("parsing document: %w", err)
		}
	}
	return entries, nil
}

// Len reports the number of entries.
func (f *File) Len(ctx context.Context) (int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries), nil
}

// Keys returns every key, sorted for a stable ordinal order.
func (f *File) Keys(ctx context.Context) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	keys := make([]string, 0, len(f.entries))
	for key := range f.entries {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys, nil
}

// Get returns the value stored under key.
func (f *File) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	value, ok := f.entries[key]
	return value, ok, nil
}

// Set stores value under key and rewrites the document. A failed rewrite
// leaves the store as it was.
func (f *File) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}

	prev, had := f.entries[key]
	f.entries[key] = value
	if err := f.persistLocked(); err != nil {
		if had {
			f.entries[key] = prev
		} else {
			delete(f.entries, key)
		}
		return err
	}
	return nil
}

// Remove deletes the entry under key and rewrites the document.
func (f *File) Remove(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrClosed
	}

	prev, had := f.entries[key]
	if !had {
		return nil
	}
	delete(f.entries, key)
	if err := f.persistLocked(); err != nil {
		f.entries[key] = prev
		return err
	}
	return nil
}

// persistLocked writes the document atomically. Callers hold f.mu.
func (f *File) persistLocked() error {
	data, err := json.MarshalIndent(f.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".arcstate-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing document: %w", err)
	}
	return nil
}

// Area names the storage area events are reported against.
func (f *File) Area() string {
	return f.path
}

// Watch delivers change events for external modifications of the document
// until ctx is done. The filesystem watcher starts on first use.
func (f *File) Watch(ctx context.Context) (<-chan Event, error) {
	f.watchOnce.Do(f.startWatch)
	if f.watchErr != nil {
		return nil, f.watchErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrClosed
	}

	ch := make(chan Event, watchBufferSize)
	id := uuid.New().String()
	f.watchers[id] = ch

	go func() {
		<-ctx.Done()
		f.removeWatcher(id)
	}()

	return ch, nil
}

func (f *File) startWatch() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		f.watchErr = ErrClosed
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		f.watchErr = fmt.Errorf("creating watcher: %w", err)
		return
	}
	// Watch the directory, not the file: atomic rename replaces the inode
	// and a direct file watch would go stale after the first swap.
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		watcher.Close()
		f.watchErr = fmt.Errorf("watching data directory: %w", err)
		return
	}

	f.stopCh = make(chan struct{})
	f.doneCh = make(chan struct{})
	go f.runWatch(watcher)
}

func (f *File) runWatch(watcher *fsnotify.Watcher) {
	defer close(f.doneCh)
	defer watcher.Close()

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	dirty := false
	for {
		select {
		case <-f.stopCh:
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != f.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				dirty = true
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			f.logger.Warn("watch error", "error", err)
		case <-ticker.C:
			if dirty {
				dirty = false
				f.sweep()
			}
		}
	}
}

// sweep re-reads the document and emits an event per key that differs from
// the in-memory image. After a self-write the re-read matches the image, so
// own writes never produce events.
func (f *File) sweep() {
	f.mu.Lock()
	loaded, err := readDocument(f.path)
	if err != nil {
		f.mu.Unlock()
		f.logger.Warn("rereading document after change", "error", err)
		return
	}

	var events []Event
	for key, value := range loaded {
		if prev, ok := f.entries[key]; !ok || prev != value {
			events = append(events, Event{Area: f.path, Key: key, Value: value})
		}
	}
	for key := range f.entries {
		if _, ok := loaded[key]; !ok {
			events = append(events, Event{Area: f.path, Key: key, Removed: true})
		}
	}
	f.entries = loaded
	f.mu.Unlock()

	for _, ev := range events {
		f.emit(ev)
	}
	if len(events) > 0 {
		f.logger.Debug("external change observed", "events", len(events))
	}
}

func (f *File) emit(ev Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, ch := range f.watchers {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (f *File) removeWatcher(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if ch, ok := f.watchers[id]; ok {
		close(ch)
		delete(f.watchers, id)
	}
}

// Close stops the watcher and ends every watch subscription. The document
// itself needs no close; every mutation already left it complete on disk.
func (f *File) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	for id, ch := range f.watchers {
		close(ch)
		delete(f.watchers, id)
	}
	stopCh, doneCh := f.stopCh, f.doneCh
	f.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-doneCh
	}
	return nil
}

var _ Store = (*File)(nil)
var _ Notifier = (*File)(nil)

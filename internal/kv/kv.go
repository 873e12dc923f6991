// ABOUTME: Store interface and change-notification contract for key-value backends
// ABOUTME: Defines the Event type plus the sentinel errors backends return

package kv

import (
	"context"
	"errors"
)

var (
	// ErrWriteRejected indicates the backend refused a write, e.g. because
	// a quota was exhausted.
	ErrWriteRejected = errors.New("write rejected")

	// ErrClosed indicates an operation on a closed store.
	ErrClosed = errors.New("store closed")
)

// Store is the synchronous string-keyed storage facility backing the state
// facades. Implementations must be safe for concurrent use.
type Store interface {
	// Len reports the number of entries.
	Len(ctx context.Context) (int, error)

	// Keys returns a snapshot of every key. Keys()[i] is the key at
	// ordinal position i; no ordering guarantee beyond being stable
	// within a single call.
	Keys(ctx context.Context) ([]string, error)

	// Get returns the raw value stored under key. ok is false when the
	// key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key, overwriting any existing entry. It may
	// fail; quota-style rejections satisfy errors.Is(err, ErrWriteRejected).
	Set(ctx context.Context, key, value string) error

	// Remove deletes the entry under key. Removing an absent key is not
	// an error.
	Remove(ctx context.Context, key string) error

	// Close releases the backing resource.
	Close() error
}

// Event describes a write observed on a storage area shared with another
// handle or process. Value holds the new raw text; Removed marks deletions.
type Event struct {
	Area    string `json:"area"`
	Key     string `json:"key"`
	Value   string `json:"value"`
	Removed bool   `json:"removed"`
}

// Notifier is implemented by stores that can report external changes to
// their storage area. A handle's own writes never appear on its own watch
// channel.
type Notifier interface {
	// Area names the storage area this store reads and writes, e.g. a
	// file path. Consumers compare it against Event.Area to discard
	// notifications for areas they do not own.
	Area() string

	// Watch delivers external change events until ctx is done. The
	// returned channel is closed when the subscription ends.
	Watch(ctx context.Context) (<-chan Event, error)
}

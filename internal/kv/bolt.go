// ABOUTME: bbolt implementation of the Store interface using a single bucket
// ABOUTME: Update/View transactions over a memory-mapped file database

package kv

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var boltBucket = []byte("entries")

// Bolt stores entries in one bucket of a bbolt database file.
type Bolt struct {
	db     *bbolt.DB
	area   string
	logger *slog.Logger
}

// NewBolt opens (or creates) the database file at path. The open times out
// after one second when another process holds the file lock.
func NewBolt(path string) (*Bolt, error) {
	logger := slog.Default().With("component", "kv.bolt")

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating bucket: %w", err)
	}

	logger.Info("bolt store initialized", "path", path)
	return &Bolt{db: db, area: path, logger: logger}, nil
}

// Len reports the number of entries.
func (b *Bolt) Len(ctx context.Context) (int, error) {
	var count int
	err := b.db.View(func(tx *bbolt.Tx) error {
		count = tx.Bucket(boltBucket).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("counting entries: %w", err)
	}
	return count, nil
}

// Keys returns every key in bucket order.
func (b *Bolt) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(boltBucket).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	return keys, nil
}

// Get returns the value stored under key.
func (b *Bolt) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	var found bool
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(boltBucket).Get([]byte(key))
		if data != nil {
			value = string(data)
			found = true
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("reading entry: %w", err)
	}
	return value, found, nil
}

// Set stores value under key, overwriting any existing entry.
func (b *Bolt) Set(ctx context.Context, key, value string) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(boltBucket).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return fmt.Errorf("writing entry: %w", err)
	}

	b.logger.Debug("stored entry", "key", key, "size", len(value))
	return nil
}

// Remove deletes the entry under key.
func (b *Bolt) Remove(ctx context.Context, key string) error {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(boltBucket).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("deleting entry: %w", err)
	}

	b.logger.Debug("removed entry", "key", key)
	return nil
}

// Close closes the database file.
func (b *Bolt) Close() error {
	b.logger.Info("closing bolt store")
	return b.db.Close()
}

var _ Store = (*Bolt)(nil)

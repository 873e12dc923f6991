// Package kv defines the underlying key-value store the state facades
// persist into, plus the backends that implement it.
//
// # Contract
//
// Store is a synchronous string-keyed storage facility:
//
//   - Len/Keys: ordinal enumeration of every entry (Keys()[i] is the key at
//     position i)
//   - Get/Set/Remove: single-entry operations; Set may fail, e.g. when a
//     quota is exhausted
//   - Close: releases the backing resource
//
// All implementations are safe for concurrent use. The facades layer their
// prefix conventions and value codec on top; backends store opaque strings
// and never interpret them.
//
// # Backends
//
//   - Mem: mutex-guarded map with an optional byte quota. Used by tests and
//     ephemeral deployments; the quota makes write rejection reproducible.
//   - SQLite: single entries table via modernc.org/sqlite, WAL journaling,
//     schema created on open, ":memory:" supported.
//   - Bolt: one bbolt bucket, update/view transactions.
//   - File: whole-store JSON document written atomically (temp file +
//     rename), watchable for cross-process changes.
//
// # Change notifications
//
// Notifier is an optional second interface: backends that can observe
// writes made by other handles or processes expose Watch, delivering Event
// values describing the area, key, and new raw value. A handle never sees
// its own writes on its own watch channel; events exist to mirror what
// other contexts did. Mem lets callers inject events directly (Emit), and
// File derives them by re-reading and diffing the document when the file
// changes on disk.
package kv

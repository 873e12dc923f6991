// Package workspace implements the workspace store: one composite mapping
// of named fields persisted under a prefix, with rapid successive writes
// coalesced through a debounced flush.
//
// Store is fire-and-forget: it validates, replaces the pending payload,
// re-arms a single-slot timer, and returns before anything touches the
// backend. Only the last payload inside the delay window is flushed;
// per-field write failures during a flush are logged and skipped, never
// surfaced. Close flushes whatever is still pending so teardown does not
// lose the last state.
package workspace

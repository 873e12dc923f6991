// Package server wires the configured backend, the store facades, the
// change bus, and the bridge into one running HTTP daemon, and owns their
// shutdown order: the HTTP listener drains first, then the workspace store
// flushes its pending write, then the bus and backend close.
package server

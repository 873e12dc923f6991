// Package client is the Go client for the arcstate bridge API, used by the
// admin CLI. It wraps the preferences and workspace routes with typed
// methods and consumes the SSE change feed.
package client

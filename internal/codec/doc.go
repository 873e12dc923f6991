// Package codec converts logical values to and from the JSON envelope text
// persisted in the underlying key-value store, preserving type identity.
package codec

// Package prefs implements the preferences store: a flat mapping of named
// values persisted under one prefix of the shared key-value store.
//
// Load scans the prefix and decodes each entry through the codec, optionally
// scoped to a subset of names. Store writes exactly one entry per call and
// publishes one change notification carrying the original logical value.
// Clear sweeps the bare prefix (see its warning about overlapping prefixes).
// When the backend can report external writes, Watch relays them onto the
// bus so in-process listeners observe other contexts without polling.
package prefs

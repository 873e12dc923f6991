// ABOUTME: Wrap/Unwrap pair for stored entries using a {"value": ...} JSON envelope
// ABOUTME: The envelope distinguishes a stored null from an absent key and 12 from "12"

package codec

import (
	"encoding/json"
	"fmt"
)

// envelope is the stored form of every non-nil value. Wrapping the value in
// an object keeps its JSON type intact across the string-only store.
type envelope struct {
	Value any `json:"value"`
}

// Wrap encodes value into its stored text form.
//
// A nil value passes through unwrapped: it is represented as the empty
// string rather than a JSON envelope. Unwrap treats the empty string the
// same way, so nil round-trips exactly. Every other value becomes the JSON
// text of {"value": v}. Values that cannot be serialized (channels, cycles)
// return an error.
func Wrap(value any) (string, error) {
	if value == nil {
		return "", nil
	}
	data, err := json.Marshal(envelope{Value: value})
	if err != nil {
		return "", fmt.Errorf("encoding value: %w", err)
	}
	return string(data), nil
}

// Unwrap decodes stored text back into a logical value.
//
// The empty string passes through as nil, mirroring Wrap. Anything else is
// parsed as a JSON envelope and its value field returned; numbers come back
// as float64, objects as map[string]any, arrays as []any. Malformed text
// yields nil — decode errors are swallowed, never surfaced, so a corrupt
// entry reads as an unset value rather than an error.
func Unwrap(stored string) any {
	if stored == "" {
		return nil
	}
	var env envelope
	if err := json.Unmarshal([]byte(stored), &env); err != nil {
		return nil
	}
	return env.Value
}

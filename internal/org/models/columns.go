package models

import (
	"encoding/json"
)

// JSON column decoding.
//
// Stored JSON columns are decoded with a fixed contract: parse as an array (or
// object) of the expected element type; when the column is absent or malformed,
// substitute the empty default. This keeps reads available when a row was written
// by an older or buggy writer, at the cost of masking that corruption, so callers
// that care should compare lengths against their own expectations.

// DecodeVerificationModes parses a JSON array of modes. Unknown modes are dropped.
func DecodeVerificationModes(raw []byte) []VerificationMode {
	var values []string
	if !decodeJSON(raw, &values) {
		return []VerificationMode{}
	}
	modes := make([]VerificationMode, 0, len(values))
	for _, v := range values {
		if m := VerificationMode(v); m.IsValid() {
			modes = append(modes, m)
		}
	}
	return dedupeModes(modes)
}

// DecodeRootHistory parses a JSON array of hex roots. Any element that is not a
// 32-byte hex string makes the whole column fall back to empty.
func DecodeRootHistory(raw []byte) []TreeRoot {
	var values []string
	if !decodeJSON(raw, &values) {
		return []TreeRoot{}
	}
	roots := make([]TreeRoot, 0, len(values))
	for _, v := range values {
		r, err := ParseTreeRootHex(v)
		if err != nil {
			return []TreeRoot{}
		}
		roots = append(roots, r)
	}
	return roots
}

// DecodeSettings parses a JSON object.
func DecodeSettings(raw []byte) map[string]any {
	var settings map[string]any
	if !decodeJSON(raw, &settings) || settings == nil {
		return map[string]any{}
	}
	return settings
}

// EncodeRootHistory renders roots as the JSON array stored in tree_roots_history.
func EncodeRootHistory(roots []TreeRoot) []byte {
	values := make([]string, len(roots))
	for i, r := range roots {
		values[i] = r.Hex()
	}
	b, _ := json.Marshal(values)
	return b
}

// EncodeVerificationModes renders modes as a JSON array.
func EncodeVerificationModes(modes []VerificationMode) []byte {
	if modes == nil {
		modes = []VerificationMode{}
	}
	b, _ := json.Marshal(modes)
	return b
}

// EncodeSettings renders settings as a JSON object.
func EncodeSettings(settings map[string]any) ([]byte, error) {
	if settings == nil {
		settings = map[string]any{}
	}
	return json.Marshal(settings)
}

// decodeJSON accepts raw JSON or a JSON document that was itself stored as a JSON
// string (double encoded), which older writers produced.
func decodeJSON(raw []byte, target any) bool {
	if len(raw) == 0 || string(raw) == "null" {
		return false
	}
	if err := json.Unmarshal(raw, target); err == nil {
		return true
	}
	var inner string
	if err := json.Unmarshal(raw, &inner); err != nil {
		return false
	}
	return json.Unmarshal([]byte(inner), target) == nil
}

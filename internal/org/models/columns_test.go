package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Malformed or absent JSON columns fall back to empty defaults instead of failing
// the read. These tests pin that fallback so it stays deliberate.
func TestDecodeRootHistory(t *testing.T) {
	aa := strings.Repeat("aa", 32)
	bb := strings.Repeat("bb", 32)

	tests := []struct {
		name string
		raw  string
		want []TreeRoot
	}{
		{"array of hex", `["` + bb + `","` + aa + `"]`, []TreeRoot{rootOf(0xbb), rootOf(0xaa)}},
		{"double encoded", `"[\"` + aa + `\"]"`, []TreeRoot{rootOf(0xaa)}},
		{"bytea text form", `["\\x` + aa + `"]`, []TreeRoot{rootOf(0xaa)}},
		{"absent", ``, []TreeRoot{}},
		{"null", `null`, []TreeRoot{}},
		{"malformed json", `[not json`, []TreeRoot{}},
		{"wrong element type", `[1, 2]`, []TreeRoot{}},
		{"short root", `["abcd"]`, []TreeRoot{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeRootHistory([]byte(tt.raw)))
		})
	}
}

func TestDecodeVerificationModes(t *testing.T) {
	assert.Equal(t, []VerificationMode{ModeVC, ModeZKEmail}, DecodeVerificationModes([]byte(`["vc","zkEmail","other"]`)))
	assert.Equal(t, []VerificationMode{ModeVC}, DecodeVerificationModes([]byte(`"[\"vc\"]"`)))
	assert.Equal(t, []VerificationMode{}, DecodeVerificationModes([]byte(`{}`)))
	assert.Equal(t, []VerificationMode{}, DecodeVerificationModes(nil))
}

func TestDecodeSettings(t *testing.T) {
	assert.Equal(t, map[string]any{"theme": "dark"}, DecodeSettings([]byte(`{"theme":"dark"}`)))
	assert.Equal(t, map[string]any{}, DecodeSettings([]byte(`[]`)))
	assert.Equal(t, map[string]any{}, DecodeSettings([]byte(`null`)))
}

func TestEncodeRootHistoryRoundTrip(t *testing.T) {
	roots := []TreeRoot{rootOf(2), rootOf(1)}
	assert.Equal(t, roots, DecodeRootHistory(EncodeRootHistory(roots)))
	assert.Equal(t, `[]`, string(EncodeRootHistory(nil)))
}

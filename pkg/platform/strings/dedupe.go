// Package strings holds small helpers for cleaning user-supplied string lists.
package strings

import "strings"

// DedupeAndTrim trims each value, drops empties and keeps the first occurrence
// of each remaining value in order.
func DedupeAndTrim(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{name: "nil", in: nil, want: []string{}},
		{name: "trims and drops empties", in: []string{" vc ", "", "  "}, want: []string{"vc"}},
		{name: "keeps first occurrence order", in: []string{"zkEmail", "vc", "zkEmail ", "vc"}, want: []string{"zkEmail", "vc"}},
		{name: "case sensitive", in: []string{"vc", "VC"}, want: []string{"vc", "VC"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DedupeAndTrim(tt.in))
		})
	}
}

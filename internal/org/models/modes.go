package models

import (
	dErrors "zkworkspace/pkg/domain-errors"
	platformstrings "zkworkspace/pkg/platform/strings"
)

// VerificationMode is how members of an organization prove eligibility.
type VerificationMode string

const (
	ModeVC      VerificationMode = "vc"
	ModeZKEmail VerificationMode = "zkEmail"
)

func (m VerificationMode) IsValid() bool {
	switch m {
	case ModeVC, ModeZKEmail:
		return true
	}
	return false
}

// ParseVerificationModes validates raw modes against the closed enum after
// trimming. Blank entries are ignored and duplicates collapse, first occurrence
// wins.
func ParseVerificationModes(raw []string) ([]VerificationMode, error) {
	cleaned := platformstrings.DedupeAndTrim(raw)
	modes := make([]VerificationMode, 0, len(cleaned))
	for _, r := range cleaned {
		m := VerificationMode(r)
		if !m.IsValid() {
			return nil, dErrors.New(dErrors.CodeValidation, "unsupported verification mode: "+r)
		}
		modes = append(modes, m)
	}
	return modes, nil
}

func dedupeModes(modes []VerificationMode) []VerificationMode {
	seen := make(map[VerificationMode]struct{}, len(modes))
	out := make([]VerificationMode, 0, len(modes))
	for _, m := range modes {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

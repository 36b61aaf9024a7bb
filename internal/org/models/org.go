package models

import (
	"encoding/hex"
	"strings"
	"time"

	id "zkworkspace/pkg/domain"
	dErrors "zkworkspace/pkg/domain-errors"
)

// TreeRootSize is the fixed length of a Merkle root in bytes.
const TreeRootSize = 32

// TreeRoot is an organization's Merkle root over member commitments.
type TreeRoot [TreeRootSize]byte

// ParseTreeRoot accepts exactly TreeRootSize bytes.
func ParseTreeRoot(b []byte) (TreeRoot, error) {
	var r TreeRoot
	if len(b) != TreeRootSize {
		return r, dErrors.New(dErrors.CodeValidation, "tree root must be 32 bytes")
	}
	copy(r[:], b)
	return r, nil
}

// ParseTreeRootHex decodes a hex root. A leading "\x" (Postgres bytea text form)
// is tolerated.
func ParseTreeRootHex(s string) (TreeRoot, error) {
	s = strings.TrimPrefix(s, `\x`)
	b, err := hex.DecodeString(s)
	if err != nil {
		return TreeRoot{}, dErrors.New(dErrors.CodeValidation, "tree root must be hex encoded")
	}
	return ParseTreeRoot(b)
}

func (r TreeRoot) Hex() string {
	return hex.EncodeToString(r[:])
}

func (r TreeRoot) Bytes() []byte {
	return append([]byte(nil), r[:]...)
}

func (r TreeRoot) MarshalText() ([]byte, error) {
	return []byte(r.Hex()), nil
}

func (r *TreeRoot) UnmarshalText(b []byte) error {
	parsed, err := ParseTreeRootHex(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Organization is the aggregate root for an enrolled organization.
//
// Invariants:
//   - Name is non-empty and at most 128 characters
//   - Domain is a bare hostname, unique across organizations, stored as given
//   - VerificationModes is a set drawn from the closed VerificationMode enum
//   - TreeRootsHistory is most-recent-first and only ever grows at the front;
//     RotateRoot pushes the previous current root to position 0
//   - ID and CreatedAt are immutable after construction
type Organization struct {
	ID                id.OrgID           `json:"id"`
	Name              string             `json:"name"`
	Domain            string             `json:"domain"`
	VerificationModes []VerificationMode `json:"verification_modes"`
	TreeRootCurrent   TreeRoot           `json:"tree_root_current"`
	TreeRootsHistory  []TreeRoot         `json:"tree_roots_history"`
	Settings          map[string]any     `json:"settings"`
	CreatedAt         time.Time          `json:"created_at"`
}

// NewOrganization validates inputs and returns a fresh organization with an empty
// root history.
func NewOrganization(orgID id.OrgID, name, domain string, modes []VerificationMode, root TreeRoot, settings map[string]any, now time.Time) (*Organization, error) {
	if orgID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "organization id cannot be nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "organization name cannot be empty")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "organization name must be 128 characters or less")
	}
	domain, err := ValidateDomain(domain)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		settings = map[string]any{}
	}
	return &Organization{
		ID:                orgID,
		Name:              name,
		Domain:            domain,
		VerificationModes: dedupeModes(modes),
		TreeRootCurrent:   root,
		TreeRootsHistory:  []TreeRoot{},
		Settings:          settings,
		CreatedAt:         now,
	}, nil
}

// RotateRoot installs next as the current root and pushes the previous one to the
// front of the history.
func (o *Organization) RotateRoot(next TreeRoot) {
	history := make([]TreeRoot, 0, len(o.TreeRootsHistory)+1)
	history = append(history, o.TreeRootCurrent)
	history = append(history, o.TreeRootsHistory...)
	o.TreeRootsHistory = history
	o.TreeRootCurrent = next
}

// ValidateDomain checks that domain looks like a bare hostname. The value is not
// normalized (no case folding, no trailing dot removal, no punycode): the challenge
// hostname is derived from it literally.
func ValidateDomain(domain string) (string, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return "", dErrors.New(dErrors.CodeValidation, "domain is required")
	}
	if len(domain) > 253 {
		return "", dErrors.New(dErrors.CodeValidation, "domain must be 253 characters or less")
	}
	if strings.ContainsAny(domain, " \t\r\n/:@?#") {
		return "", dErrors.New(dErrors.CodeValidation, "domain must be a bare hostname")
	}
	if !strings.Contains(domain, ".") {
		return "", dErrors.New(dErrors.CodeValidation, "domain must contain a dot")
	}
	return domain, nil
}

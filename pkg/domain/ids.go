package domain

import (
	"github.com/google/uuid"

	dErrors "zkworkspace/pkg/domain-errors"
)

// OrgID identifies an organization. It is a distinct type so that an org id cannot
// be passed where another uuid is expected.
type OrgID uuid.UUID

// NewOrgID returns a random organization id.
func NewOrgID() OrgID {
	return OrgID(uuid.New())
}

// ParseOrgID parses a textual id at a trust boundary. Empty, malformed, and nil
// UUIDs are rejected.
func ParseOrgID(s string) (OrgID, error) {
	if s == "" {
		return OrgID{}, dErrors.New(dErrors.CodeValidation, "org id is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return OrgID{}, dErrors.New(dErrors.CodeValidation, "org id must be a valid uuid")
	}
	if u == uuid.Nil {
		return OrgID{}, dErrors.New(dErrors.CodeValidation, "org id must not be nil")
	}
	return OrgID(u), nil
}

func (id OrgID) String() string {
	return uuid.UUID(id).String()
}

func (id OrgID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id OrgID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

func (id *OrgID) UnmarshalText(b []byte) error {
	var u uuid.UUID
	if err := u.UnmarshalText(b); err != nil {
		return err
	}
	*id = OrgID(u)
	return nil
}

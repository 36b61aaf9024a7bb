package models

import (
	"time"

	orgmodels "zkworkspace/internal/org/models"
	id "zkworkspace/pkg/domain"
	dErrors "zkworkspace/pkg/domain-errors"
)

// NoLeaves is returned as the latest leaf index of an empty ledger, so that
// latest+1 is always the next index to allocate.
const NoLeaves int64 = -1

// MaxCommitmentSize bounds stored commitments.
const MaxCommitmentSize = 1024

// Member is one row of an organization's ledger. The commitment is the only thing
// the system knows about the member. Rows are immutable once written.
//
// Invariant: for a fixed OrgID the set of LeafIndex values is exactly {0..N-1}.
type Member struct {
	OrgID      id.OrgID  `json:"org_id"`
	LeafIndex  int64     `json:"leaf_index"`
	Commitment []byte    `json:"commitment"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

// EnrollRequest admits a member into the ledger of the organization owning Domain
// and rotates that organization's root to NewTreeRoot.
type EnrollRequest struct {
	Domain      string
	Commitment  []byte
	NewTreeRoot []byte
}

// Validate rejects malformed input before any write. It returns the parsed root.
func (r *EnrollRequest) Validate() (orgmodels.TreeRoot, error) {
	if r.Domain == "" {
		return orgmodels.TreeRoot{}, dErrors.New(dErrors.CodeValidation, "domain is required")
	}
	if len(r.Commitment) == 0 {
		return orgmodels.TreeRoot{}, dErrors.New(dErrors.CodeValidation, "member commitment is required")
	}
	if len(r.Commitment) > MaxCommitmentSize {
		return orgmodels.TreeRoot{}, dErrors.New(dErrors.CodeValidation, "member commitment is too large")
	}
	return orgmodels.ParseTreeRoot(r.NewTreeRoot)
}

// Enrollment is the outcome of a successful admission.
type Enrollment struct {
	OrgID     id.OrgID           `json:"org_id"`
	LeafIndex int64              `json:"leaf_index"`
	TreeRoot  orgmodels.TreeRoot `json:"tree_root"`
}

package audit

import (
	"time"

	"github.com/google/uuid"

	id "zkworkspace/pkg/domain"
)

// Action names an audited state change. Events never carry member commitments or
// any member identity; the ledger position is the only member-level detail.
type Action string

const (
	ActionOrgCreated            Action = "org_created"
	ActionDomainChallengeIssued Action = "domain_challenge_issued"
	ActionDomainVerified        Action = "domain_verified"
	ActionMemberEnrolled        Action = "member_enrolled"
)

// Event is emitted from service logic inside the unit of work that made the change,
// so it commits or rolls back together with it.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Action    Action    `json:"action"`
	OrgID     id.OrgID  `json:"org_id"`
	LeafIndex *int64    `json:"leaf_index,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// OutboxEntry is a stored event awaiting publication.
type OutboxEntry struct {
	Seq   int64
	Event Event
}

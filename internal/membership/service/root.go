package service

import (
	"context"
	"log/slog"

	orgmodels "zkworkspace/internal/org/models"
	id "zkworkspace/pkg/domain"
)

// RootTransition describes a root rotation proposed by an enrollment: the member
// at LeafIndex with Commitment is being appended, moving the organization from
// PreviousRoot to NewRoot.
type RootTransition struct {
	OrgID        id.OrgID
	LeafIndex    int64
	Commitment   []byte
	PreviousRoot orgmodels.TreeRoot
	NewRoot      orgmodels.TreeRoot
}

// RootValidator decides whether NewRoot is an acceptable successor. It runs
// inside the enrollment transaction after the ledger lock is held; a non-nil
// error aborts the enrollment and rolls back the appended row.
type RootValidator interface {
	ValidateRoot(ctx context.Context, t RootTransition) error
}

// AcceptAnyRoot trusts the client-supplied root. Clients compute the tree
// locally; the server only records what it was given.
type AcceptAnyRoot struct {
	Logger *slog.Logger
}

func (a AcceptAnyRoot) ValidateRoot(ctx context.Context, t RootTransition) error {
	if a.Logger != nil {
		a.Logger.DebugContext(ctx, "tree root accepted without recomputation",
			"org_id", t.OrgID.String(),
			"leaf_index", t.LeafIndex,
			"new_root", t.NewRoot.Hex(),
		)
	}
	return nil
}

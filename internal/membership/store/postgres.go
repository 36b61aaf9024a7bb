// Package store persists the membership ledger in Postgres.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"zkworkspace/internal/membership/models"
	"zkworkspace/internal/platform/postgres"
	id "zkworkspace/pkg/domain"
	"zkworkspace/pkg/platform/sentinel"
	txcontext "zkworkspace/pkg/platform/tx"
)

// ErrNoTransaction is returned by LockLedger outside a unit of work, where a
// transaction-scoped lock would be released immediately.
var ErrNoTransaction = errors.New("ledger lock requires a transaction")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// LockLedger takes the organization's ledger lock until the surrounding
// transaction ends. Concurrent enrollments for the same organization queue here,
// so "read latest, insert latest+1" cannot interleave.
func (s *PostgresStore) LockLedger(ctx context.Context, orgID id.OrgID) error {
	tx, ok := txcontext.From(ctx)
	if !ok {
		return ErrNoTransaction
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, orgID.String()); err != nil {
		return fmt.Errorf("lock ledger: %w", err)
	}
	return nil
}

func (s *PostgresStore) LatestLeafIndex(ctx context.Context, orgID id.OrgID) (int64, error) {
	query := `SELECT COALESCE(MAX(leaf_index), $2) FROM memberships WHERE org_id = $1`
	var latest int64
	err := postgres.Execer(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(orgID), models.NoLeaves).Scan(&latest)
	if err != nil {
		return 0, fmt.Errorf("latest leaf index: %w", err)
	}
	return latest, nil
}

// Insert appends member. A taken (org, leaf index) pair yields sentinel.ErrConflict.
func (s *PostgresStore) Insert(ctx context.Context, member models.Member) error {
	query := `
		INSERT INTO memberships (org_id, leaf_index, commitment, enrolled_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := postgres.Execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(member.OrgID), member.LeafIndex, member.Commitment, member.EnrolledAt)
	if err != nil {
		switch {
		case postgres.IsUniqueViolation(err):
			return sentinel.ErrConflict
		case postgres.IsForeignKeyViolation(err):
			return sentinel.ErrNotFound
		}
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

// ListByOrg returns the ledger in leaf order.
func (s *PostgresStore) ListByOrg(ctx context.Context, orgID id.OrgID) ([]models.Member, error) {
	query := `
		SELECT leaf_index, commitment, enrolled_at
		FROM memberships
		WHERE org_id = $1
		ORDER BY leaf_index
	`
	rows, err := postgres.Execer(ctx, s.db).QueryContext(ctx, query, uuid.UUID(orgID))
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	members := []models.Member{}
	for rows.Next() {
		m := models.Member{OrgID: orgID}
		if err := rows.Scan(&m.LeafIndex, &m.Commitment, &m.EnrolledAt); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	return members, nil
}

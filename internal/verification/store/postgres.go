// Package store persists domain verification records in Postgres.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"zkworkspace/internal/platform/postgres"
	"zkworkspace/internal/verification/models"
	id "zkworkspace/pkg/domain"
	"zkworkspace/pkg/platform/sentinel"
)

// PostgresStore keeps one verification row per organization. Each method is a
// single row-atomic statement.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Issue upserts a pending record for orgID with token, clearing any earlier
// verification.
func (s *PostgresStore) Issue(ctx context.Context, orgID id.OrgID, token string) (*models.Record, error) {
	query := `
		INSERT INTO domain_verifications (org_id, token, status, verified_at)
		VALUES ($1, $2, $3, NULL)
		ON CONFLICT (org_id) DO UPDATE
		SET token = EXCLUDED.token,
			status = EXCLUDED.status,
			verified_at = NULL
		RETURNING org_id, token, status, verified_at
	`
	rec, err := scanRecord(postgres.Execer(ctx, s.db).QueryRowContext(ctx, query,
		uuid.UUID(orgID), token, string(models.StatusPending)))
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("issue domain challenge: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) FindByOrgID(ctx context.Context, orgID id.OrgID) (*models.Record, error) {
	query := `
		SELECT org_id, token, status, verified_at
		FROM domain_verifications
		WHERE org_id = $1
	`
	rec, err := scanRecord(postgres.Execer(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(orgID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find domain verification: %w", err)
	}
	return rec, nil
}

// MarkVerified records a successful ownership check at now.
func (s *PostgresStore) MarkVerified(ctx context.Context, orgID id.OrgID, now time.Time) (*models.Record, error) {
	query := `
		UPDATE domain_verifications
		SET status = $2, verified_at = $3
		WHERE org_id = $1
		RETURNING org_id, token, status, verified_at
	`
	rec, err := scanRecord(postgres.Execer(ctx, s.db).QueryRowContext(ctx, query,
		uuid.UUID(orgID), string(models.StatusVerified), now))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("mark domain verified: %w", err)
	}
	return rec, nil
}

func scanRecord(row *sql.Row) (*models.Record, error) {
	var (
		orgID      uuid.UUID
		rec        models.Record
		status     string
		verifiedAt sql.NullTime
	)
	if err := row.Scan(&orgID, &rec.Token, &status, &verifiedAt); err != nil {
		return nil, err
	}
	rec.OrgID = id.OrgID(orgID)
	rec.Status = models.Status(status)
	if verifiedAt.Valid {
		t := verifiedAt.Time
		rec.VerifiedAt = &t
	}
	return &rec, nil
}

// Package store persists organizations in Postgres.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"zkworkspace/internal/org/models"
	"zkworkspace/internal/platform/postgres"
	id "zkworkspace/pkg/domain"
	"zkworkspace/pkg/platform/sentinel"
)

// PostgresStore persists organizations. Every method writes through the
// transaction carried by ctx when there is one.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const orgColumns = `id, name, domain, verification_modes, tree_root_current, tree_roots_history, settings, created_at`

func (s *PostgresStore) Create(ctx context.Context, org *models.Organization) error {
	settings, err := models.EncodeSettings(org.Settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	// JSON goes over the wire as text; lib/pq would send []byte in bytea escape form.
	query := `
		INSERT INTO organizations (` + orgColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = postgres.Execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(org.ID),
		org.Name,
		org.Domain,
		string(models.EncodeVerificationModes(org.VerificationModes)),
		org.TreeRootCurrent.Bytes(),
		string(models.EncodeRootHistory(org.TreeRootsHistory)),
		string(settings),
		org.CreatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert organization: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, orgID id.OrgID) (*models.Organization, error) {
	query := `SELECT ` + orgColumns + ` FROM organizations WHERE id = $1`
	return s.findOne(ctx, query, uuid.UUID(orgID))
}

// FindByDomain matches the domain exactly as stored.
func (s *PostgresStore) FindByDomain(ctx context.Context, domain string) (*models.Organization, error) {
	query := `SELECT ` + orgColumns + ` FROM organizations WHERE domain = $1`
	return s.findOne(ctx, query, domain)
}

func (s *PostgresStore) findOne(ctx context.Context, query string, arg any) (*models.Organization, error) {
	var (
		orgID    uuid.UUID
		org      models.Organization
		modes    []byte
		root     []byte
		history  []byte
		settings []byte
	)
	err := postgres.Execer(ctx, s.db).QueryRowContext(ctx, query, arg).Scan(
		&orgID, &org.Name, &org.Domain, &modes, &root, &history, &settings, &org.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find organization: %w", err)
	}
	org.ID = id.OrgID(orgID)
	org.TreeRootCurrent, err = models.ParseTreeRoot(root)
	if err != nil {
		return nil, fmt.Errorf("decode tree root of organization %s: %w", org.ID, err)
	}
	org.VerificationModes = models.DecodeVerificationModes(modes)
	org.TreeRootsHistory = models.DecodeRootHistory(history)
	org.Settings = models.DecodeSettings(settings)
	return &org, nil
}

// UpdateTreeRoot rotates the root in one statement: the current root is pushed to
// the front of the history and newRoot becomes current. Successor validation is
// the caller's concern.
func (s *PostgresStore) UpdateTreeRoot(ctx context.Context, orgID id.OrgID, newRoot models.TreeRoot) error {
	query := `
		UPDATE organizations
		SET tree_roots_history = jsonb_insert(
				COALESCE(tree_roots_history, '[]'::jsonb),
				'{0}',
				to_jsonb(encode(tree_root_current, 'hex'))
			),
			tree_root_current = $2
		WHERE id = $1
	`
	res, err := postgres.Execer(ctx, s.db).ExecContext(ctx, query, uuid.UUID(orgID), newRoot.Bytes())
	if err != nil {
		return fmt.Errorf("update tree root: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update tree root: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// Package outbox stores audit events in Postgres until the relay publishes them.
package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"zkworkspace/internal/audit"
	"zkworkspace/internal/platform/postgres"
)

// PostgresStore implements the transactional outbox. Append writes through the
// caller's transaction, so an event exists only if the change it describes committed.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}
	query := `
		INSERT INTO audit_outbox (event_id, action, org_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = postgres.Execer(ctx, s.db).ExecContext(ctx, query,
		event.ID,
		string(event.Action),
		uuid.UUID(event.OrgID),
		string(payload),
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// FetchUnpublished returns up to limit entries in append order.
func (s *PostgresStore) FetchUnpublished(ctx context.Context, limit int) ([]audit.OutboxEntry, error) {
	query := `
		SELECT seq, payload
		FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY seq
		LIMIT $1
	`
	rows, err := postgres.Execer(ctx, s.db).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch outbox entries: %w", err)
	}
	defer rows.Close()

	var entries []audit.OutboxEntry
	for rows.Next() {
		var (
			entry   audit.OutboxEntry
			payload []byte
		)
		if err := rows.Scan(&entry.Seq, &payload); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		if err := json.Unmarshal(payload, &entry.Event); err != nil {
			return nil, fmt.Errorf("decode outbox entry %d: %w", entry.Seq, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch outbox entries: %w", err)
	}
	return entries, nil
}

func (s *PostgresStore) MarkPublished(ctx context.Context, seqs []int64) error {
	if len(seqs) == 0 {
		return nil
	}
	query := `UPDATE audit_outbox SET published_at = NOW() WHERE seq = ANY($1)`
	if _, err := postgres.Execer(ctx, s.db).ExecContext(ctx, query, pq.Array(seqs)); err != nil {
		return fmt.Errorf("mark outbox entries published: %w", err)
	}
	return nil
}

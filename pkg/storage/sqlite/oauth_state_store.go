package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kodustech/mcp-manager/pkg/storage"
)

// OAuthStateStore implements storage.OAuthStateStore using SQLite.
type OAuthStateStore struct {
	db *sql.DB
}

// NewOAuthStateStore creates a new SQLite-backed OAuthStateStore.
func NewOAuthStateStore(db *DB) *OAuthStateStore {
	return &OAuthStateStore{db: db.DB()}
}

var _ storage.OAuthStateStore = (*OAuthStateStore)(nil)

// Get retrieves the state for an (organization, integration) pair.
// Returns (nil, nil) when no state exists.
func (s *OAuthStateStore) Get(ctx context.Context, organizationID, integrationID string) (*storage.OAuthStateRecord, error) {
	var (
		record       storage.OAuthStateRecord
		createdAtStr string
		updatedAtStr string
	)

	err := s.db.QueryRowContext(ctx, `
		SELECT id, organization_id, integration_id, status, encrypted_auth, created_at, updated_at
		FROM oauth_states WHERE organization_id = ? AND integration_id = ?`,
		organizationID, integrationID,
	).Scan(&record.ID, &record.OrganizationID, &record.IntegrationID,
		&record.Status, &record.EncryptedAuth, &createdAtStr, &updatedAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying oauth state: %w", err)
	}

	if record.CreatedAt, err = decodeTime(createdAtStr); err != nil {
		return nil, err
	}
	if record.UpdatedAt, err = decodeTime(updatedAtStr); err != nil {
		return nil, err
	}
	return &record, nil
}

// Upsert creates or replaces the state for the record's pair.
func (s *OAuthStateStore) Upsert(ctx context.Context, record storage.OAuthStateRecord) error {
	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO oauth_states (id, organization_id, integration_id, status, encrypted_auth, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (organization_id, integration_id) DO UPDATE SET
			status = excluded.status,
			encrypted_auth = excluded.encrypted_auth,
			updated_at = excluded.updated_at`,
		record.ID,
		record.OrganizationID,
		record.IntegrationID,
		record.Status,
		record.EncryptedAuth,
		encodeTime(record.CreatedAt),
		encodeTime(record.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upserting oauth state: %w", err)
	}
	return nil
}

// Delete hard-deletes the state for the pair.
func (s *OAuthStateStore) Delete(ctx context.Context, organizationID, integrationID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM oauth_states WHERE organization_id = ? AND integration_id = ?`,
		organizationID, integrationID)
	if err != nil {
		return fmt.Errorf("deleting oauth state: %w", err)
	}
	return nil
}

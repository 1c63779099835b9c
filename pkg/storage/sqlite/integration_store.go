package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kodustech/mcp-manager/pkg/storage"
)

// IntegrationStore implements storage.IntegrationStore using SQLite.
type IntegrationStore struct {
	db *sql.DB
}

// NewIntegrationStore creates a new SQLite-backed IntegrationStore.
func NewIntegrationStore(db *DB) *IntegrationStore {
	return &IntegrationStore{db: db.DB()}
}

var _ storage.IntegrationStore = (*IntegrationStore)(nil)

const integrationColumns = `id, organization_id, active, protocol, base_url, name, description,
	logo_url, auth_type, encrypted_auth, encrypted_headers, created_at, updated_at, deleted_at`

// Create stores a new integration.
func (s *IntegrationStore) Create(ctx context.Context, record storage.IntegrationRecord) error {
	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO integrations (
			id, organization_id, active, protocol, base_url, name, description,
			logo_url, auth_type, encrypted_auth, encrypted_headers, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.OrganizationID,
		record.Active,
		record.Protocol,
		record.BaseURL,
		record.Name,
		record.Description,
		record.LogoURL,
		record.AuthType,
		record.EncryptedAuth,
		record.EncryptedHeaders,
		encodeTime(record.CreatedAt),
		encodeTime(record.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("inserting integration: %w", err)
	}
	return nil
}

// Get retrieves a live integration by id.
func (s *IntegrationStore) Get(ctx context.Context, id string) (storage.IntegrationRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+integrationColumns+` FROM integrations WHERE id = ? AND deleted_at IS NULL`, id)
	return scanIntegration(row)
}

// List returns all live integrations matching the filter.
func (s *IntegrationStore) List(ctx context.Context, filter storage.IntegrationFilter) ([]storage.IntegrationRecord, error) {
	where := []string{"deleted_at IS NULL"}
	var args []any

	if filter.OrganizationID != "" {
		where = append(where, "organization_id = ?")
		args = append(args, filter.OrganizationID)
	}
	if filter.Active != nil {
		where = append(where, "active = ?")
		args = append(args, *filter.Active)
	}
	if filter.Name != "" {
		where = append(where, "name = ?")
		args = append(args, filter.Name)
	}
	if filter.AuthType != "" {
		where = append(where, "auth_type = ?")
		args = append(args, filter.AuthType)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+integrationColumns+` FROM integrations WHERE `+strings.Join(where, " AND ")+
			` ORDER BY created_at`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying integrations: %w", err)
	}
	defer rows.Close()

	var records []storage.IntegrationRecord
	for rows.Next() {
		record, err := scanIntegration(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating integration rows: %w", err)
	}
	return records, nil
}

// Update modifies an existing live integration.
func (s *IntegrationStore) Update(ctx context.Context, record storage.IntegrationRecord) error {
	record.UpdatedAt = time.Now()

	res, err := s.db.ExecContext(ctx, `
		UPDATE integrations SET
			organization_id = ?, active = ?, protocol = ?, base_url = ?, name = ?,
			description = ?, logo_url = ?, auth_type = ?, encrypted_auth = ?,
			encrypted_headers = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		record.OrganizationID,
		record.Active,
		record.Protocol,
		record.BaseURL,
		record.Name,
		record.Description,
		record.LogoURL,
		record.AuthType,
		record.EncryptedAuth,
		record.EncryptedHeaders,
		encodeTime(record.UpdatedAt),
		record.ID,
	)
	if err != nil {
		return fmt.Errorf("updating integration: %w", err)
	}
	return requireAffected(res)
}

// SoftDelete marks an integration as deleted.
func (s *IntegrationStore) SoftDelete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE integrations SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		encodeTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("soft-deleting integration: %w", err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanIntegration(sc scanner) (storage.IntegrationRecord, error) {
	var (
		record       storage.IntegrationRecord
		createdAtStr string
		updatedAtStr string
		deletedAtStr sql.NullString
	)

	err := sc.Scan(
		&record.ID, &record.OrganizationID, &record.Active, &record.Protocol,
		&record.BaseURL, &record.Name, &record.Description, &record.LogoURL,
		&record.AuthType, &record.EncryptedAuth, &record.EncryptedHeaders,
		&createdAtStr, &updatedAtStr, &deletedAtStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.IntegrationRecord{}, storage.ErrNotFound
		}
		return storage.IntegrationRecord{}, fmt.Errorf("scanning integration row: %w", err)
	}

	if record.CreatedAt, err = decodeTime(createdAtStr); err != nil {
		return storage.IntegrationRecord{}, err
	}
	if record.UpdatedAt, err = decodeTime(updatedAtStr); err != nil {
		return storage.IntegrationRecord{}, err
	}
	if record.DeletedAt, err = decodeNullableTime(deletedAtStr); err != nil {
		return storage.IntegrationRecord{}, err
	}
	return record, nil
}

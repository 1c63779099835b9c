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

// ConnectionStore implements storage.ConnectionStore using SQLite.
type ConnectionStore struct {
	db *sql.DB
}

// NewConnectionStore creates a new SQLite-backed ConnectionStore.
func NewConnectionStore(db *DB) *ConnectionStore {
	return &ConnectionStore{db: db.DB()}
}

var _ storage.ConnectionStore = (*ConnectionStore)(nil)

const connectionColumns = `id, organization_id, integration_id, provider, status, app_name,
	mcp_url, allowed_tools, metadata, created_at, updated_at, deleted_at`

// Create stores a new connection.
func (s *ConnectionStore) Create(ctx context.Context, record storage.ConnectionRecord) error {
	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	toolsJSON, err := encodeJSON(orEmptySlice(record.AllowedTools))
	if err != nil {
		return fmt.Errorf("encoding allowed tools: %w", err)
	}
	metadataJSON, err := encodeJSON(orEmptyMap(record.Metadata))
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO connections (
			id, organization_id, integration_id, provider, status, app_name,
			mcp_url, allowed_tools, metadata, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.OrganizationID,
		record.IntegrationID,
		record.Provider,
		record.Status,
		record.AppName,
		record.MCPURL,
		toolsJSON,
		metadataJSON,
		encodeTime(record.CreatedAt),
		encodeTime(record.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("inserting connection: %w", err)
	}
	return nil
}

// GetByIntegration retrieves the live connection for the pair. When more
// than one live row exists the most recently updated one wins.
func (s *ConnectionStore) GetByIntegration(ctx context.Context, organizationID, integrationID string) (storage.ConnectionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+connectionColumns+` FROM connections
		 WHERE organization_id = ? AND integration_id = ? AND deleted_at IS NULL
		 ORDER BY updated_at DESC LIMIT 1`,
		organizationID, integrationID)
	return scanConnection(row)
}

// List returns all live connections matching the filter.
func (s *ConnectionStore) List(ctx context.Context, filter storage.ConnectionFilter) ([]storage.ConnectionRecord, error) {
	where := []string{"deleted_at IS NULL"}
	var args []any

	if filter.OrganizationID != "" {
		where = append(where, "organization_id = ?")
		args = append(args, filter.OrganizationID)
	}
	if filter.Provider != "" {
		where = append(where, "provider = ?")
		args = append(args, filter.Provider)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+connectionColumns+` FROM connections WHERE `+strings.Join(where, " AND ")+
			` ORDER BY created_at`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying connections: %w", err)
	}
	defer rows.Close()

	var records []storage.ConnectionRecord
	for rows.Next() {
		record, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating connection rows: %w", err)
	}
	return records, nil
}

// Update modifies an existing live connection.
func (s *ConnectionStore) Update(ctx context.Context, record storage.ConnectionRecord) error {
	record.UpdatedAt = time.Now()

	toolsJSON, err := encodeJSON(orEmptySlice(record.AllowedTools))
	if err != nil {
		return fmt.Errorf("encoding allowed tools: %w", err)
	}
	metadataJSON, err := encodeJSON(orEmptyMap(record.Metadata))
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE connections SET
			status = ?, app_name = ?, mcp_url = ?, allowed_tools = ?,
			metadata = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		record.Status,
		record.AppName,
		record.MCPURL,
		toolsJSON,
		metadataJSON,
		encodeTime(record.UpdatedAt),
		record.ID,
	)
	if err != nil {
		return fmt.Errorf("updating connection: %w", err)
	}
	return requireAffected(res)
}

// SoftDelete marks a connection as deleted.
func (s *ConnectionStore) SoftDelete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE connections SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		encodeTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("soft-deleting connection: %w", err)
	}
	return requireAffected(res)
}

func scanConnection(sc scanner) (storage.ConnectionRecord, error) {
	var (
		record       storage.ConnectionRecord
		toolsJSON    string
		metadataJSON string
		createdAtStr string
		updatedAtStr string
		deletedAtStr sql.NullString
	)

	err := sc.Scan(
		&record.ID, &record.OrganizationID, &record.IntegrationID, &record.Provider,
		&record.Status, &record.AppName, &record.MCPURL, &toolsJSON, &metadataJSON,
		&createdAtStr, &updatedAtStr, &deletedAtStr,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ConnectionRecord{}, storage.ErrNotFound
		}
		return storage.ConnectionRecord{}, fmt.Errorf("scanning connection row: %w", err)
	}

	if record.AllowedTools, err = decodeStringSlice(toolsJSON); err != nil {
		return storage.ConnectionRecord{}, err
	}
	if record.Metadata, err = decodeMap(metadataJSON); err != nil {
		return storage.ConnectionRecord{}, err
	}
	if record.CreatedAt, err = decodeTime(createdAtStr); err != nil {
		return storage.ConnectionRecord{}, err
	}
	if record.UpdatedAt, err = decodeTime(updatedAtStr); err != nil {
		return storage.ConnectionRecord{}, err
	}
	if record.DeletedAt, err = decodeNullableTime(deletedAtStr); err != nil {
		return storage.ConnectionRecord{}, err
	}
	return record, nil
}

func orEmptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

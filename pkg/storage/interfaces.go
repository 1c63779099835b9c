// Package storage defines the persistence contracts for mcp-manager.
//
// Rows are flat: credential material is stored as opaque encrypted
// strings ("hex(iv):base64(ciphertext)") and reconstructed into typed
// values by the service layer. Implementations live in the sqlite
// subpackage.
package storage

import (
	"context"
	"time"
)

// IntegrationRecord is the stored shape of an integration.
type IntegrationRecord struct {
	ID             string
	OrganizationID string
	Active         bool
	Protocol       string
	BaseURL        string
	Name           string
	Description    string
	LogoURL        string

	// AuthType discriminates the encrypted auth payload
	// (none, api_key, basic, bearer_token, oauth2).
	AuthType string

	// EncryptedAuth is the encrypted auth payload for AuthType. Empty
	// for authType none.
	EncryptedAuth string

	// EncryptedHeaders is the encrypted JSON map of static request
	// headers. Empty when the integration has none.
	EncryptedHeaders string

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// IntegrationFilter is a conjunctive equality filter for List.
// Zero-valued fields match everything.
type IntegrationFilter struct {
	OrganizationID string
	Active         *bool
	Name           string
	AuthType       string
}

// IntegrationStore persists integration records. Reads skip
// soft-deleted rows.
type IntegrationStore interface {
	// Create stores a new integration.
	Create(ctx context.Context, record IntegrationRecord) error
	// Get retrieves an integration by id.
	Get(ctx context.Context, id string) (IntegrationRecord, error)
	// List returns all integrations matching the filter.
	List(ctx context.Context, filter IntegrationFilter) ([]IntegrationRecord, error)
	// Update modifies an existing integration.
	Update(ctx context.Context, record IntegrationRecord) error
	// SoftDelete marks an integration as deleted.
	SoftDelete(ctx context.Context, id string) error
}

// OAuthStateRecord is the stored per-(organization, integration) OAuth
// session state, separate from the integration's own configuration.
type OAuthStateRecord struct {
	ID             string
	OrganizationID string
	IntegrationID  string

	// Status is pending while authorization is in flight, active once
	// tokens are obtained, inactive on failure or revocation.
	Status string

	// EncryptedAuth is the encrypted OAuth working state.
	EncryptedAuth string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OAuthStateStore persists OAuth session state.
type OAuthStateStore interface {
	// Get retrieves the state for an (organization, integration) pair.
	// Absence is a valid "never connected" condition and returns
	// (nil, nil), not an error.
	Get(ctx context.Context, organizationID, integrationID string) (*OAuthStateRecord, error)
	// Upsert creates or replaces the state for the record's pair.
	Upsert(ctx context.Context, record OAuthStateRecord) error
	// Delete removes the state for the pair. Deleting absent state is
	// not an error.
	Delete(ctx context.Context, organizationID, integrationID string) error
}

// ConnectionRecord represents "organization has installed integration X
// via provider Y".
type ConnectionRecord struct {
	ID             string
	OrganizationID string
	IntegrationID  string
	Provider       string
	Status         string
	AppName        string
	MCPURL         string

	// AllowedTools preserves the caller's selection order.
	AllowedTools []string

	// Metadata is the provider-specific response blob.
	Metadata map[string]any

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// ConnectionFilter is a conjunctive equality filter for List.
type ConnectionFilter struct {
	OrganizationID string
	Provider       string
}

// ConnectionStore persists connection records. Reads skip soft-deleted
// rows. The schema does not enforce one live connection per
// (organization, integration) pair; callers check before insert.
type ConnectionStore interface {
	// Create stores a new connection.
	Create(ctx context.Context, record ConnectionRecord) error
	// GetByIntegration retrieves the live connection for the pair.
	GetByIntegration(ctx context.Context, organizationID, integrationID string) (ConnectionRecord, error)
	// List returns all connections matching the filter.
	List(ctx context.Context, filter ConnectionFilter) ([]ConnectionRecord, error)
	// Update modifies an existing connection.
	Update(ctx context.Context, record ConnectionRecord) error
	// SoftDelete marks a connection as deleted.
	SoftDelete(ctx context.Context, id string) error
}

// Package providers implements the pluggable integration backends and
// the dispatch registry over them. Each adapter exposes the same
// contract: listing, required params, tool discovery, and connection
// lifecycle, plus a status map translating its native status vocabulary
// into the system's five connection states.
package providers

import (
	"context"
)

// Internal connection statuses. Every adapter's status map translates
// into this vocabulary.
const (
	StatusPending  = "PENDING"
	StatusActive   = "ACTIVE"
	StatusFailed   = "FAILED"
	StatusExpired  = "EXPIRED"
	StatusInactive = "INACTIVE"
)

// internalStatuses makes status translation idempotent: applying a map
// to an already-internal value is a no-op.
var internalStatuses = map[string]struct{}{
	StatusPending:  {},
	StatusActive:   {},
	StatusFailed:   {},
	StatusExpired:  {},
	StatusInactive: {},
}

// withInternalIdentity extends a native status map with identity
// entries for the internal vocabulary.
func withInternalIdentity(m map[string]string) map[string]string {
	out := make(map[string]string, len(m)+len(internalStatuses))
	for native, internal := range m {
		out[native] = internal
	}
	for status := range internalStatuses {
		out[status] = status
	}
	return out
}

// TranslateStatus maps a provider-native status to the internal
// vocabulary. Already-internal values pass through unchanged; anything
// else unmapped reports ok=false.
func TranslateStatus(statusMap map[string]string, status string) (string, bool) {
	if internal, ok := statusMap[status]; ok {
		return internal, true
	}
	if _, ok := internalStatuses[status]; ok {
		return status, true
	}
	return "", false
}

// RequiredParam describes one input a provider needs before a
// connection can be initiated.
type RequiredParam struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type,omitempty"`
	Required    bool   `json:"required"`
}

// Tool is one tool exposed by an integration.
type Tool struct {
	Slug        string         `json:"slug"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"inputSchema,omitempty"`
}

// IntegrationItem is a provider-facing listing entry. The connection
// service annotates IsConnected and ConnectionStatus from stored rows.
type IntegrationItem struct {
	ID               string          `json:"id"`
	Provider         string          `json:"provider"`
	Name             string          `json:"name"`
	Description      string          `json:"description,omitempty"`
	LogoURL          string          `json:"logoUrl,omitempty"`
	BaseURL          string          `json:"baseUrl,omitempty"`
	Protocol         string          `json:"protocol,omitempty"`
	AuthType         string          `json:"authType,omitempty"`
	RequiredParams   []RequiredParam `json:"requiredParams,omitempty"`
	IsConnected      bool            `json:"isConnected"`
	ConnectionStatus string          `json:"connectionStatus,omitempty"`
}

// ListQuery carries cursor pagination and equality filters for listing
// calls.
type ListQuery struct {
	OrganizationID string
	Cursor         string
	Limit          int
	Filters        map[string]string
}

// ConnectionConfig carries the inputs for InitiateConnection.
type ConnectionConfig struct {
	OrganizationID string
	IntegrationID  string

	// AllowedTools preserves the caller's selection order.
	AllowedTools []string

	// Params are provider-specific inputs (credentials, auth config
	// ids) validated against the integration's required params.
	Params map[string]string
}

// ConnectionResult is what an adapter returns from InitiateConnection.
type ConnectionResult struct {
	IntegrationID string         `json:"integrationId"`
	Status        string         `json:"status"`
	AppName       string         `json:"appName,omitempty"`
	MCPURL        string         `json:"mcpUrl,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// ConnectionsPage is one page of provider-side connections.
type ConnectionsPage struct {
	Data  []ConnectionResult `json:"data"`
	Total int                `json:"total"`
}

// Provider is the common adapter contract.
//
// Failure policy: listing reads degrade to empty results (logged);
// single-item lookups and mutating calls propagate errors.
type Provider interface {
	// Name returns the provider's registry name.
	Name() string
	// StatusMap translates the provider's native statuses to the
	// internal vocabulary.
	StatusMap() map[string]string
	// GetIntegrations lists the integrations available through this
	// provider.
	GetIntegrations(ctx context.Context, query ListQuery) ([]IntegrationItem, error)
	// GetIntegration retrieves a single integration by id.
	GetIntegration(ctx context.Context, id string) (*IntegrationItem, error)
	// GetIntegrationRequiredParams lists the params required to connect.
	GetIntegrationRequiredParams(ctx context.Context, id string) ([]RequiredParam, error)
	// GetIntegrationTools lists the tools an integration exposes.
	GetIntegrationTools(ctx context.Context, id, organizationID string) ([]Tool, error)
	// InitiateConnection establishes a connection for an organization.
	InitiateConnection(ctx context.Context, cfg ConnectionConfig) (*ConnectionResult, error)
	// GetConnections lists provider-side connections.
	GetConnections(ctx context.Context, query ListQuery) (*ConnectionsPage, error)
}

// Package integrations holds the integration domain model and the
// services that manage integration configuration and OAuth session
// state on top of the storage contracts.
package integrations

import (
	"time"

	"github.com/kodustech/mcp-manager/pkg/oauth"
)

// AuthType discriminates how an integration authenticates.
type AuthType string

// Supported auth types.
const (
	AuthTypeNone        AuthType = "none"
	AuthTypeAPIKey      AuthType = "api_key"
	AuthTypeBasic       AuthType = "basic"
	AuthTypeBearerToken AuthType = "bearer_token"
	AuthTypeOAuth2      AuthType = "oauth2"
)

// Protocol is the transport used to reach an integration's base URL.
type Protocol string

// Supported protocols.
const (
	ProtocolHTTP      Protocol = "http"
	ProtocolSSE       Protocol = "sse"
	ProtocolStdio     Protocol = "stdio"
	ProtocolWebsocket Protocol = "websocket"
)

// APIKeyAuth authenticates with a static key in a named header.
type APIKeyAuth struct {
	APIKey     string `json:"apiKey"`
	HeaderName string `json:"headerName"`
}

// BasicAuth authenticates with HTTP basic credentials.
type BasicAuth struct {
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
}

// BearerTokenAuth authenticates with a static bearer token.
type BearerTokenAuth struct {
	Token string `json:"token"`
}

// OAuth2Auth is the full OAuth working state of an integration: the
// discovery artifacts, client credentials, in-flight PKCE material, and
// the latest token set.
type OAuth2Auth struct {
	ClientID     string `json:"clientId,omitempty"`
	ClientSecret string `json:"clientSecret,omitempty"`

	Issuer                string `json:"issuer,omitempty"`
	AuthorizationEndpoint string `json:"authorizationEndpoint,omitempty"`
	TokenEndpoint         string `json:"tokenEndpoint,omitempty"`
	RegistrationEndpoint  string `json:"registrationEndpoint,omitempty"`

	// Resource is the canonical RFC 8707 resource URI of the server.
	Resource string `json:"resource,omitempty"`

	ResourceMetadata *oauth.ProtectedResourceMetadata `json:"resourceMetadata,omitempty"`

	Scopes []string `json:"scopes,omitempty"`

	CodeVerifier  string `json:"codeVerifier,omitempty"`
	CodeChallenge string `json:"codeChallenge,omitempty"`
	State         string `json:"state,omitempty"`

	Tokens *oauth.TokenSet `json:"token,omitempty"`
}

// Auth is a tagged union: exactly the variant matching Type is set,
// and for AuthTypeNone no variant is set.
type Auth struct {
	Type        AuthType         `json:"type"`
	APIKey      *APIKeyAuth      `json:"apiKey,omitempty"`
	Basic       *BasicAuth       `json:"basic,omitempty"`
	BearerToken *BearerTokenAuth `json:"bearerToken,omitempty"`
	OAuth2      *OAuth2Auth      `json:"oauth2,omitempty"`
}

// Integration is the decrypted, typed view of a stored integration.
type Integration struct {
	ID             string            `json:"id"`
	OrganizationID string            `json:"organizationId"`
	Active         bool              `json:"active"`
	Protocol       Protocol          `json:"protocol"`
	BaseURL        string            `json:"baseUrl"`
	Name           string            `json:"name"`
	Description    string            `json:"description,omitempty"`
	LogoURL        string            `json:"logoUrl,omitempty"`
	Auth           Auth              `json:"auth"`
	Headers        map[string]string `json:"headers,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// OAuth session statuses.
const (
	OAuthStatusPending  = "pending"
	OAuthStatusActive   = "active"
	OAuthStatusInactive = "inactive"
)

// OAuthState is the decrypted per-(organization, integration) OAuth
// session state.
type OAuthState struct {
	OrganizationID string      `json:"organizationId"`
	IntegrationID  string      `json:"integrationId"`
	Status         string      `json:"status"`
	Auth           *OAuth2Auth `json:"auth,omitempty"`
}

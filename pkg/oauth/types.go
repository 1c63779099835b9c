// Package oauth implements the OAuth 2.0 client-side protocol operations
// used to connect remote MCP servers: well-known metadata discovery,
// dynamic client registration (RFC 7591), PKCE, authorization URL
// construction, code exchange, and token refresh.
//
// The package holds no persistent state. Callers own persistence of the
// artifacts it produces (client credentials, PKCE material, token sets).
package oauth

import (
	"net/http"

	"github.com/kodustech/mcp-manager/pkg/networking"
)

// ProtectedResourceMetadata is the RFC 9728 protected resource metadata
// document served at /.well-known/oauth-protected-resource.
type ProtectedResourceMetadata struct {
	Resource               string   `json:"resource,omitempty"`
	AuthorizationServers   []string `json:"authorization_servers,omitempty"`
	ScopesSupported        []string `json:"scopes_supported,omitempty"`
	BearerMethodsSupported []string `json:"bearer_methods_supported,omitempty"`
}

// AuthorizationServerMetadata is the RFC 8414 authorization server
// metadata document served at /.well-known/oauth-authorization-server.
type AuthorizationServerMetadata struct {
	Issuer                        string   `json:"issuer,omitempty"`
	AuthorizationEndpoint         string   `json:"authorization_endpoint,omitempty"`
	TokenEndpoint                 string   `json:"token_endpoint,omitempty"`
	RegistrationEndpoint          string   `json:"registration_endpoint,omitempty"`
	JWKSURI                       string   `json:"jwks_uri,omitempty"`
	ScopesSupported               []string `json:"scopes_supported,omitempty"`
	ResponseTypesSupported        []string `json:"response_types_supported,omitempty"`
	GrantTypesSupported           []string `json:"grant_types_supported,omitempty"`
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported,omitempty"`
}

// DiscoveryResult bundles everything learned about a remote server's
// OAuth configuration.
type DiscoveryResult struct {
	// Resource is the protected resource metadata. Empty (not nil) when
	// the server publishes none.
	Resource *ProtectedResourceMetadata

	// Server is the resolved authorization server metadata.
	Server *AuthorizationServerMetadata

	// Issuer is the authorization server the metadata was resolved for.
	Issuer string
}

// ClientCredentials are OAuth client credentials, either supplied by the
// caller or obtained through dynamic registration.
type ClientCredentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret,omitempty"`
}

// Client performs the protocol operations that require network access.
type Client struct {
	http *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client used for all outbound calls.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.http = httpClient
	}
}

// NewClient creates a Client with the default 30s-timeout HTTP client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		http: networking.DefaultClient(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

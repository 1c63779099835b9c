package oauth

import (
	"context"
	"strings"

	"github.com/kodustech/mcp-manager/pkg/errors"
	"github.com/kodustech/mcp-manager/pkg/networking"
)

// clientName is the application name sent during dynamic registration.
const clientName = "mcp-manager"

type registrationRequest struct {
	ClientName              string   `json:"client_name"`
	RedirectURIs            []string `json:"redirect_uris"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	Scope                   string   `json:"scope,omitempty"`
}

// RegisterClient performs RFC 7591 dynamic client registration and
// returns the issued credentials. The client is registered as a public
// client (token_endpoint_auth_method none) with the authorization_code
// and refresh_token grants.
func (c *Client) RegisterClient(ctx context.Context, registrationEndpoint, redirectURI string, scopes []string) (*ClientCredentials, error) {
	request := registrationRequest{
		ClientName:              clientName,
		RedirectURIs:            []string{redirectURI},
		GrantTypes:              []string{"authorization_code", "refresh_token"},
		ResponseTypes:           []string{"code"},
		TokenEndpointAuthMethod: "none",
		Scope:                   strings.Join(scopes, " "),
	}

	creds, err := networking.FetchJSON[ClientCredentials](ctx, c.http, registrationEndpoint,
		networking.WithJSONBody(request))
	if err != nil {
		return nil, errors.NewDiscoveryError("dynamic client registration failed", err)
	}
	if creds.ClientID == "" {
		return nil, errors.NewDiscoveryError("registration response is missing client_id", nil)
	}

	return &creds, nil
}

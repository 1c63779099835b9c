package oauth

import (
	"net/url"

	"github.com/kodustech/mcp-manager/pkg/errors"
)

// AuthorizationURLParams collects the inputs for BuildAuthorizationURL.
type AuthorizationURLParams struct {
	AuthorizationEndpoint string
	ClientID              string
	RedirectURI           string
	CodeChallenge         string
	Resource              string
	State                 string
	Scope                 string
}

// BuildAuthorizationURL constructs the URL the end user is redirected to
// for the authorization_code grant, with the S256 PKCE challenge and the
// canonical resource parameter attached.
func BuildAuthorizationURL(params AuthorizationURLParams) (string, error) {
	endpoint, err := url.Parse(params.AuthorizationEndpoint)
	if err != nil {
		return "", errors.NewValidationError("invalid authorization endpoint", err)
	}

	query := endpoint.Query()
	query.Set("response_type", "code")
	query.Set("client_id", params.ClientID)
	query.Set("redirect_uri", params.RedirectURI)
	query.Set("code_challenge", params.CodeChallenge)
	query.Set("code_challenge_method", "S256")
	query.Set("state", params.State)
	if params.Resource != "" {
		query.Set("resource", params.Resource)
	}
	if params.Scope != "" {
		query.Set("scope", params.Scope)
	}

	endpoint.RawQuery = query.Encode()
	return endpoint.String(), nil
}

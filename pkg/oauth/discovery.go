package oauth

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/kodustech/mcp-manager/pkg/errors"
	"github.com/kodustech/mcp-manager/pkg/logger"
	"github.com/kodustech/mcp-manager/pkg/networking"
)

const (
	wellKnownProtectedResource   = "/.well-known/oauth-protected-resource"
	wellKnownAuthorizationServer = "/.well-known/oauth-authorization-server"
)

// Discover resolves the OAuth configuration of the server at baseURL.
//
// It first fetches the protected resource metadata, trying the
// path-suffixed well-known URL and then the bare origin, and proceeds
// with empty metadata when both fail. The authorization server is the
// first entry of authorization_servers, falling back to baseURL itself.
// Its metadata is fetched through an ordered candidate chain; the chain
// being exhausted, or the metadata lacking both an authorization and a
// token endpoint, is a discovery error.
func (c *Client) Discover(ctx context.Context, baseURL string) (*DiscoveryResult, error) {
	if err := networking.ValidateEndpointURL(baseURL); err != nil {
		return nil, errors.NewValidationError("invalid base URL", err)
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.NewValidationError("invalid base URL", err)
	}
	origin := parsed.Scheme + "://" + parsed.Host
	path := strings.TrimSuffix(parsed.Path, "/")

	resource := &ProtectedResourceMetadata{}
	for _, candidate := range protectedResourceCandidates(origin, path) {
		meta, err := networking.FetchJSON[ProtectedResourceMetadata](ctx, c.http, candidate)
		if err != nil {
			logger.Debugf("Protected resource metadata fetch failed for %s: %v", candidate, err)
			continue
		}
		resource = &meta
		break
	}

	issuer := baseURL
	if len(resource.AuthorizationServers) > 0 {
		issuer = resource.AuthorizationServers[0]
	}

	var server *AuthorizationServerMetadata
	var lastErr error
	for _, candidate := range authServerCandidates(issuer, origin, path) {
		meta, err := networking.FetchJSON[AuthorizationServerMetadata](ctx, c.http, candidate)
		if err != nil {
			logger.Debugf("Authorization server metadata fetch failed for %s: %v", candidate, err)
			lastErr = err
			continue
		}
		server = &meta
		break
	}
	if server == nil {
		return nil, errors.NewDiscoveryError(
			fmt.Sprintf("failed to discover authorization server metadata for %s", issuer), lastErr)
	}

	if server.AuthorizationEndpoint == "" && server.TokenEndpoint == "" {
		return nil, errors.NewDiscoveryError(
			"authorization server metadata has neither authorization_endpoint nor token_endpoint", nil)
	}

	return &DiscoveryResult{
		Resource: resource,
		Server:   server,
		Issuer:   issuer,
	}, nil
}

func protectedResourceCandidates(origin, path string) []string {
	var candidates []string
	if path != "" {
		candidates = append(candidates, origin+wellKnownProtectedResource+path)
	}
	return append(candidates, origin+wellKnownProtectedResource)
}

// authServerCandidates lists the authorization server metadata URLs to
// try in order: the issuer's own well-known URL, the one derived from
// the original base URL, and finally the issuer's bare origin.
func authServerCandidates(issuer, baseOrigin, basePath string) []string {
	var candidates []string

	issuerOrigin := ""
	if parsed, err := url.Parse(issuer); err == nil && parsed.Host != "" {
		issuerOrigin = parsed.Scheme + "://" + parsed.Host
		issuerPath := strings.TrimSuffix(parsed.Path, "/")
		candidates = append(candidates, issuerOrigin+wellKnownAuthorizationServer+issuerPath)
	}

	candidates = append(candidates, baseOrigin+wellKnownAuthorizationServer+basePath)
	if issuerOrigin != "" {
		candidates = append(candidates, issuerOrigin+wellKnownAuthorizationServer)
	}

	return dedupe(candidates)
}

func dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := urls[:0]
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

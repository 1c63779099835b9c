package integrations

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kodustech/mcp-manager/pkg/errors"
	"github.com/kodustech/mcp-manager/pkg/logger"
	"github.com/kodustech/mcp-manager/pkg/oauth"
	"github.com/kodustech/mcp-manager/pkg/storage"
)

// CreateOAuth2Request carries the inputs for CreateOAuth2.
type CreateOAuth2Request struct {
	OrganizationID string
	Protocol       Protocol
	BaseURL        string
	Name           string
	Description    string
	LogoURL        string

	// ClientID and ClientSecret are optional pre-provisioned
	// credentials. When absent, dynamic registration is attempted.
	ClientID     string
	ClientSecret string

	Scopes  []string
	Headers map[string]string
}

// OAuth2CreateResult is returned by CreateOAuth2 so the caller can
// redirect the end user.
type OAuth2CreateResult struct {
	AuthURL       string `json:"authUrl"`
	IntegrationID string `json:"integrationId"`
}

// CreateOAuth2 runs discovery against the integration's base URL,
// resolves client credentials (supplied or dynamically registered),
// generates the PKCE and state material, persists the encrypted OAuth
// bundle, and returns the authorization URL.
func (s *Service) CreateOAuth2(ctx context.Context, req CreateOAuth2Request) (*OAuth2CreateResult, error) {
	if s.redirectURI == "" {
		return nil, errors.NewConfigError("oauth redirect URI is not configured", nil)
	}

	discovery, err := s.oauth.Discover(ctx, req.BaseURL)
	if err != nil {
		return nil, err
	}
	if discovery.Server.AuthorizationEndpoint == "" {
		return nil, errors.NewDiscoveryError("authorization server does not support the authorization_code flow", nil)
	}

	creds := &oauth.ClientCredentials{ClientID: req.ClientID, ClientSecret: req.ClientSecret}
	if creds.ClientID == "" {
		if discovery.Server.RegistrationEndpoint == "" {
			return nil, errors.NewValidationError(
				"a client id is required: the authorization server does not advertise dynamic registration", nil)
		}
		creds, err = s.oauth.RegisterClient(ctx, discovery.Server.RegistrationEndpoint, s.redirectURI, req.Scopes)
		if err != nil {
			return nil, err
		}
	}

	pkce := oauth.GeneratePKCE()
	state, err := oauth.GenerateState()
	if err != nil {
		return nil, err
	}
	resource, err := oauth.CanonicalResourceURI(req.BaseURL)
	if err != nil {
		return nil, err
	}

	authURL, err := oauth.BuildAuthorizationURL(oauth.AuthorizationURLParams{
		AuthorizationEndpoint: discovery.Server.AuthorizationEndpoint,
		ClientID:              creds.ClientID,
		RedirectURI:           s.redirectURI,
		CodeChallenge:         pkce.CodeChallenge,
		Resource:              resource,
		State:                 state,
		Scope:                 strings.Join(req.Scopes, " "),
	})
	if err != nil {
		return nil, err
	}

	record, err := s.encodeRecord(CreateRequest{
		OrganizationID: req.OrganizationID,
		Protocol:       req.Protocol,
		BaseURL:        req.BaseURL,
		Name:           req.Name,
		Description:    req.Description,
		LogoURL:        req.LogoURL,
		Headers:        req.Headers,
		Auth: Auth{
			Type: AuthTypeOAuth2,
			OAuth2: &OAuth2Auth{
				ClientID:              creds.ClientID,
				ClientSecret:          creds.ClientSecret,
				Issuer:                discovery.Issuer,
				AuthorizationEndpoint: discovery.Server.AuthorizationEndpoint,
				TokenEndpoint:         discovery.Server.TokenEndpoint,
				RegistrationEndpoint:  discovery.Server.RegistrationEndpoint,
				Resource:              resource,
				ResourceMetadata:      discovery.Resource,
				Scopes:                req.Scopes,
				CodeVerifier:          pkce.CodeVerifier,
				CodeChallenge:         pkce.CodeChallenge,
				State:                 state,
			},
		},
	}, uuid.NewString())
	if err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, record); err != nil {
		return nil, err
	}

	logger.Infow("OAuth2 integration created, awaiting authorization",
		"organizationID", req.OrganizationID, "integrationID", record.ID, "issuer", discovery.Issuer)

	return &OAuth2CreateResult{
		AuthURL:       authURL,
		IntegrationID: record.ID,
	}, nil
}

// FindByOAuthState resolves the integration whose stored authorization
// state matches the callback's state parameter. The authorization
// server redirects to the bare registered redirect URI, so the state
// value is the only join key available; values are 128-bit random and
// unique per flow.
func (s *Service) FindByOAuthState(ctx context.Context, state string) (*Integration, error) {
	if state == "" {
		return nil, errors.NewValidationError("oauth state is required", nil)
	}

	records, err := s.store.List(ctx, storage.IntegrationFilter{AuthType: string(AuthTypeOAuth2)})
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		integration, err := s.decodeRecord(record)
		if err != nil {
			return nil, err
		}
		if integration.Auth.OAuth2 != nil && integration.Auth.OAuth2.State == state {
			return integration, nil
		}
	}
	return nil, storage.ErrNotFound
}

// FinalizeRequest carries the OAuth callback parameters.
type FinalizeRequest struct {
	IntegrationID string
	Code          string
	State         string
}

// FinalizeOAuthFlow verifies the callback state against the stored one,
// exchanges the authorization code for tokens, and persists the merged
// payload. This is the single transition from "authorization requested"
// to "tokens obtained".
func (s *Service) FinalizeOAuthFlow(ctx context.Context, req FinalizeRequest) (*Integration, error) {
	record, err := s.store.Get(ctx, req.IntegrationID)
	if err != nil {
		return nil, err
	}
	integration, err := s.decodeRecord(record)
	if err != nil {
		return nil, err
	}
	if integration.Auth.Type != AuthTypeOAuth2 || integration.Auth.OAuth2 == nil {
		return nil, errors.NewValidationError("integration is not an oauth2 integration", nil)
	}

	payload := integration.Auth.OAuth2

	// State must match before any exchange call is made.
	if req.State == "" || req.State != payload.State {
		return nil, errors.NewValidationError("oauth state mismatch", nil)
	}

	tokens, err := s.oauth.ExchangeCode(ctx, payload.TokenEndpoint, oauth.ExchangeRequest{
		ClientID:     payload.ClientID,
		ClientSecret: payload.ClientSecret,
		Code:         req.Code,
		CodeVerifier: payload.CodeVerifier,
		RedirectURI:  s.redirectURI,
		Resource:     payload.Resource,
	})
	if err != nil {
		return nil, err
	}

	payload.Tokens = tokens
	if err := s.persistOAuthPayload(ctx, integration); err != nil {
		return nil, err
	}

	logger.Infow("OAuth flow finalized",
		"organizationID", integration.OrganizationID, "integrationID", integration.ID)
	return integration, nil
}

// GetRefreshedOAuthIntegration returns the integration with a token set
// guaranteed to be outside the expiry buffer. Unlike the opportunistic
// refresh path, a failed refresh here surfaces as an error: the caller
// is about to use the token.
func (s *Service) GetRefreshedOAuthIntegration(ctx context.Context, id, organizationID string) (*Integration, error) {
	integration, err := s.Get(ctx, id, organizationID)
	if err != nil {
		return nil, err
	}
	if integration.Auth.Type != AuthTypeOAuth2 || integration.Auth.OAuth2 == nil {
		return nil, errors.NewValidationError("integration is not an oauth2 integration", nil)
	}

	payload := integration.Auth.OAuth2
	if payload.Tokens == nil || payload.Tokens.AccessToken == "" {
		return nil, errors.NewTokenError("integration has no tokens: the OAuth flow was never finalized", nil)
	}
	if !payload.Tokens.IsExpiring(time.Now()) {
		return integration, nil
	}

	tokens, err := s.oauth.RefreshToken(ctx, payload.TokenEndpoint, oauth.RefreshRequest{
		ClientID:     payload.ClientID,
		ClientSecret: payload.ClientSecret,
		RefreshToken: payload.Tokens.RefreshToken,
	})
	if err != nil {
		return nil, err
	}

	payload.Tokens = tokens
	if err := s.persistOAuthPayload(ctx, integration); err != nil {
		return nil, err
	}
	return integration, nil
}

// persistOAuthPayload re-encrypts the integration's oauth2 payload into
// its row and mirrors it into the companion OAuth state row.
func (s *Service) persistOAuthPayload(ctx context.Context, integration *Integration) error {
	record, err := s.encodeRecord(CreateRequest{
		OrganizationID: integration.OrganizationID,
		Protocol:       integration.Protocol,
		BaseURL:        integration.BaseURL,
		Name:           integration.Name,
		Description:    integration.Description,
		LogoURL:        integration.LogoURL,
		Auth:           integration.Auth,
		Headers:        integration.Headers,
	}, integration.ID)
	if err != nil {
		return err
	}
	record.CreatedAt = integration.CreatedAt
	if err := s.store.Update(ctx, record); err != nil {
		return err
	}

	return s.saveState(ctx, OAuthState{
		OrganizationID: integration.OrganizationID,
		IntegrationID:  integration.ID,
		Status:         OAuthStatusActive,
		Auth:           integration.Auth.OAuth2,
	})
}

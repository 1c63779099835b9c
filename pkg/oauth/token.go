package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kodustech/mcp-manager/pkg/errors"
	"github.com/kodustech/mcp-manager/pkg/logger"
	"github.com/kodustech/mcp-manager/pkg/networking"
)

// ExpiryBuffer is how long before actual expiry a token is treated as
// expiring. Applied everywhere token liveness is checked.
const ExpiryBuffer = 5 * time.Minute

// TokenSet is the token material returned by a token endpoint, stamped
// with the local receipt time. Expiry is always computed from
// ReceivedAt and ExpiresIn, never decoded from the token itself.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	Scope        string `json:"scope,omitempty"`

	// ExpiresIn is the token lifetime in seconds. Zero means the server
	// did not report a lifetime and the token never counts as expiring.
	ExpiresIn int64 `json:"expires_in,omitempty"`

	// ReceivedAt is the epoch-millisecond capture time.
	ReceivedAt int64 `json:"received_at,omitempty"`
}

// ExpiresAt returns the expiry instant in epoch milliseconds.
func (t *TokenSet) ExpiresAt() int64 {
	return t.ReceivedAt + t.ExpiresIn*1000
}

// IsExpiring reports whether the token is within the expiry buffer at
// the given instant.
func (t *TokenSet) IsExpiring(now time.Time) bool {
	if t.ExpiresIn <= 0 {
		return false
	}
	return now.Add(ExpiryBuffer).UnixMilli() >= t.ExpiresAt()
}

// ExchangeRequest carries the parameters of an authorization_code grant.
type ExchangeRequest struct {
	ClientID     string
	ClientSecret string
	Code         string
	CodeVerifier string
	RedirectURI  string
	Resource     string
}

// ExchangeCode exchanges an authorization code for tokens.
func (c *Client) ExchangeCode(ctx context.Context, tokenEndpoint string, req ExchangeRequest) (*TokenSet, error) {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {req.Code},
		"redirect_uri":  {req.RedirectURI},
		"client_id":     {req.ClientID},
		"code_verifier": {req.CodeVerifier},
	}
	if req.ClientSecret != "" {
		form.Set("client_secret", req.ClientSecret)
	}
	if req.Resource != "" {
		form.Set("resource", req.Resource)
	}

	return c.doTokenRequest(ctx, tokenEndpoint, form)
}

// RefreshRequest carries the parameters of a refresh_token grant.
type RefreshRequest struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// RefreshToken obtains a fresh token set. When the server omits a new
// refresh token the previous one is carried forward.
func (c *Client) RefreshToken(ctx context.Context, tokenEndpoint string, req RefreshRequest) (*TokenSet, error) {
	if req.RefreshToken == "" {
		return nil, errors.NewTokenError("no refresh token available", nil)
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {req.RefreshToken},
		"client_id":     {req.ClientID},
	}
	if req.ClientSecret != "" {
		form.Set("client_secret", req.ClientSecret)
	}

	tokens, err := c.doTokenRequest(ctx, tokenEndpoint, form)
	if err != nil {
		return nil, err
	}
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = req.RefreshToken
	}
	return tokens, nil
}

// RefreshCheck carries the inputs for CheckAndRefresh.
type RefreshCheck struct {
	Tokens       *TokenSet
	ClientID     string
	ClientSecret string
}

// CheckAndRefresh returns the tokens unchanged when they are outside the
// expiry buffer, and a freshly exchanged set when they are inside it.
// A failed refresh returns nil instead of an error so opportunistic
// callers can continue with the token they already hold.
func (c *Client) CheckAndRefresh(ctx context.Context, tokenEndpoint string, check RefreshCheck) *TokenSet {
	if check.Tokens == nil || check.Tokens.AccessToken == "" {
		return nil
	}
	if !check.Tokens.IsExpiring(time.Now()) {
		return check.Tokens
	}

	refreshed, err := c.RefreshToken(ctx, tokenEndpoint, RefreshRequest{
		ClientID:     check.ClientID,
		ClientSecret: check.ClientSecret,
		RefreshToken: check.Tokens.RefreshToken,
	})
	if err != nil {
		logger.Warnf("Token refresh failed, caller keeps the current token: %v", err)
		return nil
	}
	return refreshed
}

func (c *Client) doTokenRequest(ctx context.Context, tokenEndpoint string, form url.Values) (*TokenSet, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.NewTokenError("failed to create token request", err)
	}
	httpReq.Header.Set("Content-Type", networking.ContentTypeFormURLEncoded)
	httpReq.Header.Set("Accept", networking.ContentTypeJSON)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.NewTokenError("token request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, networking.DefaultMaxResponseSize))
	if err != nil {
		return nil, errors.NewTokenError("failed to read token response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.NewTokenError(
			fmt.Sprintf("token endpoint returned status %d", resp.StatusCode), nil)
	}

	tokens, err := parseTokenResponse(body)
	if err != nil {
		return nil, err
	}
	if tokens.AccessToken == "" {
		return nil, errors.NewTokenError("token response is missing access_token", nil)
	}

	tokens.ReceivedAt = time.Now().UnixMilli()
	return tokens, nil
}

// parseTokenResponse parses a token endpoint response as JSON, falling
// back to urlencoded-form parsing for servers that still answer in the
// OAuth 1 style.
func parseTokenResponse(body []byte) (*TokenSet, error) {
	var tokens TokenSet
	if err := json.Unmarshal(body, &tokens); err == nil {
		return &tokens, nil
	}

	values, err := url.ParseQuery(strings.TrimSpace(string(body)))
	if err != nil {
		return nil, errors.NewTokenError("failed to parse token response", err)
	}

	expiresIn, _ := strconv.ParseInt(values.Get("expires_in"), 10, 64)
	return &TokenSet{
		AccessToken:  values.Get("access_token"),
		RefreshToken: values.Get("refresh_token"),
		TokenType:    values.Get("token_type"),
		Scope:        values.Get("scope"),
		ExpiresIn:    expiresIn,
	}, nil
}

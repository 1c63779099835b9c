package providers

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/singleflight"

	"github.com/kodustech/mcp-manager/pkg/errors"
	"github.com/kodustech/mcp-manager/pkg/integrations"
	"github.com/kodustech/mcp-manager/pkg/logger"
	"github.com/kodustech/mcp-manager/pkg/networking"
	"github.com/kodustech/mcp-manager/pkg/storage"
)

const customProviderName = "custom"

const mcpClientName = "mcp-manager"

// mcpSession is one live MCP client shared by concurrent callers.
type mcpSession struct {
	client mcpClient
	refs   int
}

// mcpClient is the subset of the MCP client used here, extracted so
// tests can substitute a fake transport.
type mcpClient interface {
	ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	Close() error
}

// sessionManager refcounts MCP sessions per integration. Concurrent
// acquires for the same integration share a single dial through the
// singleflight group; the last release closes the session. The count
// is clamped at zero so an unbalanced release cannot drive it negative.
type sessionManager struct {
	mu       sync.Mutex
	sessions map[string]*mcpSession
	dials    singleflight.Group
}

func newSessionManager() *sessionManager {
	return &sessionManager{sessions: make(map[string]*mcpSession)}
}

// acquire returns the live session for key, dialing at most once no
// matter how many callers arrive while the dial is in flight. Every
// successful acquire must be paired with a release.
//
// A reference is only ever taken under the mutex while the session is
// still published in the map. If a concurrent release drains the
// session to zero and closes it between the dial completing and this
// caller taking its reference, the loop re-dials instead of handing
// out the closed client.
func (m *sessionManager) acquire(ctx context.Context, key string, dial func(context.Context) (mcpClient, error)) (mcpClient, error) {
	for {
		m.mu.Lock()
		if s, ok := m.sessions[key]; ok {
			s.refs++
			m.mu.Unlock()
			return s.client, nil
		}
		m.mu.Unlock()

		_, err, _ := m.dials.Do(key, func() (any, error) {
			m.mu.Lock()
			_, exists := m.sessions[key]
			m.mu.Unlock()
			if exists {
				return nil, nil
			}

			c, err := dial(ctx)
			if err != nil {
				return nil, err
			}
			m.mu.Lock()
			m.sessions[key] = &mcpSession{client: c}
			m.mu.Unlock()
			return nil, nil
		})
		if err != nil {
			return nil, err
		}
	}
}

// release drops one reference and closes the session when none remain.
// Releasing an unknown key is a no-op.
func (m *sessionManager) release(key string) {
	m.mu.Lock()
	s, ok := m.sessions[key]
	if !ok {
		m.mu.Unlock()
		return
	}
	s.refs--
	if s.refs > 0 {
		m.mu.Unlock()
		return
	}
	s.refs = 0
	delete(m.sessions, key)
	m.mu.Unlock()

	if err := s.client.Close(); err != nil {
		logger.Warnf("Failed to close MCP session for %s: %v", key, err)
	}
}

// refCount reports the current reference count for key.
func (m *sessionManager) refCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[key]; ok {
		return s.refs
	}
	return 0
}

// CustomProvider serves user-registered MCP endpoints stored as
// integration records. Tool discovery opens a real MCP session against
// the endpoint using the integration's stored credentials.
type CustomProvider struct {
	integrations *integrations.Service
	sessions     *sessionManager

	// dial is replaceable in tests.
	dial func(ctx context.Context, integration *integrations.Integration, headers map[string]string) (mcpClient, error)
}

// NewCustomProvider creates the custom endpoint adapter.
func NewCustomProvider(svc *integrations.Service) *CustomProvider {
	p := &CustomProvider{
		integrations: svc,
		sessions:     newSessionManager(),
	}
	p.dial = p.dialMCP
	return p
}

// Name implements Provider.
func (p *CustomProvider) Name() string { return customProviderName }

// StatusMap implements Provider.
func (p *CustomProvider) StatusMap() map[string]string {
	return withInternalIdentity(map[string]string{
		"connected":    StatusActive,
		"disconnected": StatusInactive,
		"error":        StatusFailed,
	})
}

// GetIntegrations lists the organization's stored custom integrations.
func (p *CustomProvider) GetIntegrations(ctx context.Context, query ListQuery) ([]IntegrationItem, error) {
	active := true
	stored, err := p.integrations.Find(ctx, storage.IntegrationFilter{
		OrganizationID: query.OrganizationID,
		Active:         &active,
	})
	if err != nil {
		logger.Warnf("Failed to list custom integrations: %v", err)
		return []IntegrationItem{}, nil
	}

	items := make([]IntegrationItem, 0, len(stored))
	for _, integration := range stored {
		items = append(items, p.toItem(integration))
	}
	return items, nil
}

// GetIntegration implements Provider.
func (p *CustomProvider) GetIntegration(ctx context.Context, id string) (*IntegrationItem, error) {
	integration, err := p.integrations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	item := p.toItem(integration)
	return &item, nil
}

// GetIntegrationRequiredParams implements Provider. Custom endpoints
// carry their credentials on the integration record, so nothing extra
// is required at connection time.
func (p *CustomProvider) GetIntegrationRequiredParams(_ context.Context, _ string) ([]RequiredParam, error) {
	return nil, nil
}

// GetIntegrationTools opens an MCP session against the endpoint and
// lists its tools.
func (p *CustomProvider) GetIntegrationTools(ctx context.Context, id, organizationID string) ([]Tool, error) {
	integration, err := p.integrations.Get(ctx, id, organizationID)
	if err != nil {
		return nil, err
	}
	return p.listTools(ctx, integration)
}

// InitiateConnection verifies the endpoint is reachable by listing its
// tools, then reports the connection as active.
func (p *CustomProvider) InitiateConnection(ctx context.Context, cfg ConnectionConfig) (*ConnectionResult, error) {
	integration, err := p.integrations.Get(ctx, cfg.IntegrationID, cfg.OrganizationID)
	if err != nil {
		return nil, err
	}

	tools, err := p.listTools(ctx, integration)
	if err != nil {
		return nil, errors.NewProviderError(
			fmt.Sprintf("failed to connect to MCP endpoint %s", integration.BaseURL), err)
	}

	slugs := make([]string, 0, len(tools))
	for _, tool := range tools {
		slugs = append(slugs, tool.Slug)
	}

	return &ConnectionResult{
		IntegrationID: integration.ID,
		Status:        StatusActive,
		AppName:       integration.Name,
		MCPURL:        integration.BaseURL,
		Metadata:      map[string]any{"tools": slugs},
	}, nil
}

// GetConnections implements Provider. Custom connections live in local
// storage, not behind a remote API, so there is nothing to page through
// here.
func (p *CustomProvider) GetConnections(_ context.Context, _ ListQuery) (*ConnectionsPage, error) {
	return &ConnectionsPage{Data: []ConnectionResult{}}, nil
}

// ProbeTools lists the tools of an arbitrary integration's endpoint.
// Other adapters that persist custom-type integrations use this to
// verify the endpoint after connecting.
func (p *CustomProvider) ProbeTools(ctx context.Context, integration *integrations.Integration) ([]Tool, error) {
	return p.listTools(ctx, integration)
}

func (p *CustomProvider) toItem(integration *integrations.Integration) IntegrationItem {
	return IntegrationItem{
		ID:          integration.ID,
		Provider:    customProviderName,
		Name:        integration.Name,
		Description: integration.Description,
		LogoURL:     integration.LogoURL,
		BaseURL:     integration.BaseURL,
		Protocol:    string(integration.Protocol),
		AuthType:    string(integration.Auth.Type),
	}
}

// listTools acquires a shared session for the integration, lists tools,
// and releases the session.
func (p *CustomProvider) listTools(ctx context.Context, integration *integrations.Integration) ([]Tool, error) {
	headers, err := p.authHeaders(ctx, integration)
	if err != nil {
		return nil, err
	}

	c, err := p.sessions.acquire(ctx, integration.ID, func(ctx context.Context) (mcpClient, error) {
		return p.dial(ctx, integration, headers)
	})
	if err != nil {
		return nil, err
	}
	defer p.sessions.release(integration.ID)

	result, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, errors.NewProviderError("failed to list tools from MCP endpoint", err)
	}

	tools := make([]Tool, 0, len(result.Tools))
	for _, tool := range result.Tools {
		tools = append(tools, Tool{
			Slug:        tool.Name,
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schemaToMap(tool.InputSchema),
		})
	}
	return tools, nil
}

// authHeaders builds the request headers for the integration's auth
// type, merged over its stored extra headers. OAuth2 integrations get
// an opportunistically refreshed access token.
func (p *CustomProvider) authHeaders(ctx context.Context, integration *integrations.Integration) (map[string]string, error) {
	headers := make(map[string]string, len(integration.Headers)+1)
	for k, v := range integration.Headers {
		headers[k] = v
	}

	switch integration.Auth.Type {
	case integrations.AuthTypeNone:
	case integrations.AuthTypeAPIKey:
		headers[integration.Auth.APIKey.HeaderName] = integration.Auth.APIKey.APIKey
	case integrations.AuthTypeBasic:
		raw := integration.Auth.Basic.Username + ":" + integration.Auth.Basic.Password
		headers["Authorization"] = "Basic " + base64.StdEncoding.EncodeToString([]byte(raw))
	case integrations.AuthTypeBearerToken:
		headers["Authorization"] = "Bearer " + integration.Auth.BearerToken.Token
	case integrations.AuthTypeOAuth2:
		token, err := p.oauthAccessToken(ctx, integration)
		if err != nil {
			return nil, err
		}
		headers["Authorization"] = "Bearer " + token
	default:
		return nil, errors.NewInternalError(
			fmt.Sprintf("integration %s has unknown auth type %q", integration.ID, integration.Auth.Type), nil)
	}
	return headers, nil
}

// oauthAccessToken resolves the freshest access token available for the
// integration, preferring the per-organization session state over the
// token set stored on the integration itself.
func (p *CustomProvider) oauthAccessToken(ctx context.Context, integration *integrations.Integration) (string, error) {
	state, err := p.integrations.RefreshOAuthStateIfNeeded(ctx, integration.OrganizationID, integration.ID)
	if err != nil {
		return "", err
	}
	if state != nil && state.Auth != nil && state.Auth.Tokens != nil && state.Auth.Tokens.AccessToken != "" {
		return state.Auth.Tokens.AccessToken, nil
	}
	if integration.Auth.OAuth2 != nil && integration.Auth.OAuth2.Tokens != nil && integration.Auth.OAuth2.Tokens.AccessToken != "" {
		return integration.Auth.OAuth2.Tokens.AccessToken, nil
	}
	return "", errors.NewTokenError(
		fmt.Sprintf("integration %s has no access token: the OAuth flow was never finalized", integration.ID), nil)
}

// dialMCP opens and initializes a real MCP client for the integration's
// protocol.
func (p *CustomProvider) dialMCP(ctx context.Context, integration *integrations.Integration, headers map[string]string) (mcpClient, error) {
	var (
		c   *client.Client
		err error
	)
	switch integration.Protocol {
	case integrations.ProtocolSSE:
		c, err = client.NewSSEMCPClient(integration.BaseURL, transport.WithHeaders(headers))
	case integrations.ProtocolHTTP, "":
		c, err = client.NewStreamableHttpClient(integration.BaseURL,
			transport.WithHTTPHeaders(headers),
			transport.WithHTTPTimeout(networking.HttpTimeout))
	default:
		return nil, errors.NewValidationError(
			fmt.Sprintf("protocol %q is not supported for MCP sessions", integration.Protocol), nil)
	}
	if err != nil {
		return nil, errors.NewProviderError("failed to create MCP client", err)
	}

	if err := c.Start(ctx); err != nil {
		return nil, errors.NewProviderError("failed to start MCP transport", err)
	}

	initRequest := mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo: mcp.Implementation{
				Name:    mcpClientName,
				Version: "0.1.0",
			},
			Capabilities: mcp.ClientCapabilities{},
		},
	}
	if _, err := c.Initialize(ctx, initRequest); err != nil {
		_ = c.Close()
		return nil, errors.NewProviderError("failed to initialize MCP session", err)
	}
	return c, nil
}

// schemaToMap flattens the mcp-go input schema into a plain map.
func schemaToMap(schema mcp.ToolInputSchema) map[string]any {
	out := map[string]any{"type": schema.Type}
	if len(schema.Properties) > 0 {
		out["properties"] = schema.Properties
	}
	if len(schema.Required) > 0 {
		out["required"] = schema.Required
	}
	return out
}

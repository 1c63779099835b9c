package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/kodustech/mcp-manager/pkg/errors"
	"github.com/kodustech/mcp-manager/pkg/logger"
	"github.com/kodustech/mcp-manager/pkg/networking"
)

const composioProviderName = "composio"

// composioMCPBaseURL is where the broker serves tool invocation for a
// provisioned MCP server.
const composioMCPBaseURL = "https://mcp.composio.dev"

const composioAPIKeyHeader = "x-api-key"

// ComposioProvider talks to the Composio hosted tool broker. Toolkits
// are the broker's integrations; a connection is a remote connected
// account bound to a provisioned MCP server.
type ComposioProvider struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewComposioProvider creates the hosted broker adapter.
func NewComposioProvider(apiKey, baseURL string) *ComposioProvider {
	return &ComposioProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    networking.DefaultClient(),
	}
}

// Name implements Provider.
func (p *ComposioProvider) Name() string { return composioProviderName }

// StatusMap implements Provider.
func (p *ComposioProvider) StatusMap() map[string]string {
	return withInternalIdentity(map[string]string{
		"INITIALIZING": StatusPending,
		"INITIATED":    StatusPending,
	})
}

type composioToolkit struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
	Meta struct {
		Description string `json:"description"`
		Logo        string `json:"logo"`
	} `json:"meta"`
	AuthSchemes []string `json:"auth_schemes"`
}

type composioToolkitPage struct {
	Items      []composioToolkit `json:"items"`
	NextCursor string            `json:"next_cursor"`
	TotalItems int               `json:"total_items"`
}

// GetIntegrations lists the broker's toolkits. Remote failures degrade
// to an empty list.
func (p *ComposioProvider) GetIntegrations(ctx context.Context, query ListQuery) ([]IntegrationItem, error) {
	page, err := networking.FetchJSON[composioToolkitPage](ctx, p.http,
		p.endpoint("/toolkits", pageValues(query)), p.authOption())
	if err != nil {
		logger.Warnf("Failed to list composio toolkits: %v", err)
		return []IntegrationItem{}, nil
	}

	items := make([]IntegrationItem, 0, len(page.Items))
	for _, toolkit := range page.Items {
		items = append(items, toolkitToItem(toolkit))
	}
	return items, nil
}

// GetIntegration implements Provider.
func (p *ComposioProvider) GetIntegration(ctx context.Context, id string) (*IntegrationItem, error) {
	toolkit, err := networking.FetchJSON[composioToolkit](ctx, p.http,
		p.endpoint("/toolkits/"+url.PathEscape(id), nil), p.authOption())
	if err != nil {
		if networking.IsHTTPError(err, http.StatusNotFound) {
			return nil, errors.NewNotFoundError(fmt.Sprintf("toolkit %q not found", id), err)
		}
		return nil, errors.NewProviderError(fmt.Sprintf("failed to fetch toolkit %q", id), err)
	}
	item := toolkitToItem(toolkit)
	return &item, nil
}

type composioAuthField struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
}

type composioAuthDetails struct {
	AuthConfigDetails []struct {
		Fields struct {
			ConnectedAccountInitiation struct {
				Required []composioAuthField `json:"required"`
				Optional []composioAuthField `json:"optional"`
			} `json:"connected_account_initiation"`
		} `json:"fields"`
	} `json:"auth_config_details"`
}

// GetIntegrationRequiredParams reads the toolkit's declared input-field
// schema for connected account initiation.
func (p *ComposioProvider) GetIntegrationRequiredParams(ctx context.Context, id string) ([]RequiredParam, error) {
	details, err := networking.FetchJSON[composioAuthDetails](ctx, p.http,
		p.endpoint("/toolkits/"+url.PathEscape(id), nil), p.authOption())
	if err != nil {
		return nil, errors.NewProviderError(fmt.Sprintf("failed to fetch auth schema for toolkit %q", id), err)
	}

	var params []RequiredParam
	for _, detail := range details.AuthConfigDetails {
		initiation := detail.Fields.ConnectedAccountInitiation
		for _, field := range initiation.Required {
			params = append(params, authFieldToParam(field, true))
		}
		for _, field := range initiation.Optional {
			params = append(params, authFieldToParam(field, false))
		}
	}
	return params, nil
}

type composioTool struct {
	Slug            string         `json:"slug"`
	Name            string         `json:"name"`
	Description     string         `json:"description"`
	InputParameters map[string]any `json:"input_parameters"`
}

type composioToolPage struct {
	Items []composioTool `json:"items"`
}

// GetIntegrationTools lists the broker's tools for a toolkit. Remote
// failures degrade to an empty list.
func (p *ComposioProvider) GetIntegrationTools(ctx context.Context, id, _ string) ([]Tool, error) {
	values := url.Values{"toolkit_slug": {id}}
	page, err := networking.FetchJSON[composioToolPage](ctx, p.http,
		p.endpoint("/tools", values), p.authOption())
	if err != nil {
		logger.Warnf("Failed to list composio tools for %s: %v", id, err)
		return []Tool{}, nil
	}

	tools := make([]Tool, 0, len(page.Items))
	for _, tool := range page.Items {
		tools = append(tools, Tool{
			Slug:        tool.Slug,
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputParameters,
		})
	}
	return tools, nil
}

type composioConnectedAccount struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Toolkit struct {
		Slug string `json:"slug"`
	} `json:"toolkit"`
	RedirectURL string `json:"redirect_url"`
}

type composioMCPServer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type composioMCPServerPage struct {
	Items []composioMCPServer `json:"items"`
}

// InitiateConnection creates a remote connected account for the
// toolkit, finds or provisions the toolkit's MCP server, and derives
// the tool-invocation URL from the pair of ids.
func (p *ComposioProvider) InitiateConnection(ctx context.Context, cfg ConnectionConfig) (*ConnectionResult, error) {
	account, err := networking.FetchJSON[composioConnectedAccount](ctx, p.http,
		p.endpoint("/connected_accounts", nil),
		p.authOption(),
		networking.WithJSONBody(map[string]any{
			"toolkit_slug": cfg.IntegrationID,
			"user_id":      cfg.OrganizationID,
			"state":        map[string]any{"val": cfg.Params},
		}))
	if err != nil {
		return nil, errors.NewProviderError(
			fmt.Sprintf("failed to create connected account for %q", cfg.IntegrationID), err)
	}

	server, err := p.findOrCreateMCPServer(ctx, cfg.IntegrationID, cfg.AllowedTools)
	if err != nil {
		return nil, err
	}

	status, ok := TranslateStatus(p.StatusMap(), account.Status)
	if !ok {
		logger.Warnf("Composio returned unknown account status %q, treating as pending", account.Status)
		status = StatusPending
	}

	return &ConnectionResult{
		IntegrationID: cfg.IntegrationID,
		Status:        status,
		AppName:       account.Toolkit.Slug,
		MCPURL:        fmt.Sprintf("%s/composio/server/%s/mcp?connected_account_id=%s", composioMCPBaseURL, server.ID, account.ID),
		Metadata: map[string]any{
			"connectedAccountId": account.ID,
			"mcpServerId":        server.ID,
			"redirectUrl":        account.RedirectURL,
		},
	}, nil
}

// findOrCreateMCPServer returns the broker MCP server bound to the
// toolkit, creating one if none exists yet.
func (p *ComposioProvider) findOrCreateMCPServer(ctx context.Context, toolkit string, allowedTools []string) (*composioMCPServer, error) {
	values := url.Values{"toolkits": {toolkit}}
	page, err := networking.FetchJSON[composioMCPServerPage](ctx, p.http,
		p.endpoint("/mcp/servers", values), p.authOption())
	if err != nil {
		return nil, errors.NewProviderError(fmt.Sprintf("failed to look up MCP server for %q", toolkit), err)
	}
	if len(page.Items) > 0 {
		return &page.Items[0], nil
	}

	body := map[string]any{
		"name":     toolkit,
		"toolkits": []string{toolkit},
	}
	if len(allowedTools) > 0 {
		body["allowed_tools"] = allowedTools
	}
	server, err := networking.FetchJSON[composioMCPServer](ctx, p.http,
		p.endpoint("/mcp/servers", nil), p.authOption(), networking.WithJSONBody(body))
	if err != nil {
		return nil, errors.NewProviderError(fmt.Sprintf("failed to create MCP server for %q", toolkit), err)
	}
	return &server, nil
}

type composioAccountPage struct {
	Items      []composioConnectedAccount `json:"items"`
	TotalItems int                        `json:"total_items"`
}

// GetConnections lists the broker's connected accounts. Remote failures
// degrade to an empty page.
func (p *ComposioProvider) GetConnections(ctx context.Context, query ListQuery) (*ConnectionsPage, error) {
	page, err := networking.FetchJSON[composioAccountPage](ctx, p.http,
		p.endpoint("/connected_accounts", pageValues(query)), p.authOption())
	if err != nil {
		logger.Warnf("Failed to list composio connected accounts: %v", err)
		return &ConnectionsPage{Data: []ConnectionResult{}}, nil
	}

	data := make([]ConnectionResult, 0, len(page.Items))
	for _, account := range page.Items {
		status, ok := TranslateStatus(p.StatusMap(), account.Status)
		if !ok {
			status = account.Status
		}
		data = append(data, ConnectionResult{
			IntegrationID: account.Toolkit.Slug,
			Status:        status,
			AppName:       account.Toolkit.Slug,
			Metadata:      map[string]any{"connectedAccountId": account.ID},
		})
	}
	return &ConnectionsPage{Data: data, Total: page.TotalItems}, nil
}

func (p *ComposioProvider) authOption() networking.FetchOption {
	return networking.WithHeader(composioAPIKeyHeader, p.apiKey)
}

func (p *ComposioProvider) endpoint(path string, values url.Values) string {
	endpoint := p.baseURL + path
	if len(values) > 0 {
		endpoint += "?" + values.Encode()
	}
	return endpoint
}

// pageValues encodes cursor pagination and pass-through filters.
func pageValues(query ListQuery) url.Values {
	values := url.Values{}
	if query.Cursor != "" {
		values.Set("cursor", query.Cursor)
	}
	if query.Limit > 0 {
		values.Set("limit", strconv.Itoa(query.Limit))
	}
	for k, v := range query.Filters {
		values.Set(k, v)
	}
	return values
}

func toolkitToItem(toolkit composioToolkit) IntegrationItem {
	authType := ""
	if len(toolkit.AuthSchemes) > 0 {
		authType = toolkit.AuthSchemes[0]
	}
	return IntegrationItem{
		ID:          toolkit.Slug,
		Provider:    composioProviderName,
		Name:        toolkit.Name,
		Description: toolkit.Meta.Description,
		LogoURL:     toolkit.Meta.Logo,
		AuthType:    authType,
	}
}

func authFieldToParam(field composioAuthField, required bool) RequiredParam {
	return RequiredParam{
		Name:        field.Name,
		DisplayName: field.DisplayName,
		Description: field.Description,
		Type:        field.Type,
		Required:    required || field.Required,
	}
}

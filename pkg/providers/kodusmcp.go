package providers

import (
	"context"
	"fmt"

	"github.com/kodustech/mcp-manager/pkg/errors"
)

const kodusMCPProviderName = "kodusmcp"

const kodusMCPIntegrationID = "kodus-mcp"

// kodusMCPIntegration is the single first-party catalog entry. It is
// inert data: no remote calls back it.
var kodusMCPIntegration = IntegrationItem{
	ID:          kodusMCPIntegrationID,
	Provider:    kodusMCPProviderName,
	Name:        "Kodus MCP",
	Description: "First-party tools for repository and review automation",
	BaseURL:     "https://mcp.kodus.io/mcp",
	Protocol:    "http",
	AuthType:    "none",
}

var kodusMCPTools = []Tool{
	{
		Slug:        "get_pull_request",
		Name:        "Get Pull Request",
		Description: "Fetch a pull request with its diff and review state",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"repository": map[string]any{"type": "string"},
				"number":     map[string]any{"type": "number"},
			},
			"required": []string{"repository", "number"},
		},
	},
	{
		Slug:        "list_repositories",
		Name:        "List Repositories",
		Description: "List the repositories visible to the organization",
		InputSchema: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
	},
	{
		Slug:        "create_review_comment",
		Name:        "Create Review Comment",
		Description: "Post a review comment on a pull request line",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"repository": map[string]any{"type": "string"},
				"number":     map[string]any{"type": "number"},
				"path":       map[string]any{"type": "string"},
				"line":       map[string]any{"type": "number"},
				"body":       map[string]any{"type": "string"},
			},
			"required": []string{"repository", "number", "path", "line", "body"},
		},
	},
}

// KodusMCPProvider serves the hardcoded first-party catalog. Everything
// it returns is static and the single integration is always connected.
type KodusMCPProvider struct{}

// NewKodusMCPProvider creates the first-party catalog adapter.
func NewKodusMCPProvider() *KodusMCPProvider {
	return &KodusMCPProvider{}
}

// Name implements Provider.
func (p *KodusMCPProvider) Name() string { return kodusMCPProviderName }

// StatusMap implements Provider.
func (p *KodusMCPProvider) StatusMap() map[string]string {
	return withInternalIdentity(nil)
}

// GetIntegrations implements Provider.
func (p *KodusMCPProvider) GetIntegrations(_ context.Context, _ ListQuery) ([]IntegrationItem, error) {
	return []IntegrationItem{kodusMCPIntegration}, nil
}

// GetIntegration implements Provider.
func (p *KodusMCPProvider) GetIntegration(_ context.Context, id string) (*IntegrationItem, error) {
	if id != kodusMCPIntegrationID {
		return nil, errors.NewNotFoundError(fmt.Sprintf("integration %q not found", id), nil)
	}
	item := kodusMCPIntegration
	return &item, nil
}

// GetIntegrationRequiredParams implements Provider.
func (p *KodusMCPProvider) GetIntegrationRequiredParams(_ context.Context, _ string) ([]RequiredParam, error) {
	return nil, nil
}

// GetIntegrationTools implements Provider.
func (p *KodusMCPProvider) GetIntegrationTools(_ context.Context, id, _ string) ([]Tool, error) {
	if id != kodusMCPIntegrationID {
		return nil, errors.NewNotFoundError(fmt.Sprintf("integration %q not found", id), nil)
	}
	tools := make([]Tool, len(kodusMCPTools))
	copy(tools, kodusMCPTools)
	return tools, nil
}

// InitiateConnection implements Provider. The catalog is connected by
// default, so this just reports an active connection.
func (p *KodusMCPProvider) InitiateConnection(_ context.Context, cfg ConnectionConfig) (*ConnectionResult, error) {
	if cfg.IntegrationID != kodusMCPIntegrationID {
		return nil, errors.NewNotFoundError(fmt.Sprintf("integration %q not found", cfg.IntegrationID), nil)
	}
	return &ConnectionResult{
		IntegrationID: kodusMCPIntegrationID,
		Status:        StatusActive,
		AppName:       kodusMCPIntegration.Name,
		MCPURL:        kodusMCPIntegration.BaseURL,
	}, nil
}

// GetConnections implements Provider.
func (p *KodusMCPProvider) GetConnections(_ context.Context, _ ListQuery) (*ConnectionsPage, error) {
	return &ConnectionsPage{
		Data: []ConnectionResult{{
			IntegrationID: kodusMCPIntegrationID,
			Status:        StatusActive,
			AppName:       kodusMCPIntegration.Name,
			MCPURL:        kodusMCPIntegration.BaseURL,
		}},
		Total: 1,
	}, nil
}

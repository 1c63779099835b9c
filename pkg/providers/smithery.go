package providers

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/kodustech/mcp-manager/pkg/errors"
	"github.com/kodustech/mcp-manager/pkg/integrations"
	"github.com/kodustech/mcp-manager/pkg/logger"
	"github.com/kodustech/mcp-manager/pkg/storage"
)

const smitheryProviderName = "smithery"

// SmitheryTemplate is one entry of the fixed integration catalog. The
// header shape varies per template: a named header carries the secret
// raw, an empty HeaderName means a Bearer-prefixed Authorization
// header.
type SmitheryTemplate struct {
	ID             string
	Name           string
	Description    string
	LogoURL        string
	BaseURL        string
	Protocol       integrations.Protocol
	HeaderName     string
	SecretParam    string
	RequiredParams []RequiredParam
}

// smitheryTemplates is the shipped catalog.
var smitheryTemplates = []SmitheryTemplate{
	{
		ID:          "sentry",
		Name:        "Sentry",
		Description: "Error tracking and performance monitoring",
		LogoURL:     "https://sentry.io/_assets/logos/sentry-glyph-dark.png",
		BaseURL:     "https://mcp.sentry.dev/mcp",
		Protocol:    integrations.ProtocolHTTP,
		SecretParam: "auth_token",
		RequiredParams: []RequiredParam{
			{Name: "auth_token", DisplayName: "Auth Token", Type: "string", Required: true},
		},
	},
	{
		ID:          "exa",
		Name:        "Exa",
		Description: "Web search built for AI agents",
		LogoURL:     "https://exa.ai/images/exa-logo.png",
		BaseURL:     "https://mcp.exa.ai/mcp",
		Protocol:    integrations.ProtocolHTTP,
		HeaderName:  "x-api-key",
		SecretParam: "api_key",
		RequiredParams: []RequiredParam{
			{Name: "api_key", DisplayName: "API Key", Type: "string", Required: true},
		},
	},
	{
		ID:          "context7",
		Name:        "Context7",
		Description: "Up-to-date library documentation for code generation",
		LogoURL:     "https://context7.com/logo.png",
		BaseURL:     "https://mcp.context7.com/mcp",
		Protocol:    integrations.ProtocolHTTP,
		HeaderName:  "CONTEXT7_API_KEY",
		SecretParam: "api_key",
		RequiredParams: []RequiredParam{
			{Name: "api_key", DisplayName: "API Key", Type: "string", Required: true},
		},
	},
}

// endpointProber verifies a persisted integration by listing the tools
// of its live endpoint.
type endpointProber interface {
	ProbeTools(ctx context.Context, integration *integrations.Integration) ([]Tool, error)
}

// SmitheryProvider serves a fixed catalog of integration templates.
// Connecting a template persists a custom-type integration carrying the
// caller's credentials and probes the live endpoint.
type SmitheryProvider struct {
	integrations *integrations.Service
	prober       endpointProber
}

// NewSmitheryProvider creates the template catalog adapter.
func NewSmitheryProvider(svc *integrations.Service, prober endpointProber) *SmitheryProvider {
	return &SmitheryProvider{integrations: svc, prober: prober}
}

// Name implements Provider.
func (p *SmitheryProvider) Name() string { return smitheryProviderName }

// StatusMap implements Provider.
func (p *SmitheryProvider) StatusMap() map[string]string {
	return withInternalIdentity(nil)
}

// GetIntegrations merges the static catalog with the organization's
// already-connected custom integrations, de-duplicating by base URL so
// a connected template does not also appear as available.
func (p *SmitheryProvider) GetIntegrations(ctx context.Context, query ListQuery) ([]IntegrationItem, error) {
	connected := p.connectedByBaseURL(ctx, query.OrganizationID)

	items := make([]IntegrationItem, 0, len(smitheryTemplates))
	for _, template := range smitheryTemplates {
		item := templateToItem(template)
		if integration, ok := connected[template.BaseURL]; ok {
			// The stored integration id replaces the template id so
			// downstream joins resolve to the connected instance.
			item.ID = integration.ID
			item.AuthType = string(integration.Auth.Type)
		}
		items = append(items, item)
	}
	return items, nil
}

// GetIntegration implements Provider.
func (p *SmitheryProvider) GetIntegration(_ context.Context, id string) (*IntegrationItem, error) {
	template, ok := findTemplate(id)
	if !ok {
		return nil, errors.NewNotFoundError(fmt.Sprintf("template %q not found", id), nil)
	}
	item := templateToItem(*template)
	return &item, nil
}

// GetIntegrationRequiredParams implements Provider.
func (p *SmitheryProvider) GetIntegrationRequiredParams(_ context.Context, id string) ([]RequiredParam, error) {
	template, ok := findTemplate(id)
	if !ok {
		return nil, errors.NewNotFoundError(fmt.Sprintf("template %q not found", id), nil)
	}
	return template.RequiredParams, nil
}

// GetIntegrationTools probes the organization's connected instance of
// the template. An unconnected template has no reachable endpoint and
// degrades to an empty list.
func (p *SmitheryProvider) GetIntegrationTools(ctx context.Context, id, organizationID string) ([]Tool, error) {
	template, ok := findTemplate(id)
	if !ok {
		integration, err := p.integrations.Get(ctx, id, organizationID)
		if err != nil {
			return nil, err
		}
		return p.prober.ProbeTools(ctx, integration)
	}

	connected := p.connectedByBaseURL(ctx, organizationID)
	integration, ok := connected[template.BaseURL]
	if !ok {
		return []Tool{}, nil
	}
	return p.prober.ProbeTools(ctx, integration)
}

// InitiateConnection validates the supplied params against the
// template, persists a custom-type integration with the credentials in
// the template's header shape, and probes the endpoint for its tools.
func (p *SmitheryProvider) InitiateConnection(ctx context.Context, cfg ConnectionConfig) (*ConnectionResult, error) {
	template, ok := findTemplate(cfg.IntegrationID)
	if !ok {
		return nil, errors.NewNotFoundError(fmt.Sprintf("template %q not found", cfg.IntegrationID), nil)
	}

	for _, param := range template.RequiredParams {
		if param.Required && cfg.Params[param.Name] == "" {
			return nil, errors.NewValidationError(
				fmt.Sprintf("template %q requires parameter %q", template.ID, param.Name), nil)
		}
	}

	secret := cfg.Params[template.SecretParam]
	auth := integrations.Auth{}
	if template.HeaderName != "" {
		auth.Type = integrations.AuthTypeAPIKey
		auth.APIKey = &integrations.APIKeyAuth{APIKey: secret, HeaderName: template.HeaderName}
	} else {
		auth.Type = integrations.AuthTypeBearerToken
		auth.BearerToken = &integrations.BearerTokenAuth{Token: secret}
	}

	integration, err := p.integrations.Create(ctx, integrations.CreateRequest{
		OrganizationID: cfg.OrganizationID,
		Protocol:       template.Protocol,
		BaseURL:        template.BaseURL,
		Name:           template.Name,
		Description:    template.Description,
		LogoURL:        template.LogoURL,
		Auth:           auth,
	})
	if err != nil {
		return nil, err
	}

	tools, err := p.prober.ProbeTools(ctx, integration)
	if err != nil {
		return nil, errors.NewProviderError(
			fmt.Sprintf("failed to connect to %s at %s", template.Name, template.BaseURL), err)
	}

	slugs := make([]string, 0, len(tools))
	for _, tool := range tools {
		slugs = append(slugs, tool.Slug)
	}

	return &ConnectionResult{
		IntegrationID: integration.ID,
		Status:        StatusActive,
		AppName:       template.Name,
		MCPURL:        template.BaseURL,
		Metadata: map[string]any{
			"templateId": template.ID,
			"tools":      slugs,
		},
	}, nil
}

// GetConnections implements Provider. Template connections live in
// local storage as custom integrations.
func (p *SmitheryProvider) GetConnections(_ context.Context, _ ListQuery) (*ConnectionsPage, error) {
	return &ConnectionsPage{Data: []ConnectionResult{}}, nil
}

// connectedByBaseURL indexes the organization's stored integrations
// whose base URL matches a known template domain.
func (p *SmitheryProvider) connectedByBaseURL(ctx context.Context, organizationID string) map[string]*integrations.Integration {
	active := true
	stored, err := p.integrations.Find(ctx, storage.IntegrationFilter{
		OrganizationID: organizationID,
		Active:         &active,
	})
	if err != nil {
		logger.Warnf("Failed to list integrations for template merge: %v", err)
		return nil
	}

	known := make(map[string]struct{}, len(smitheryTemplates))
	for _, template := range smitheryTemplates {
		known[templateHost(template.BaseURL)] = struct{}{}
	}

	connected := make(map[string]*integrations.Integration)
	for _, integration := range stored {
		if _, ok := known[templateHost(integration.BaseURL)]; ok {
			connected[integration.BaseURL] = integration
		}
	}
	return connected
}

func findTemplate(id string) (*SmitheryTemplate, bool) {
	for i := range smitheryTemplates {
		if smitheryTemplates[i].ID == id {
			return &smitheryTemplates[i], true
		}
	}
	return nil, false
}

func templateToItem(template SmitheryTemplate) IntegrationItem {
	authType := string(integrations.AuthTypeBearerToken)
	if template.HeaderName != "" {
		authType = string(integrations.AuthTypeAPIKey)
	}
	return IntegrationItem{
		ID:             template.ID,
		Provider:       smitheryProviderName,
		Name:           template.Name,
		Description:    template.Description,
		LogoURL:        template.LogoURL,
		BaseURL:        template.BaseURL,
		Protocol:       string(template.Protocol),
		AuthType:       authType,
		RequiredParams: template.RequiredParams,
	}
}

func templateHost(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return strings.ToLower(rawURL)
	}
	return strings.ToLower(parsed.Host)
}

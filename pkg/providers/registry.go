package providers

import (
	"fmt"

	"github.com/kodustech/mcp-manager/pkg/config"
	"github.com/kodustech/mcp-manager/pkg/errors"
	"github.com/kodustech/mcp-manager/pkg/integrations"
)

// Registry holds the enabled providers and dispatches by name.
type Registry struct {
	providers map[string]Provider
	order     []string
}

// NewRegistry builds a registry from explicit provider instances.
// Duplicate names are a programming error.
func NewRegistry(providers ...Provider) (*Registry, error) {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		if _, ok := r.providers[p.Name()]; ok {
			return nil, errors.NewConfigError(fmt.Sprintf("duplicate provider %q", p.Name()), nil)
		}
		r.providers[p.Name()] = p
		r.order = append(r.order, p.Name())
	}
	return r, nil
}

// NewRegistryFromConfig instantiates the providers enabled in the
// configuration. An unknown provider name fails startup rather than
// being silently skipped.
func NewRegistryFromConfig(cfg *config.Config, svc *integrations.Service) (*Registry, error) {
	custom := NewCustomProvider(svc)

	built := make([]Provider, 0, len(cfg.Providers))
	for _, name := range cfg.Providers {
		switch name {
		case config.ProviderComposio:
			if cfg.Composio.APIKey == "" {
				return nil, errors.NewConfigError("composio provider is enabled but no API key is configured", nil)
			}
			built = append(built, NewComposioProvider(cfg.Composio.APIKey, cfg.Composio.BaseURL))
		case config.ProviderSmithery:
			built = append(built, NewSmitheryProvider(svc, custom))
		case config.ProviderCustom:
			built = append(built, custom)
		case config.ProviderKodusMCP:
			built = append(built, NewKodusMCPProvider())
		default:
			return nil, errors.NewConfigError(fmt.Sprintf("unknown provider %q in configuration", name), nil)
		}
	}
	return NewRegistry(built...)
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, errors.NewNotFoundError(fmt.Sprintf("provider %q is not enabled", name), nil)
	}
	return p, nil
}

// All returns the enabled providers in configuration order.
func (r *Registry) All() []Provider {
	result := make([]Provider, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.providers[name])
	}
	return result
}

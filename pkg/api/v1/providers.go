package v1

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kodustech/mcp-manager/pkg/auth"
	"github.com/kodustech/mcp-manager/pkg/providers"
)

// ProvidersRoutes defines the per-provider listing routes.
type ProvidersRoutes struct {
	registry *providers.Registry
}

// ProvidersRouter creates a new ProvidersRoutes instance.
func ProvidersRouter(registry *providers.Registry) http.Handler {
	routes := ProvidersRoutes{registry: registry}

	r := chi.NewRouter()
	r.Get("/", routes.listProviders)
	r.Get("/{name}/integrations", routes.listIntegrations)
	r.Get("/{name}/integrations/{id}", routes.getIntegration)
	r.Get("/{name}/integrations/{id}/params", routes.getRequiredParams)
	r.Get("/{name}/integrations/{id}/tools", routes.getTools)
	r.Get("/{name}/connections", routes.listProviderConnections)

	return r
}

type providerListResponse struct {
	Providers []string `json:"providers"`
}

func (s *ProvidersRoutes) listProviders(w http.ResponseWriter, _ *http.Request) {
	enabled := s.registry.All()
	names := make([]string, 0, len(enabled))
	for _, provider := range enabled {
		names = append(names, provider.Name())
	}
	writeJSON(w, http.StatusOK, providerListResponse{Providers: names})
}

func (s *ProvidersRoutes) provider(w http.ResponseWriter, r *http.Request) (providers.Provider, bool) {
	provider, err := s.registry.Get(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return provider, true
}

func listQueryFrom(r *http.Request) providers.ListQuery {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))
	return providers.ListQuery{
		OrganizationID: auth.OrganizationID(r.Context()),
		Cursor:         query.Get("cursor"),
		Limit:          limit,
	}
}

func (s *ProvidersRoutes) listIntegrations(w http.ResponseWriter, r *http.Request) {
	provider, ok := s.provider(w, r)
	if !ok {
		return
	}

	items, err := provider.GetIntegrations(r.Context(), listQueryFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, integrationItemsResponse{Integrations: items})
}

func (s *ProvidersRoutes) getIntegration(w http.ResponseWriter, r *http.Request) {
	provider, ok := s.provider(w, r)
	if !ok {
		return
	}

	item, err := provider.GetIntegration(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

type requiredParamsResponse struct {
	Params []providers.RequiredParam `json:"params"`
}

func (s *ProvidersRoutes) getRequiredParams(w http.ResponseWriter, r *http.Request) {
	provider, ok := s.provider(w, r)
	if !ok {
		return
	}

	params, err := provider.GetIntegrationRequiredParams(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, requiredParamsResponse{Params: params})
}

type toolListResponse struct {
	Tools []providers.Tool `json:"tools"`
}

func (s *ProvidersRoutes) getTools(w http.ResponseWriter, r *http.Request) {
	provider, ok := s.provider(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	tools, err := provider.GetIntegrationTools(ctx, chi.URLParam(r, "id"), auth.OrganizationID(ctx))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toolListResponse{Tools: tools})
}

func (s *ProvidersRoutes) listProviderConnections(w http.ResponseWriter, r *http.Request) {
	provider, ok := s.provider(w, r)
	if !ok {
		return
	}

	page, err := provider.GetConnections(r.Context(), listQueryFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

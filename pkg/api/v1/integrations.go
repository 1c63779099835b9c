package v1

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kodustech/mcp-manager/pkg/auth"
	"github.com/kodustech/mcp-manager/pkg/integrations"
	"github.com/kodustech/mcp-manager/pkg/storage"
)

// IntegrationsRoutes defines the routes for integration management.
type IntegrationsRoutes struct {
	service *integrations.Service
}

// IntegrationsRouter creates a new IntegrationsRoutes instance.
func IntegrationsRouter(service *integrations.Service) http.Handler {
	routes := IntegrationsRoutes{service: service}

	r := chi.NewRouter()
	r.Get("/", routes.listIntegrations)
	r.Post("/", routes.createIntegration)
	r.Post("/oauth2", routes.createOAuth2Integration)
	r.Get("/{id}", routes.getIntegration)
	r.Put("/{id}", routes.editIntegration)
	r.Delete("/{id}", routes.deleteIntegration)
	r.Get("/{id}/refreshed", routes.getRefreshedIntegration)

	return r
}

type integrationRequest struct {
	Protocol    string            `json:"protocol"`
	BaseURL     string            `json:"baseUrl"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	LogoURL     string            `json:"logoUrl"`
	Auth        integrations.Auth `json:"auth"`
	Headers     map[string]string `json:"headers"`
}

type integrationListResponse struct {
	Integrations []*integrations.Integration `json:"integrations"`
}

func (s *IntegrationsRoutes) listIntegrations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := storage.IntegrationFilter{
		OrganizationID: auth.OrganizationID(ctx),
		AuthType:       r.URL.Query().Get("authType"),
		Name:           r.URL.Query().Get("name"),
	}
	list, err := s.service.Find(ctx, filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, integrationListResponse{Integrations: list})
}

func (s *IntegrationsRoutes) createIntegration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req integrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	integration, err := s.service.Create(ctx, integrations.CreateRequest{
		OrganizationID: auth.OrganizationID(ctx),
		Protocol:       integrations.Protocol(req.Protocol),
		BaseURL:        req.BaseURL,
		Name:           req.Name,
		Description:    req.Description,
		LogoURL:        req.LogoURL,
		Auth:           req.Auth,
		Headers:        req.Headers,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, integration)
}

type oauth2CreateRequest struct {
	Protocol     string            `json:"protocol"`
	BaseURL      string            `json:"baseUrl"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	LogoURL      string            `json:"logoUrl"`
	ClientID     string            `json:"clientId"`
	ClientSecret string            `json:"clientSecret"`
	Scopes       []string          `json:"scopes"`
	Headers      map[string]string `json:"headers"`
}

func (s *IntegrationsRoutes) createOAuth2Integration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req oauth2CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := s.service.CreateOAuth2(ctx, integrations.CreateOAuth2Request{
		OrganizationID: auth.OrganizationID(ctx),
		Protocol:       integrations.Protocol(req.Protocol),
		BaseURL:        req.BaseURL,
		Name:           req.Name,
		Description:    req.Description,
		LogoURL:        req.LogoURL,
		ClientID:       req.ClientID,
		ClientSecret:   req.ClientSecret,
		Scopes:         req.Scopes,
		Headers:        req.Headers,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *IntegrationsRoutes) getIntegration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	integration, err := s.service.Get(ctx, chi.URLParam(r, "id"), auth.OrganizationID(ctx))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, integration)
}

func (s *IntegrationsRoutes) editIntegration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req integrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	integration, err := s.service.Edit(ctx, chi.URLParam(r, "id"), integrations.CreateRequest{
		OrganizationID: auth.OrganizationID(ctx),
		Protocol:       integrations.Protocol(req.Protocol),
		BaseURL:        req.BaseURL,
		Name:           req.Name,
		Description:    req.Description,
		LogoURL:        req.LogoURL,
		Auth:           req.Auth,
		Headers:        req.Headers,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, integration)
}

func (s *IntegrationsRoutes) deleteIntegration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.service.Delete(ctx, chi.URLParam(r, "id"), auth.OrganizationID(ctx)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// getRefreshedIntegration returns the integration with a token set
// guaranteed to be usable, refreshing first when it is near expiry.
func (s *IntegrationsRoutes) getRefreshedIntegration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	integration, err := s.service.GetRefreshedOAuthIntegration(ctx, chi.URLParam(r, "id"), auth.OrganizationID(ctx))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, integration)
}

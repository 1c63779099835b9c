package v1

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kodustech/mcp-manager/pkg/auth"
	"github.com/kodustech/mcp-manager/pkg/connections"
	"github.com/kodustech/mcp-manager/pkg/providers"
	"github.com/kodustech/mcp-manager/pkg/storage"
)

// ConnectionsRoutes defines the routes for connection management and
// cross-provider integration listing.
type ConnectionsRoutes struct {
	service *connections.Service
}

// ConnectionsRouter creates a new ConnectionsRoutes instance.
func ConnectionsRouter(service *connections.Service) http.Handler {
	routes := ConnectionsRoutes{service: service}

	r := chi.NewRouter()
	r.Get("/", routes.listConnections)
	r.Get("/integrations", routes.listIntegrations)
	r.Post("/{provider}", routes.initiateConnection)
	r.Patch("/", routes.updateConnection)
	r.Delete("/{integrationId}", routes.deleteConnection)

	return r
}

type connectionListResponse struct {
	Connections []storage.ConnectionRecord `json:"connections"`
}

func (s *ConnectionsRoutes) listConnections(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	list, err := s.service.GetConnections(ctx, auth.OrganizationID(ctx), r.URL.Query().Get("provider"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, connectionListResponse{Connections: list})
}

type integrationItemsResponse struct {
	Integrations []providers.IntegrationItem `json:"integrations"`
}

// listIntegrations fans out to every enabled provider and annotates the
// flattened list with the organization's stored connections.
func (s *ConnectionsRoutes) listIntegrations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	limit, _ := strconv.Atoi(query.Get("limit"))
	items, err := s.service.GetIntegrations(ctx, auth.OrganizationID(ctx), providers.ListQuery{
		Cursor: query.Get("cursor"),
		Limit:  limit,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, integrationItemsResponse{Integrations: items})
}

type initiateConnectionRequest struct {
	IntegrationID string            `json:"integrationId"`
	AllowedTools  []string          `json:"allowedTools"`
	Params        map[string]string `json:"params"`
}

func (s *ConnectionsRoutes) initiateConnection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req initiateConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.IntegrationID == "" {
		http.Error(w, "integrationId is required", http.StatusBadRequest)
		return
	}

	record, err := s.service.InitiateConnection(ctx, auth.OrganizationID(ctx), chi.URLParam(r, "provider"),
		connections.InitiateRequest{
			IntegrationID: req.IntegrationID,
			AllowedTools:  req.AllowedTools,
			Params:        req.Params,
		})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

type updateConnectionRequest struct {
	IntegrationID string         `json:"integrationId"`
	Status        string         `json:"status"`
	Metadata      map[string]any `json:"metadata"`
}

func (s *ConnectionsRoutes) updateConnection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req updateConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.IntegrationID == "" {
		http.Error(w, "integrationId is required", http.StatusBadRequest)
		return
	}

	record, err := s.service.UpdateConnection(ctx, auth.OrganizationID(ctx), connections.UpdateRequest{
		IntegrationID: req.IntegrationID,
		Status:        req.Status,
		Metadata:      req.Metadata,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *ConnectionsRoutes) deleteConnection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	err := s.service.DeleteConnection(ctx, auth.OrganizationID(ctx), chi.URLParam(r, "integrationId"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

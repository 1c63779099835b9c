package v1

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kodustech/mcp-manager/pkg/integrations"
)

// OAuthRoutes defines the routes completing the OAuth flow. The
// callback is reached by browser redirect from the authorization
// server, so these routes sit outside the bearer-token middleware.
type OAuthRoutes struct {
	service *integrations.Service
}

// OAuthRouter creates a new OAuthRoutes instance.
func OAuthRouter(service *integrations.Service) http.Handler {
	routes := OAuthRoutes{service: service}

	r := chi.NewRouter()
	r.Get("/callback", routes.callback)

	return r
}

type callbackResponse struct {
	IntegrationID string `json:"integrationId"`
	Status        string `json:"status"`
}

// callback finalizes the authorization flow: it verifies the state
// parameter and exchanges the code for tokens. The authorization
// server redirects to the bare registered redirect URI, so the pending
// integration is resolved from the state value; an explicit
// integrationId query parameter short-circuits the lookup.
func (s *OAuthRoutes) callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	if errCode := query.Get("error"); errCode != "" {
		http.Error(w, "Authorization was denied: "+errCode, http.StatusBadRequest)
		return
	}

	integrationID := query.Get("integrationId")
	if integrationID == "" {
		integration, err := s.service.FindByOAuthState(ctx, query.Get("state"))
		if err != nil {
			writeError(w, err)
			return
		}
		integrationID = integration.ID
	}

	integration, err := s.service.FinalizeOAuthFlow(ctx, integrations.FinalizeRequest{
		IntegrationID: integrationID,
		Code:          query.Get("code"),
		State:         query.Get("state"),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, callbackResponse{
		IntegrationID: integration.ID,
		Status:        integrations.OAuthStatusActive,
	})
}

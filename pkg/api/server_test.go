package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kodustech/mcp-manager/pkg/connections"
	"github.com/kodustech/mcp-manager/pkg/crypto"
	"github.com/kodustech/mcp-manager/pkg/integrations"
	"github.com/kodustech/mcp-manager/pkg/oauth"
	"github.com/kodustech/mcp-manager/pkg/providers"
	"github.com/kodustech/mcp-manager/pkg/storage/sqlite"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cipher, err := crypto.NewCipher("test-secret")
	require.NoError(t, err)

	integrationService := integrations.NewService(
		sqlite.NewIntegrationStore(db),
		sqlite.NewOAuthStateStore(db),
		cipher,
		oauth.NewClient(),
		"https://manager.example.com/api/v1/oauth/callback",
	)

	registry, err := providers.NewRegistry(
		providers.NewKodusMCPProvider(),
		providers.NewCustomProvider(integrationService),
	)
	require.NoError(t, err)

	connectionService := connections.NewService(sqlite.NewConnectionStore(db), registry)

	return Router(Deps{
		Integrations: integrationService,
		Connections:  connectionService,
		Registry:     registry,
	})
}

func bearerToken(t *testing.T, organizationID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"organizationId": organizationID})
	signed, err := token.SignedString([]byte("upstream-gateway"))
	require.NoError(t, err)
	return "Bearer " + signed
}

func doRequest(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthcheck(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	rec := doRequest(t, router, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAPIRequiresBearerToken(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	rec := doRequest(t, router, http.MethodGet, "/api/v1/integrations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIntegrationLifecycle(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	token := bearerToken(t, "org-1")

	createBody := map[string]any{
		"name":    "Internal Tools",
		"baseUrl": "https://tools.internal.example.com/mcp",
		"auth": map[string]any{
			"type":   "api_key",
			"apiKey": map[string]any{"apiKey": "k-123", "headerName": "x-api-key"},
		},
	}
	rec := doRequest(t, router, http.MethodPost, "/api/v1/integrations", token, createBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created integrations.Integration
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "org-1", created.OrganizationID)

	rec = doRequest(t, router, http.MethodGet, "/api/v1/integrations", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Integrations []integrations.Integration `json:"integrations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Integrations, 1)

	// Another organization cannot see or fetch it.
	otherToken := bearerToken(t, "org-2")
	rec = doRequest(t, router, http.MethodGet, "/api/v1/integrations", otherToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Empty(t, list.Integrations)

	rec = doRequest(t, router, http.MethodGet, "/api/v1/integrations/"+created.ID, otherToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, router, http.MethodDelete, "/api/v1/integrations/"+created.ID, token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/api/v1/integrations/"+created.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIntegrationValidation(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	token := bearerToken(t, "org-1")

	body := map[string]any{
		"name":    "Broken",
		"baseUrl": "https://tools.example.com/mcp",
		"auth":    map[string]any{"type": "api_key"},
	}
	rec := doRequest(t, router, http.MethodPost, "/api/v1/integrations", token, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOAuthCallbackResolvesIntegrationByState(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	token := bearerToken(t, "org-1")

	as := newAuthorizationServer(t)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/integrations/oauth2", token, map[string]any{
		"name":    "remote-tools",
		"baseUrl": as.URL + "/mcp",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created struct {
		AuthURL       string `json:"authUrl"`
		IntegrationID string `json:"integrationId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	authURL, err := url.Parse(created.AuthURL)
	require.NoError(t, err)
	state := authURL.Query().Get("state")
	require.NotEmpty(t, state)

	// The authorization server redirects to the bare registered
	// redirect URI: no integrationId travels in the callback, the
	// state value alone resolves the pending integration.
	rec = doRequest(t, router, http.MethodGet, "/api/v1/oauth/callback?code=auth-code&state="+state, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var finalized struct {
		IntegrationID string `json:"integrationId"`
		Status        string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &finalized))
	assert.Equal(t, created.IntegrationID, finalized.IntegrationID)
	assert.Equal(t, integrations.OAuthStatusActive, finalized.Status)

	rec = doRequest(t, router, http.MethodGet, "/api/v1/oauth/callback?code=auth-code&state=unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/api/v1/oauth/callback?code=auth-code", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// newAuthorizationServer serves the discovery, registration, and token
// endpoints the OAuth2 creation and callback paths talk to.
func newAuthorizationServer(t *testing.T) *httptest.Server {
	t.Helper()

	var asURL string
	writeDoc := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(v))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/oauth-authorization-server", func(w http.ResponseWriter, _ *http.Request) {
		writeDoc(w, map[string]any{
			"issuer":                 asURL,
			"authorization_endpoint": asURL + "/authorize",
			"token_endpoint":         asURL + "/token",
			"registration_endpoint":  asURL + "/register",
		})
	})
	mux.HandleFunc("/register", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		writeDoc(w, map[string]any{"client_id": "dyn-client"})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, _ *http.Request) {
		writeDoc(w, map[string]any{
			"access_token": "at-1", "refresh_token": "rt-1",
			"token_type": "Bearer", "expires_in": 3600,
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	asURL = srv.URL
	return srv
}

func TestConnectionFlow(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	token := bearerToken(t, "org-1")

	rec := doRequest(t, router, http.MethodGet, "/api/v1/connections/integrations", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var items struct {
		Integrations []providers.IntegrationItem `json:"integrations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.NotEmpty(t, items.Integrations)
	assert.Equal(t, "kodus-mcp", items.Integrations[0].ID)
	assert.False(t, items.Integrations[0].IsConnected)

	initiateBody := map[string]any{
		"integrationId": "kodus-mcp",
		"allowedTools":  []string{"get_pull_request"},
	}
	rec = doRequest(t, router, http.MethodPost, "/api/v1/connections/kodusmcp", token, initiateBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doRequest(t, router, http.MethodGet, "/api/v1/connections/integrations", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	assert.True(t, items.Integrations[0].IsConnected)
	assert.Equal(t, providers.StatusActive, items.Integrations[0].ConnectionStatus)

	// Updating through an unknown provider name is rejected.
	rec = doRequest(t, router, http.MethodPost, "/api/v1/connections/bogus", token, initiateBody)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	updateBody := map[string]any{
		"integrationId": "kodus-mcp",
		"status":        "INACTIVE",
	}
	rec = doRequest(t, router, http.MethodPatch, "/api/v1/connections/", token, updateBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(t, router, http.MethodDelete, "/api/v1/connections/kodus-mcp", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestProviderRoutes(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t)
	token := bearerToken(t, "org-1")

	rec := doRequest(t, router, http.MethodGet, "/api/v1/providers", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var names struct {
		Providers []string `json:"providers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &names))
	assert.Equal(t, []string{"kodusmcp", "custom"}, names.Providers)

	rec = doRequest(t, router, http.MethodGet, "/api/v1/providers/kodusmcp/integrations/kodus-mcp/tools", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tools struct {
		Tools []providers.Tool `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tools))
	assert.NotEmpty(t, tools.Tools)

	rec = doRequest(t, router, http.MethodGet, "/api/v1/providers/bogus/integrations", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

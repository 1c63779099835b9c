package networking

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsLocalhost(t *testing.T) {
	t.Parallel()

	assert.True(t, IsLocalhost("localhost"))
	assert.True(t, IsLocalhost("localhost:8080"))
	assert.True(t, IsLocalhost("127.0.0.1"))
	assert.True(t, IsLocalhost("127.0.0.1:9000"))
	assert.True(t, IsLocalhost("::1"))
	assert.False(t, IsLocalhost("example.com"))
	assert.False(t, IsLocalhost("10.0.0.1"))
}

func TestValidateEndpointURL(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateEndpointURL("https://example.com/mcp"))
	assert.NoError(t, ValidateEndpointURL("http://localhost:8080/mcp"))
	assert.NoError(t, ValidateEndpointURL("http://127.0.0.1/mcp"))
	assert.Error(t, ValidateEndpointURL("http://example.com/mcp"))
	assert.Error(t, ValidateEndpointURL("ftp://example.com"))
	assert.Error(t, ValidateEndpointURL("not a url"))
}

func TestFetchJSON(t *testing.T) {
	t.Parallel()

	type payload struct {
		Name string `json:"name"`
	}

	t.Run("parses JSON response", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, ContentTypeJSON, r.Header.Get("Accept"))
			w.Header().Set("Content-Type", ContentTypeJSON)
			_, _ = w.Write([]byte(`{"name":"github"}`))
		}))
		defer srv.Close()

		got, err := FetchJSON[payload](context.Background(), srv.Client(), srv.URL)
		require.NoError(t, err)
		assert.Equal(t, "github", got.Name)
	})

	t.Run("non-2xx returns HTTPError", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "nope", http.StatusNotFound)
		}))
		defer srv.Close()

		_, err := FetchJSON[payload](context.Background(), srv.Client(), srv.URL)
		require.Error(t, err)
		assert.True(t, IsHTTPError(err, http.StatusNotFound))
		assert.False(t, IsHTTPError(err, http.StatusBadRequest))
	})

	t.Run("rejects non-JSON content type", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`{"name":"x"}`))
		}))
		defer srv.Close()

		_, err := FetchJSON[payload](context.Background(), srv.Client(), srv.URL)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected content type")
	})

	t.Run("accepts 201 with JSON body", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, ContentTypeJSON, r.Header.Get("Content-Type"))
			w.Header().Set("Content-Type", ContentTypeJSON)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"name":"created"}`))
		}))
		defer srv.Close()

		got, err := FetchJSON[payload](context.Background(), srv.Client(), srv.URL,
			WithJSONBody(map[string]string{"k": "v"}))
		require.NoError(t, err)
		assert.Equal(t, "created", got.Name)
	})
}

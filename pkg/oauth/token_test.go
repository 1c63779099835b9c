package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kodustech/mcp-manager/pkg/errors"
)

func TestTokenSetIsExpiring(t *testing.T) {
	t.Parallel()

	receivedAt := time.UnixMilli(1_700_000_000_000)
	tokens := &TokenSet{
		AccessToken: "at",
		ExpiresIn:   3600,
		ReceivedAt:  receivedAt.UnixMilli(),
	}

	boundary := receivedAt.Add(time.Hour - ExpiryBuffer)

	assert.False(t, tokens.IsExpiring(boundary.Add(-time.Millisecond)))
	assert.True(t, tokens.IsExpiring(boundary))
	assert.True(t, tokens.IsExpiring(boundary.Add(time.Minute)))
}

func TestTokenSetWithoutLifetimeNeverExpires(t *testing.T) {
	t.Parallel()

	tokens := &TokenSet{AccessToken: "at"}
	assert.False(t, tokens.IsExpiring(time.Now().Add(24*time.Hour)))
}

func TestExchangeCode(t *testing.T) {
	t.Parallel()

	t.Run("parses JSON response", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
			assert.Equal(t, "auth-code", r.PostForm.Get("code"))
			assert.Equal(t, "verifier", r.PostForm.Get("code_verifier"))
			assert.Equal(t, "client-1", r.PostForm.Get("client_id"))
			assert.Equal(t, "https://example.com/mcp", r.PostForm.Get("resource"))

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"at","refresh_token":"rt","token_type":"Bearer","expires_in":3600}`))
		}))
		defer srv.Close()

		client := NewClient(WithHTTPClient(srv.Client()))
		tokens, err := client.ExchangeCode(context.Background(), srv.URL, ExchangeRequest{
			ClientID:     "client-1",
			Code:         "auth-code",
			CodeVerifier: "verifier",
			RedirectURI:  "https://app.example.com/callback",
			Resource:     "https://example.com/mcp",
		})
		require.NoError(t, err)

		assert.Equal(t, "at", tokens.AccessToken)
		assert.Equal(t, "rt", tokens.RefreshToken)
		assert.Equal(t, int64(3600), tokens.ExpiresIn)
		assert.InDelta(t, time.Now().UnixMilli(), tokens.ReceivedAt, float64(5*time.Second/time.Millisecond))
	})

	t.Run("falls back to form-encoded response", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("access_token=at&token_type=bearer&expires_in=7200"))
		}))
		defer srv.Close()

		client := NewClient(WithHTTPClient(srv.Client()))
		tokens, err := client.ExchangeCode(context.Background(), srv.URL, ExchangeRequest{ClientID: "client-1", Code: "c"})
		require.NoError(t, err)

		assert.Equal(t, "at", tokens.AccessToken)
		assert.Equal(t, int64(7200), tokens.ExpiresIn)
	})

	t.Run("missing access_token is a token error", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"token_type":"Bearer"}`))
		}))
		defer srv.Close()

		client := NewClient(WithHTTPClient(srv.Client()))
		_, err := client.ExchangeCode(context.Background(), srv.URL, ExchangeRequest{ClientID: "client-1", Code: "c"})
		require.Error(t, err)
		assert.True(t, errors.IsToken(err))
	})

	t.Run("error status is a token error", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
		}))
		defer srv.Close()

		client := NewClient(WithHTTPClient(srv.Client()))
		_, err := client.ExchangeCode(context.Background(), srv.URL, ExchangeRequest{ClientID: "client-1", Code: "c"})
		require.Error(t, err)
		assert.True(t, errors.IsToken(err))
	})
}

func TestRefreshToken(t *testing.T) {
	t.Parallel()

	t.Run("carries forward refresh token when omitted", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
			assert.Equal(t, "old-rt", r.PostForm.Get("refresh_token"))

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"new-at","expires_in":3600}`))
		}))
		defer srv.Close()

		client := NewClient(WithHTTPClient(srv.Client()))
		tokens, err := client.RefreshToken(context.Background(), srv.URL, RefreshRequest{
			ClientID:     "client-1",
			RefreshToken: "old-rt",
		})
		require.NoError(t, err)

		assert.Equal(t, "new-at", tokens.AccessToken)
		assert.Equal(t, "old-rt", tokens.RefreshToken)
	})

	t.Run("no refresh token is a token error", func(t *testing.T) {
		t.Parallel()
		client := NewClient()
		_, err := client.RefreshToken(context.Background(), "https://as.example.com/token", RefreshRequest{ClientID: "client-1"})
		require.Error(t, err)
		assert.True(t, errors.IsToken(err))
	})
}

func TestCheckAndRefresh(t *testing.T) {
	t.Parallel()

	t.Run("token outside buffer is returned unchanged", func(t *testing.T) {
		t.Parallel()
		var calls int
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls++
			http.Error(w, "unexpected", http.StatusInternalServerError)
		}))
		defer srv.Close()

		tokens := &TokenSet{
			AccessToken: "at",
			ExpiresIn:   3600,
			ReceivedAt:  time.Now().UnixMilli(),
		}

		client := NewClient(WithHTTPClient(srv.Client()))
		got := client.CheckAndRefresh(context.Background(), srv.URL, RefreshCheck{Tokens: tokens, ClientID: "client-1"})
		assert.Same(t, tokens, got)
		assert.Zero(t, calls)
	})

	t.Run("expiring token is refreshed", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"new-at","refresh_token":"new-rt","expires_in":3600}`))
		}))
		defer srv.Close()

		tokens := &TokenSet{
			AccessToken:  "old-at",
			RefreshToken: "old-rt",
			ExpiresIn:    3600,
			ReceivedAt:   time.Now().Add(-time.Hour).UnixMilli(),
		}

		client := NewClient(WithHTTPClient(srv.Client()))
		got := client.CheckAndRefresh(context.Background(), srv.URL, RefreshCheck{Tokens: tokens, ClientID: "client-1"})
		require.NotNil(t, got)
		assert.Equal(t, "new-at", got.AccessToken)
		assert.Equal(t, "new-rt", got.RefreshToken)
	})

	t.Run("failed refresh returns nil, not an error", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		tokens := &TokenSet{
			AccessToken:  "old-at",
			RefreshToken: "old-rt",
			ExpiresIn:    3600,
			ReceivedAt:   time.Now().Add(-time.Hour).UnixMilli(),
		}

		client := NewClient(WithHTTPClient(srv.Client()))
		got := client.CheckAndRefresh(context.Background(), srv.URL, RefreshCheck{Tokens: tokens, ClientID: "client-1"})
		assert.Nil(t, got)
	})
}

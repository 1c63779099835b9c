// Package api contains the REST API for mcp-manager.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	v1 "github.com/kodustech/mcp-manager/pkg/api/v1"
	"github.com/kodustech/mcp-manager/pkg/auth"
	"github.com/kodustech/mcp-manager/pkg/connections"
	"github.com/kodustech/mcp-manager/pkg/integrations"
	"github.com/kodustech/mcp-manager/pkg/logger"
	"github.com/kodustech/mcp-manager/pkg/providers"
)

const (
	middlewareTimeout = 60 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// Deps are the services the API serves.
type Deps struct {
	Integrations *integrations.Service
	Connections  *connections.Service
	Registry     *providers.Registry
}

func headersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}

// Router assembles the full API router.
func Router(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.Timeout(middlewareTimeout),
		headersMiddleware,
	)

	r.Mount("/health", v1.HealthcheckRouter())

	// The OAuth callback is reached by browser redirect from the
	// authorization server and carries no bearer token.
	r.Mount("/api/v1/oauth", v1.OAuthRouter(deps.Integrations))

	r.Group(func(r chi.Router) {
		r.Use(auth.OrganizationMiddleware)
		r.Mount("/api/v1/integrations", v1.IntegrationsRouter(deps.Integrations))
		r.Mount("/api/v1/connections", v1.ConnectionsRouter(deps.Connections))
		r.Mount("/api/v1/providers", v1.ProvidersRouter(deps.Registry))
	})

	return r
}

// Serve starts the server on the given address and blocks until the
// context is cancelled. The caller is expected to set up signal
// handling.
func Serve(ctx context.Context, address string, deps Deps) error {
	srv := &http.Server{
		BaseContext:       func(net.Listener) context.Context { return ctx },
		Addr:              address,
		Handler:           Router(deps),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}

	logger.Infof("starting HTTP server on %s", address)

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Panicf("server stopped with error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Infof("HTTP server stopped")
	return nil
}

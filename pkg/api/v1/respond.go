// Package v1 contains the v1 API handlers.
package v1

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/kodustech/mcp-manager/pkg/errors"
	"github.com/kodustech/mcp-manager/pkg/logger"
	"github.com/kodustech/mcp-manager/pkg/storage"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Errorf("Failed to encode response: %v", err)
	}
}

// writeError maps the error taxonomy onto HTTP statuses. Error
// messages from validation and not-found conditions are safe to expose;
// everything else gets a generic body.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.IsNotFound(err) || stderrors.Is(err, storage.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case stderrors.Is(err, storage.ErrAlreadyExists):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.IsDiscovery(err) || errors.IsToken(err) || errors.IsProvider(err):
		logger.Errorf("Upstream failure: %v", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		logger.Errorf("Internal error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

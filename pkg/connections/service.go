// Package connections implements the cross-provider connection
// service: fan-out listing over every enabled provider and the
// connection lifecycle persisted against the connection store.
package connections

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kodustech/mcp-manager/pkg/errors"
	"github.com/kodustech/mcp-manager/pkg/logger"
	"github.com/kodustech/mcp-manager/pkg/providers"
	"github.com/kodustech/mcp-manager/pkg/storage"
)

// Service joins provider listings with stored connection rows and
// drives the connection lifecycle.
type Service struct {
	store    storage.ConnectionStore
	registry *providers.Registry
}

// NewService creates a connection service.
func NewService(store storage.ConnectionStore, registry *providers.Registry) *Service {
	return &Service{store: store, registry: registry}
}

// GetIntegrations fans out to every enabled provider concurrently and
// flattens the results in provider order. Any provider failure fails
// the whole aggregate. The flattened list is then left-joined in memory
// against stored connection rows to annotate connection state.
func (s *Service) GetIntegrations(ctx context.Context, organizationID string, query providers.ListQuery) ([]providers.IntegrationItem, error) {
	query.OrganizationID = organizationID

	enabled := s.registry.All()
	results := make([][]providers.IntegrationItem, len(enabled))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, provider := range enabled {
		group.Go(func() error {
			items, err := provider.GetIntegrations(groupCtx, query)
			if err != nil {
				return fmt.Errorf("provider %s: %w", provider.Name(), err)
			}
			results[i] = items
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	var flattened []providers.IntegrationItem
	for _, items := range results {
		flattened = append(flattened, items...)
	}

	stored, err := s.store.List(ctx, storage.ConnectionFilter{OrganizationID: organizationID})
	if err != nil {
		return nil, err
	}
	byIntegration := make(map[string]storage.ConnectionRecord, len(stored))
	for _, record := range stored {
		byIntegration[record.IntegrationID] = record
	}

	for i := range flattened {
		if record, ok := byIntegration[flattened[i].ID]; ok {
			flattened[i].IsConnected = true
			flattened[i].ConnectionStatus = record.Status
		}
	}
	return flattened, nil
}

// InitiateRequest carries the inputs for InitiateConnection.
type InitiateRequest struct {
	IntegrationID string
	AllowedTools  []string
	Params        map[string]string
}

// InitiateConnection resolves the provider, runs its connection flow,
// and persists the outcome. An existing live row for the pair is
// updated in place rather than duplicated.
func (s *Service) InitiateConnection(ctx context.Context, organizationID, providerName string, req InitiateRequest) (*storage.ConnectionRecord, error) {
	provider, err := s.registry.Get(providerName)
	if err != nil {
		return nil, err
	}

	result, err := provider.InitiateConnection(ctx, providers.ConnectionConfig{
		OrganizationID: organizationID,
		IntegrationID:  req.IntegrationID,
		AllowedTools:   req.AllowedTools,
		Params:         req.Params,
	})
	if err != nil {
		return nil, err
	}

	metadata := map[string]any{"connection": resultMetadata(result)}

	record, err := s.store.GetByIntegration(ctx, organizationID, result.IntegrationID)
	switch {
	case err == nil:
		record.Provider = providerName
		record.Status = result.Status
		record.AppName = result.AppName
		record.MCPURL = result.MCPURL
		record.AllowedTools = req.AllowedTools
		record.Metadata = metadata
		if err := s.store.Update(ctx, record); err != nil {
			return nil, err
		}
	case stderrors.Is(err, storage.ErrNotFound):
		record = storage.ConnectionRecord{
			ID:             uuid.NewString(),
			OrganizationID: organizationID,
			IntegrationID:  result.IntegrationID,
			Provider:       providerName,
			Status:         result.Status,
			AppName:        result.AppName,
			MCPURL:         result.MCPURL,
			AllowedTools:   req.AllowedTools,
			Metadata:       metadata,
		}
		if err := s.store.Create(ctx, record); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	logger.Infow("Connection initiated",
		"organizationID", organizationID, "provider", providerName,
		"integrationID", result.IntegrationID, "status", result.Status)
	return &record, nil
}

// UpdateRequest carries the inputs for UpdateConnection.
type UpdateRequest struct {
	IntegrationID string
	Status        string
	Metadata      map[string]any
}

// UpdateConnection looks up the live connection for the pair,
// translates the caller-supplied status through the owning provider's
// status map, merges the metadata, and persists. The merge is shallow
// at the top level with a nested overwrite of the connection status.
func (s *Service) UpdateConnection(ctx context.Context, organizationID string, req UpdateRequest) (*storage.ConnectionRecord, error) {
	record, err := s.store.GetByIntegration(ctx, organizationID, req.IntegrationID)
	if err != nil {
		return nil, err
	}

	provider, err := s.registry.Get(record.Provider)
	if err != nil {
		return nil, err
	}

	status, ok := providers.TranslateStatus(provider.StatusMap(), req.Status)
	if !ok {
		return nil, errors.NewValidationError(
			fmt.Sprintf("status %q is not valid for provider %s", req.Status, record.Provider), nil)
	}

	record.Status = status
	record.Metadata = mergeMetadata(record.Metadata, req.Metadata, status)

	if err := s.store.Update(ctx, record); err != nil {
		return nil, err
	}
	return &record, nil
}

// GetConnections lists the organization's stored connections.
func (s *Service) GetConnections(ctx context.Context, organizationID, providerName string) ([]storage.ConnectionRecord, error) {
	return s.store.List(ctx, storage.ConnectionFilter{
		OrganizationID: organizationID,
		Provider:       providerName,
	})
}

// DeleteConnection soft-deletes the live connection for the pair.
func (s *Service) DeleteConnection(ctx context.Context, organizationID, integrationID string) error {
	record, err := s.store.GetByIntegration(ctx, organizationID, integrationID)
	if err != nil {
		return err
	}
	return s.store.SoftDelete(ctx, record.ID)
}

// resultMetadata captures the full provider response for storage.
func resultMetadata(result *providers.ConnectionResult) map[string]any {
	out := map[string]any{
		"integrationId": result.IntegrationID,
		"status":        result.Status,
	}
	if result.AppName != "" {
		out["appName"] = result.AppName
	}
	if result.MCPURL != "" {
		out["mcpUrl"] = result.MCPURL
	}
	if len(result.Metadata) > 0 {
		out["metadata"] = result.Metadata
	}
	return out
}

// mergeMetadata overlays updates onto existing metadata at the top
// level, then forces metadata.connection.status to the new status.
func mergeMetadata(existing, updates map[string]any, status string) map[string]any {
	merged := make(map[string]any, len(existing)+len(updates))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range updates {
		merged[k] = v
	}

	connection, ok := merged["connection"].(map[string]any)
	if !ok {
		connection = map[string]any{}
	}
	connection["status"] = status
	merged["connection"] = connection
	return merged
}

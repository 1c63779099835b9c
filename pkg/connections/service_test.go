package connections

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kodustech/mcp-manager/pkg/errors"
	"github.com/kodustech/mcp-manager/pkg/providers"
	"github.com/kodustech/mcp-manager/pkg/storage"
	"github.com/kodustech/mcp-manager/pkg/storage/sqlite"
)

// stubProvider implements providers.Provider with overridable funcs.
type stubProvider struct {
	name         string
	statusMap    map[string]string
	integrations func(ctx context.Context, query providers.ListQuery) ([]providers.IntegrationItem, error)
	initiate     func(ctx context.Context, cfg providers.ConnectionConfig) (*providers.ConnectionResult, error)
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) StatusMap() map[string]string {
	if s.statusMap != nil {
		return s.statusMap
	}
	return map[string]string{}
}

func (s *stubProvider) GetIntegrations(ctx context.Context, query providers.ListQuery) ([]providers.IntegrationItem, error) {
	if s.integrations != nil {
		return s.integrations(ctx, query)
	}
	return nil, nil
}

func (s *stubProvider) GetIntegration(_ context.Context, id string) (*providers.IntegrationItem, error) {
	return &providers.IntegrationItem{ID: id, Provider: s.name}, nil
}

func (s *stubProvider) GetIntegrationRequiredParams(_ context.Context, _ string) ([]providers.RequiredParam, error) {
	return nil, nil
}

func (s *stubProvider) GetIntegrationTools(_ context.Context, _, _ string) ([]providers.Tool, error) {
	return nil, nil
}

func (s *stubProvider) InitiateConnection(ctx context.Context, cfg providers.ConnectionConfig) (*providers.ConnectionResult, error) {
	if s.initiate != nil {
		return s.initiate(ctx, cfg)
	}
	return &providers.ConnectionResult{IntegrationID: cfg.IntegrationID, Status: providers.StatusActive}, nil
}

func (s *stubProvider) GetConnections(_ context.Context, _ providers.ListQuery) (*providers.ConnectionsPage, error) {
	return &providers.ConnectionsPage{}, nil
}

func newTestService(t *testing.T, stubs ...providers.Provider) (*Service, storage.ConnectionStore) {
	t.Helper()

	db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	registry, err := providers.NewRegistry(stubs...)
	require.NoError(t, err)

	store := sqlite.NewConnectionStore(db)
	return NewService(store, registry), store
}

func listItems(items ...providers.IntegrationItem) func(context.Context, providers.ListQuery) ([]providers.IntegrationItem, error) {
	return func(_ context.Context, _ providers.ListQuery) ([]providers.IntegrationItem, error) {
		return items, nil
	}
}

func TestGetIntegrationsFanOut(t *testing.T) {
	t.Parallel()

	first := &stubProvider{
		name:         "first",
		integrations: listItems(providers.IntegrationItem{ID: "int-a", Provider: "first"}),
	}
	second := &stubProvider{
		name: "second",
		integrations: listItems(
			providers.IntegrationItem{ID: "int-b", Provider: "second"},
			providers.IntegrationItem{ID: "int-c", Provider: "second"},
		),
	}

	service, store := newTestService(t, first, second)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, storage.ConnectionRecord{
		ID:             "conn-1",
		OrganizationID: "org-1",
		IntegrationID:  "int-b",
		Provider:       "second",
		Status:         providers.StatusActive,
	}))

	items, err := service.GetIntegrations(ctx, "org-1", providers.ListQuery{})
	require.NoError(t, err)
	require.Len(t, items, 3)

	// Provider order is preserved across the flatten.
	assert.Equal(t, "int-a", items[0].ID)
	assert.Equal(t, "int-b", items[1].ID)
	assert.Equal(t, "int-c", items[2].ID)

	assert.False(t, items[0].IsConnected)
	assert.Empty(t, items[0].ConnectionStatus)

	assert.True(t, items[1].IsConnected)
	assert.Equal(t, providers.StatusActive, items[1].ConnectionStatus)

	assert.False(t, items[2].IsConnected)
}

func TestGetIntegrationsFailsWhenAnyProviderFails(t *testing.T) {
	t.Parallel()

	healthy := &stubProvider{
		name:         "healthy",
		integrations: listItems(providers.IntegrationItem{ID: "int-a", Provider: "healthy"}),
	}
	broken := &stubProvider{
		name: "broken",
		integrations: func(_ context.Context, _ providers.ListQuery) ([]providers.IntegrationItem, error) {
			return nil, errors.NewProviderError("backend unavailable", nil)
		},
	}

	service, _ := newTestService(t, healthy, broken)

	_, err := service.GetIntegrations(context.Background(), "org-1", providers.ListQuery{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestInitiateConnection(t *testing.T) {
	t.Parallel()

	stub := &stubProvider{
		name: "broker",
		initiate: func(_ context.Context, cfg providers.ConnectionConfig) (*providers.ConnectionResult, error) {
			return &providers.ConnectionResult{
				IntegrationID: cfg.IntegrationID,
				Status:        providers.StatusPending,
				AppName:       "GitHub",
				MCPURL:        "https://mcp.example.com/srv-1",
				Metadata:      map[string]any{"accountId": "acc-1"},
			}, nil
		},
	}

	service, store := newTestService(t, stub)
	ctx := context.Background()

	record, err := service.InitiateConnection(ctx, "org-1", "broker", InitiateRequest{
		IntegrationID: "int-a",
		AllowedTools:  []string{"tool_b", "tool_a"},
	})
	require.NoError(t, err)
	assert.Equal(t, providers.StatusPending, record.Status)
	assert.Equal(t, "GitHub", record.AppName)
	assert.Equal(t, []string{"tool_b", "tool_a"}, record.AllowedTools)

	connection, ok := record.Metadata["connection"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, providers.StatusPending, connection["status"])
	assert.Equal(t, map[string]any{"accountId": "acc-1"}, connection["metadata"])

	// A second initiate for the same pair updates the existing row.
	stub.initiate = func(_ context.Context, cfg providers.ConnectionConfig) (*providers.ConnectionResult, error) {
		return &providers.ConnectionResult{IntegrationID: cfg.IntegrationID, Status: providers.StatusActive}, nil
	}
	updated, err := service.InitiateConnection(ctx, "org-1", "broker", InitiateRequest{IntegrationID: "int-a"})
	require.NoError(t, err)
	assert.Equal(t, record.ID, updated.ID)
	assert.Equal(t, providers.StatusActive, updated.Status)

	all, err := store.List(ctx, storage.ConnectionFilter{OrganizationID: "org-1"})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestInitiateConnectionUnknownProvider(t *testing.T) {
	t.Parallel()

	service, _ := newTestService(t, &stubProvider{name: "broker"})

	_, err := service.InitiateConnection(context.Background(), "org-1", "nope", InitiateRequest{IntegrationID: "int-a"})
	assert.True(t, errors.IsNotFound(err))
}

func TestUpdateConnection(t *testing.T) {
	t.Parallel()

	stub := &stubProvider{
		name:      "broker",
		statusMap: map[string]string{"CONNECTED": providers.StatusActive},
	}
	service, store := newTestService(t, stub)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, storage.ConnectionRecord{
		ID:             "conn-1",
		OrganizationID: "org-1",
		IntegrationID:  "int-a",
		Provider:       "broker",
		Status:         providers.StatusPending,
		Metadata: map[string]any{
			"connection": map[string]any{"status": providers.StatusPending, "appName": "GitHub"},
			"accountId":  "acc-1",
		},
	}))

	t.Run("translates native status and merges metadata", func(t *testing.T) {
		record, err := service.UpdateConnection(ctx, "org-1", UpdateRequest{
			IntegrationID: "int-a",
			Status:        "CONNECTED",
			Metadata:      map[string]any{"note": "ready"},
		})
		require.NoError(t, err)
		assert.Equal(t, providers.StatusActive, record.Status)

		assert.Equal(t, "acc-1", record.Metadata["accountId"])
		assert.Equal(t, "ready", record.Metadata["note"])

		connection, ok := record.Metadata["connection"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, providers.StatusActive, connection["status"])
		assert.Equal(t, "GitHub", connection["appName"])
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		_, err := service.UpdateConnection(ctx, "org-1", UpdateRequest{
			IntegrationID: "int-a",
			Status:        "SOMETHING_ELSE",
		})
		assert.True(t, errors.IsValidation(err))
	})

	t.Run("missing connection is not found", func(t *testing.T) {
		_, err := service.UpdateConnection(ctx, "org-1", UpdateRequest{
			IntegrationID: "int-missing",
			Status:        providers.StatusActive,
		})
		require.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestDeleteConnection(t *testing.T) {
	t.Parallel()

	service, store := newTestService(t, &stubProvider{name: "broker"})
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, storage.ConnectionRecord{
		ID:             "conn-1",
		OrganizationID: "org-1",
		IntegrationID:  "int-a",
		Provider:       "broker",
		Status:         providers.StatusActive,
	}))

	require.NoError(t, service.DeleteConnection(ctx, "org-1", "int-a"))

	_, err := store.GetByIntegration(ctx, "org-1", "int-a")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

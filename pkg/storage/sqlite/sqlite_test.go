package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kodustech/mcp-manager/pkg/storage"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestIntegrationStoreCRUD(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewIntegrationStore(openTestDB(t))

	record := storage.IntegrationRecord{
		ID:               uuid.NewString(),
		OrganizationID:   "org-1",
		Active:           true,
		Protocol:         "http",
		BaseURL:          "https://example.com/mcp",
		Name:             "github",
		AuthType:         "api_key",
		EncryptedAuth:    "aabb:Y2lwaGVy",
		EncryptedHeaders: "ccdd:aGVhZGVycw",
	}
	require.NoError(t, store.Create(ctx, record))

	got, err := store.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.Name, got.Name)
	assert.Equal(t, record.EncryptedAuth, got.EncryptedAuth)
	assert.False(t, got.CreatedAt.IsZero())
	assert.Nil(t, got.DeletedAt)

	got.Name = "github-renamed"
	require.NoError(t, store.Update(ctx, got))

	updated, err := store.Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, "github-renamed", updated.Name)

	require.NoError(t, store.SoftDelete(ctx, record.ID))
	_, err = store.Get(ctx, record.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// Soft-deleted rows are invisible to updates too.
	assert.ErrorIs(t, store.Update(ctx, got), storage.ErrNotFound)
}

func TestIntegrationStoreDuplicateID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewIntegrationStore(openTestDB(t))

	record := storage.IntegrationRecord{ID: uuid.NewString(), OrganizationID: "org-1", AuthType: "none"}
	require.NoError(t, store.Create(ctx, record))
	assert.ErrorIs(t, store.Create(ctx, record), storage.ErrAlreadyExists)
}

func TestIntegrationStoreListFilter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewIntegrationStore(openTestDB(t))

	active := true
	inactive := false
	seed := []storage.IntegrationRecord{
		{ID: uuid.NewString(), OrganizationID: "org-1", Active: true, Name: "github", AuthType: "oauth2"},
		{ID: uuid.NewString(), OrganizationID: "org-1", Active: false, Name: "jira", AuthType: "api_key"},
		{ID: uuid.NewString(), OrganizationID: "org-2", Active: true, Name: "github", AuthType: "oauth2"},
	}
	for _, record := range seed {
		require.NoError(t, store.Create(ctx, record))
	}

	byOrg, err := store.List(ctx, storage.IntegrationFilter{OrganizationID: "org-1"})
	require.NoError(t, err)
	assert.Len(t, byOrg, 2)

	byActive, err := store.List(ctx, storage.IntegrationFilter{OrganizationID: "org-1", Active: &active})
	require.NoError(t, err)
	require.Len(t, byActive, 1)
	assert.Equal(t, "github", byActive[0].Name)

	byName, err := store.List(ctx, storage.IntegrationFilter{Name: "github", AuthType: "oauth2"})
	require.NoError(t, err)
	assert.Len(t, byName, 2)

	none, err := store.List(ctx, storage.IntegrationFilter{OrganizationID: "org-2", Active: &inactive})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestOAuthStateStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewOAuthStateStore(openTestDB(t))

	// Absence is not an error.
	got, err := store.Get(ctx, "org-1", "int-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	record := storage.OAuthStateRecord{
		ID:             uuid.NewString(),
		OrganizationID: "org-1",
		IntegrationID:  "int-1",
		Status:         "pending",
		EncryptedAuth:  "aabb:c3RhdGU",
	}
	require.NoError(t, store.Upsert(ctx, record))

	got, err = store.Get(ctx, "org-1", "int-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "pending", got.Status)

	// Second upsert for the same pair replaces in place.
	record.ID = uuid.NewString()
	record.Status = "active"
	record.EncryptedAuth = "ccdd:dG9rZW5z"
	require.NoError(t, store.Upsert(ctx, record))

	got, err = store.Get(ctx, "org-1", "int-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "active", got.Status)
	assert.Equal(t, "ccdd:dG9rZW5z", got.EncryptedAuth)

	require.NoError(t, store.Delete(ctx, "org-1", "int-1"))
	got, err = store.Get(ctx, "org-1", "int-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting absent state is fine.
	assert.NoError(t, store.Delete(ctx, "org-1", "int-1"))
}

func TestConnectionStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewConnectionStore(openTestDB(t))

	record := storage.ConnectionRecord{
		ID:             uuid.NewString(),
		OrganizationID: "org-1",
		IntegrationID:  "int-1",
		Provider:       "composio",
		Status:         "ACTIVE",
		AppName:        "github",
		MCPURL:         "https://mcp.composio.dev/s1/a1",
		AllowedTools:   []string{"create_issue", "list_repos"},
		Metadata:       map[string]any{"connection": map[string]any{"status": "ACTIVE"}},
	}
	require.NoError(t, store.Create(ctx, record))

	got, err := store.GetByIntegration(ctx, "org-1", "int-1")
	require.NoError(t, err)
	assert.Equal(t, record.ID, got.ID)
	// Selection order survives the round trip.
	assert.Equal(t, []string{"create_issue", "list_repos"}, got.AllowedTools)
	assert.Equal(t, "ACTIVE", got.Metadata["connection"].(map[string]any)["status"])

	_, err = store.GetByIntegration(ctx, "org-1", "int-2")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	got.Status = "EXPIRED"
	got.Metadata["extra"] = "value"
	require.NoError(t, store.Update(ctx, got))

	updated, err := store.GetByIntegration(ctx, "org-1", "int-1")
	require.NoError(t, err)
	assert.Equal(t, "EXPIRED", updated.Status)
	assert.Equal(t, "value", updated.Metadata["extra"])

	listed, err := store.List(ctx, storage.ConnectionFilter{OrganizationID: "org-1"})
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	byProvider, err := store.List(ctx, storage.ConnectionFilter{Provider: "smithery"})
	require.NoError(t, err)
	assert.Empty(t, byProvider)

	require.NoError(t, store.SoftDelete(ctx, record.ID))
	_, err = store.GetByIntegration(ctx, "org-1", "int-1")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

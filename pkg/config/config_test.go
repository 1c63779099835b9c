package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestLoadDefaults(t *testing.T) {
	resetViper(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.Equal(t, "mcp-manager.db", cfg.DatabasePath)
	assert.Equal(t, []string{ProviderKodusMCP, ProviderCustom}, cfg.Providers)
	assert.Empty(t, cfg.EncryptionSecret)
}

func TestLoadFromEnvironment(t *testing.T) {
	resetViper(t)
	t.Setenv("MCPMAN_ENCRYPTION_SECRET", "super-secret")
	t.Setenv("MCPMAN_OAUTH_REDIRECT_URI", "https://app.example.com/callback")
	t.Setenv("MCPMAN_COMPOSIO_API_KEY", "ck-123")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "super-secret", cfg.EncryptionSecret)
	assert.Equal(t, "https://app.example.com/callback", cfg.OAuthRedirectURI)
	assert.Equal(t, "ck-123", cfg.Composio.APIKey)
}

func TestLoadFromFile(t *testing.T) {
	resetViper(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server_address: ":9090"
providers:
  - kodusmcp
  - composio
composio:
  api_key: file-key
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ServerAddress)
	assert.Equal(t, []string{"kodusmcp", "composio"}, cfg.Providers)
	assert.Equal(t, "file-key", cfg.Composio.APIKey)
}

func TestLoadMissingFileFails(t *testing.T) {
	resetViper(t)

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

// Package config loads process configuration from environment variables,
// an optional config file, and CLI flags, in ascending precedence.
// All environment variables use the MCPMAN_ prefix.
package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/kodustech/mcp-manager/pkg/errors"
)

// Provider names accepted in the providers list.
const (
	ProviderComposio = "composio"
	ProviderSmithery = "smithery"
	ProviderCustom   = "custom"
	ProviderKodusMCP = "kodusmcp"
)

// ComposioConfig holds credentials for the Composio broker API.
type ComposioConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// SmitheryConfig holds settings for the Smithery template catalog.
type SmitheryConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// Config is the full process configuration.
type Config struct {
	// ServerAddress is the listen address of the REST API.
	ServerAddress string `mapstructure:"server_address"`

	// DatabasePath is the sqlite database file path.
	DatabasePath string `mapstructure:"database_path"`

	// EncryptionSecret is the master secret credential payloads are
	// encrypted with. Must be set before any integration is stored.
	EncryptionSecret string `mapstructure:"encryption_secret"`

	// OAuthRedirectURI is the registered callback URL for OAuth flows.
	OAuthRedirectURI string `mapstructure:"oauth_redirect_uri"`

	// Providers lists the enabled provider adapters by name.
	Providers []string `mapstructure:"providers"`

	// Debug enables debug-level logging.
	Debug bool `mapstructure:"debug"`

	Composio ComposioConfig `mapstructure:"composio"`
	Smithery SmitheryConfig `mapstructure:"smithery"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server_address", ":8080")
	v.SetDefault("database_path", "mcp-manager.db")
	v.SetDefault("providers", []string{ProviderKodusMCP, ProviderCustom})
	v.SetDefault("composio.base_url", "https://backend.composio.dev/api/v3")
}

// Load reads configuration from the process environment and, when
// configFile is non-empty, from that file. Values already set on the
// global viper (CLI flags) take precedence over both.
func Load(configFile string) (*Config, error) {
	v := viper.GetViper()

	setDefaults(v)
	v.SetEnvPrefix("MCPMAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv alone does not surface env-only keys to Unmarshal.
	for _, key := range []string{
		"server_address", "database_path", "encryption_secret",
		"oauth_redirect_uri", "providers", "debug",
		"composio.api_key", "composio.base_url", "smithery.base_url",
	} {
		_ = v.BindEnv(key)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.NewConfigError("failed to read config file", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.NewConfigError("failed to parse configuration", err)
	}

	return &cfg, nil
}

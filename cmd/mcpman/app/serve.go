package app

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kodustech/mcp-manager/pkg/api"
	"github.com/kodustech/mcp-manager/pkg/config"
	"github.com/kodustech/mcp-manager/pkg/connections"
	"github.com/kodustech/mcp-manager/pkg/crypto"
	"github.com/kodustech/mcp-manager/pkg/integrations"
	"github.com/kodustech/mcp-manager/pkg/logger"
	"github.com/kodustech/mcp-manager/pkg/oauth"
	"github.com/kodustech/mcp-manager/pkg/providers"
	"github.com/kodustech/mcp-manager/pkg/storage/sqlite"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mcp-manager API server",
	Long: `Start the API server. Configuration is read from the optional config
file, overridden by MCPMAN_* environment variables.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("config", "", "Path to the configuration file")
	// The flag default must match the config default: an unchanged
	// pflag default takes precedence over viper's SetDefault.
	serveCmd.Flags().String("address", ":8080", "Address to listen on")

	if err := viper.BindPFlag("server_address", serveCmd.Flags().Lookup("address")); err != nil {
		logger.Fatalf("Failed to bind address flag: %v", err)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	logger.Initialize()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cipher, err := crypto.NewCipher(cfg.EncryptionSecret)
	if err != nil {
		return err
	}

	db, err := sqlite.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warnf("Failed to close database: %v", err)
		}
	}()

	integrationService := integrations.NewService(
		sqlite.NewIntegrationStore(db),
		sqlite.NewOAuthStateStore(db),
		cipher,
		oauth.NewClient(),
		cfg.OAuthRedirectURI,
	)

	registry, err := providers.NewRegistryFromConfig(cfg, integrationService)
	if err != nil {
		return err
	}

	connectionService := connections.NewService(sqlite.NewConnectionStore(db), registry)

	logger.Infof("Enabled providers: %v", cfg.Providers)

	return api.Serve(ctx, cfg.ServerAddress, api.Deps{
		Integrations: integrationService,
		Connections:  connectionService,
		Registry:     registry,
	})
}

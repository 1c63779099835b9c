// Package app provides the entry point for the mcpman command-line
// application.
package app

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kodustech/mcp-manager/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:               "mcpman",
	DisableAutoGenTag: true,
	Short:             "mcpman manages MCP tool-provider integrations",
	Long: `mcpman is the integration management backend for MCP (Model Context
Protocol) tool providers. It manages integration credentials encrypted at
rest, drives the OAuth2 authorization and token lifecycle, and exposes a
uniform connection API over hosted brokers, template catalogs, and custom
MCP endpoints.`,
	Run: func(cmd *cobra.Command, _ []string) {
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
}

// NewRootCmd creates a new root command for the mcpman CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Fatalf("Failed to bind debug flag: %v", err)
	}

	rootCmd.AddCommand(serveCmd)

	return rootCmd
}

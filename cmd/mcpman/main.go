// Package main is the entry point for the mcp-manager server.
package main

import (
	"os"

	"github.com/kodustech/mcp-manager/cmd/mcpman/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

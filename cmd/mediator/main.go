// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configDir string

var rootCmd = &cobra.Command{
	Use:   "mediator",
	Short: "DIDComm v2 mediator - store-and-forward message relay",
	Long: `mediator runs a DIDComm v2 mediator: a store-and-forward relay that
accepts encrypted messages on behalf of DIDs that cannot stay online,
holding them until the recipient fetches or subscribes to live
delivery.

This tool supports:
  - serve: run the mediator's REST, streaming, and health surfaces
  - migrate: apply the store schema and exit
  - genkey: generate a mediator signing key and write a secrets file
  - admin: manage the admin DID set`,
}

func main() {
	// .env is optional; config.Load's environment-cascade and
	// MEDIATOR_* overrides take precedence over anything it sets.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "config", "directory to load <environment>.yaml from")
}

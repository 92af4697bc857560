// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/didcomm-x/mediator/config"
	"github.com/didcomm-x/mediator/server"
)

var serveEnv string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the mediator until interrupted",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveEnv, "env", "", "environment to load (overrides MEDIATOR_ENV)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.LoaderOptions{ConfigDir: configDir, Environment: serveEnv})
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if issues := config.Validate(cfg); len(issues) > 0 {
		for _, issue := range issues {
			fmt.Fprintf(cmd.ErrOrStderr(), "config: %s\n", issue.Error())
		}
		return fmt.Errorf("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("wire mediator: %w", err)
	}
	return srv.Run(ctx)
}

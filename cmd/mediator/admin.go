// SPDX-License-Identifier: LGPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/didcomm-x/mediator/config"
	"github.com/didcomm-x/mediator/did"
	"github.com/didcomm-x/mediator/store"
	"github.com/didcomm-x/mediator/store/postgres"
)

var adminEnv string

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage the mediator's admin DID set",
}

var adminAddCmd = &cobra.Command{
	Use:   "add <did>",
	Short: "Grant a DID admin rights",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdminAdd,
}

var adminRemoveCmd = &cobra.Command{
	Use:   "remove <did>",
	Short: "Revoke a DID's admin rights",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdminRemove,
}

var adminCheckCmd = &cobra.Command{
	Use:   "check <did>",
	Short: "Report whether a DID holds admin rights",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdminCheck,
}

func init() {
	rootCmd.AddCommand(adminCmd)
	adminCmd.PersistentFlags().StringVar(&adminEnv, "env", "", "environment to load (overrides MEDIATOR_ENV)")
	adminCmd.AddCommand(adminAddCmd, adminRemoveCmd, adminCheckCmd)
}

func openAdminStore(ctx context.Context) (store.Store, error) {
	cfg, err := config.Load(config.LoaderOptions{ConfigDir: configDir, Environment: adminEnv})
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	switch cfg.Store.Backend {
	case "", "memory":
		return nil, fmt.Errorf("admin: store.backend is memory, which does not persist across process runs")
	case "postgres":
		return postgres.NewStoreFromDSN(ctx, cfg.Store.DSN)
	default:
		return nil, fmt.Errorf("admin: unknown store backend %q", cfg.Store.Backend)
	}
}

func runAdminAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	st, err := openAdminStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	hash := did.Hash(did.AgentDID(args[0]))
	if err := st.AddAdmin(ctx, &store.AdminAccount{DIDHash: hash, Role: store.AdminRoleAdmin, AddedAt: time.Now()}); err != nil {
		return fmt.Errorf("add admin: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is now an admin\n", args[0])
	return nil
}

func runAdminRemove(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	st, err := openAdminStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	hash := did.Hash(did.AgentDID(args[0]))
	account, ok, err := st.IsAdmin(ctx, hash)
	if err != nil {
		return fmt.Errorf("check admin: %w", err)
	}
	if !ok {
		return fmt.Errorf("%s is not an admin", args[0])
	}
	if account.Role == store.AdminRoleRootAdmin {
		return fmt.Errorf("%s is the root admin and cannot be removed", args[0])
	}

	if err := st.RemoveAdmin(ctx, hash); err != nil {
		return fmt.Errorf("remove admin: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is no longer an admin\n", args[0])
	return nil
}

func runAdminCheck(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	st, err := openAdminStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	hash := did.Hash(did.AgentDID(args[0]))
	account, ok, err := st.IsAdmin(ctx, hash)
	if err != nil {
		return fmt.Errorf("check admin: %w", err)
	}
	if !ok {
		fmt.Fprintf(cmd.OutOrStdout(), "%s is not an admin\n", args[0])
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is an admin (role=%d, added=%s)\n", args[0], account.Role, account.AddedAt.Format(time.RFC3339))
	return nil
}

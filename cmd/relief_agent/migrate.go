package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create tables and seed the settings row",
	Long: `Create the resource and settings tables if they do not exist and seed the settings row from
ACTIVE_PROVIDER, FALLBACK_PROVIDER, MATCH_STRATEGY and the model variables. An existing settings row is left untouched.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	if err := store.Migrate(ctx, cfg.SeedSettings()); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Migration complete")
	return nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/scanpost/scanpost/internal/ledger"
)

func newMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending ledger database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), configPath, cmd.OutOrStdout(), os.Getenv)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file (default: .scanpost/config.yaml)")
	return cmd
}

func runMigrate(ctx context.Context, configPath string, stdout io.Writer, getenv func(string) string) error {
	cfg, err := loadConfig(firstNonEmpty(configPath, getenv("SCANPOST_CONFIG")), getenv)
	if err != nil {
		return err
	}
	if cfg.Ledger.DatabaseURL == "" {
		return errLedgerNotConfigured
	}

	db, err := ledger.Open(ctx, cfg.Ledger.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := ledger.AutoMigrate(db); err != nil {
		return err
	}
	version, dirty, err := ledger.SchemaVersion(db)
	if err != nil {
		return err
	}
	if dirty {
		return fmt.Errorf("ledger schema version %d is dirty", version)
	}
	fmt.Fprintf(stdout, "Ledger schema is up to date (version %d).\n", version)
	return nil
}

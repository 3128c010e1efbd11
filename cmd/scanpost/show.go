package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/scanpost/scanpost/internal/archive"
)

func newShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show RECEIPT_ID",
		Short: "Print the archived body of a posted scan comment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd.Context(), args[0], configPath, cmd.OutOrStdout(), os.Getenv)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file (default: .scanpost/config.yaml)")
	return cmd
}

func runShow(ctx context.Context, id, configPath string, stdout io.Writer, getenv func(string) string) error {
	cfg, err := loadConfig(firstNonEmpty(configPath, getenv("SCANPOST_CONFIG")), getenv)
	if err != nil {
		return err
	}

	store, db, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}
	if store == nil {
		return errLedgerNotConfigured
	}
	defer db.Close()

	pub, err := store.Get(ctx, id)
	if err != nil {
		return err
	}
	if pub.ArchiveRef == "" {
		return fmt.Errorf("publication %s has no archived body", id)
	}

	arch, err := archive.Open(ctx, cfg, getenv)
	if err != nil {
		return err
	}
	if arch == nil {
		return fmt.Errorf("archive is not configured: set archive.backend")
	}
	defer arch.Close()

	rec, err := arch.GetRecord(ctx, pub.ArchiveRef)
	if errors.Is(err, archive.ErrNotFound) {
		return fmt.Errorf("publication %s: archived body %s is missing from the %s archive: %w", id, pub.ArchiveRef, cfg.Archive.Backend, err)
	}
	if err != nil {
		return err
	}
	_, err = io.WriteString(stdout, rec.Body)
	return err
}

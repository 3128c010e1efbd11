package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/scanpost/scanpost/internal/archive"
	"github.com/scanpost/scanpost/internal/delivery"
	"github.com/scanpost/scanpost/internal/ghenv"
	"github.com/scanpost/scanpost/internal/github"
	"github.com/scanpost/scanpost/pkg/config"
	"github.com/scanpost/scanpost/pkg/publish"
)

func newPostCmd() *cobra.Command {
	var (
		scanResult string
		owner      string
		repo       string
		issue      int
		configPath string
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "post",
		Short: "Post a scan result as an issue or pull request comment",
		Long: `Reads the scan result file, wraps it in the report layout and creates one
comment on the target issue or pull request. Owner, repository and issue
number default to the GitHub Actions environment.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPost(cmd.Context(), postOpts{
				scanResult: scanResult,
				owner:      owner,
				repo:       repo,
				issue:      issue,
				configPath: configPath,
				dryRun:     dryRun,
			}, cmd.OutOrStdout(), os.Getenv)
		},
	}

	cmd.Flags().StringVar(&scanResult, "scan-result", "", "Path to the security scan result file (required)")
	cmd.Flags().StringVar(&owner, "owner", "", "Repository owner (default: from GITHUB_REPOSITORY)")
	cmd.Flags().StringVar(&repo, "repo", "", "Repository name (default: from GITHUB_REPOSITORY)")
	cmd.Flags().IntVar(&issue, "issue", 0, "Issue or pull request number (default: from the event payload)")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file (default: .scanpost/config.yaml)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the comment body instead of posting it")
	_ = cmd.MarkFlagRequired("scan-result")

	return cmd
}

type postOpts struct {
	scanResult string
	owner      string
	repo       string
	issue      int
	configPath string
	dryRun     bool
}

func runPost(ctx context.Context, opts postOpts, stdout io.Writer, getenv func(string) string) error {
	cfg, err := loadConfig(firstNonEmpty(opts.configPath, getenv("SCANPOST_CONFIG")), getenv)
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()

	detected, err := ghenv.Detect(getenv, os.ReadFile)
	if err != nil {
		logger.Warn("Could not read GitHub Actions environment", zap.Error(err))
	}
	target := ghenv.Target{Owner: opts.owner, Repo: opts.repo, IssueNumber: opts.issue}.Merge(detected)

	req := publish.Request{
		Owner:          target.Owner,
		Repo:           target.Repo,
		IssueNumber:    target.IssueNumber,
		ScanResultPath: opts.scanResult,
	}

	if opts.dryRun {
		body, err := publish.NewPublisher(publish.OSFileReader{}, nil, logger).Compose(req)
		if err != nil {
			return err
		}
		_, err = io.WriteString(stdout, body)
		return err
	}

	if err := req.Validate(); err != nil {
		return err
	}

	ghOpts, err := githubOptions(cfg, getenv)
	if err != nil {
		return err
	}
	client, err := github.NewClient(ghOpts)
	if err != nil {
		return err
	}

	svcOpts := bookkeeping(ctx, logger, cfg, getenv)
	defer svcOpts.close()

	svc := delivery.NewService(publish.NewPublisher(publish.OSFileReader{}, client, logger), logger, svcOpts.opts...)
	receipt, err := svc.Deliver(ctx, req)
	if err != nil {
		return err
	}

	logger.Info("Delivered scan results",
		zap.String("receipt_id", receipt.ID),
		zap.String("body_sha256", receipt.BodySHA256),
		zap.String("archive_ref", receipt.ArchiveRef),
	)
	if receipt.CommentURL != "" {
		fmt.Fprintln(stdout, receipt.CommentURL)
	}
	return nil
}

type bookkeepingOpts struct {
	opts    []delivery.Option
	closers []func() error
}

func (b bookkeepingOpts) close() {
	for _, c := range b.closers {
		_ = c()
	}
}

// bookkeeping opens the archive and ledger. Failing to open either is
// logged and leaves that part out; the comment is still posted.
func bookkeeping(ctx context.Context, logger *zap.Logger, cfg *config.Config, getenv func(string) string) bookkeepingOpts {
	var b bookkeepingOpts

	arch, err := archive.Open(ctx, cfg, getenv)
	switch {
	case err != nil:
		logger.Warn("Archive unavailable", zap.String("backend", cfg.Archive.Backend), zap.Error(err))
	case arch != nil:
		b.opts = append(b.opts, delivery.WithArchive(arch))
		b.closers = append(b.closers, arch.Close)
	}

	store, db, err := openLedger(ctx, cfg)
	switch {
	case err != nil:
		logger.Warn("Ledger unavailable", zap.Error(err))
	case store != nil:
		b.opts = append(b.opts, delivery.WithLedger(store))
		b.closers = append(b.closers, db.Close)
	}

	return b
}

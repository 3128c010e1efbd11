package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/scanpost/scanpost/internal/ghenv"
	"github.com/scanpost/scanpost/internal/ledger"
)

func newHistoryCmd() *cobra.Command {
	var (
		owner      string
		repo       string
		issue      int
		configPath string
		outputFmt  string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the scan comments recorded for an issue or pull request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd.Context(), historyOpts{
				owner:      owner,
				repo:       repo,
				issue:      issue,
				configPath: configPath,
				outputFmt:  outputFmt,
			}, cmd.OutOrStdout(), os.Getenv)
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Repository owner (default: from GITHUB_REPOSITORY)")
	cmd.Flags().StringVar(&repo, "repo", "", "Repository name (default: from GITHUB_REPOSITORY)")
	cmd.Flags().IntVar(&issue, "issue", 0, "Issue or pull request number")
	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file (default: .scanpost/config.yaml)")
	cmd.Flags().StringVar(&outputFmt, "output", "text", "Output format: text or json")

	return cmd
}

type historyOpts struct {
	owner      string
	repo       string
	issue      int
	configPath string
	outputFmt  string
}

func runHistory(ctx context.Context, opts historyOpts, stdout io.Writer, getenv func(string) string) error {
	if opts.outputFmt != "text" && opts.outputFmt != "json" {
		return fmt.Errorf("unknown output format %q (want text or json)", opts.outputFmt)
	}

	cfg, err := loadConfig(firstNonEmpty(opts.configPath, getenv("SCANPOST_CONFIG")), getenv)
	if err != nil {
		return err
	}

	detected, detectErr := ghenv.Detect(getenv, os.ReadFile)
	target := ghenv.Target{Owner: opts.owner, Repo: opts.repo, IssueNumber: opts.issue}.Merge(detected)
	if target.Owner == "" || target.Repo == "" || target.IssueNumber <= 0 {
		if detectErr != nil {
			return fmt.Errorf("--owner, --repo and --issue are required when the GitHub Actions environment is unusable: %w", detectErr)
		}
		return fmt.Errorf("--owner, --repo and --issue are required outside GitHub Actions")
	}

	store, db, err := openLedger(ctx, cfg)
	if err != nil {
		return err
	}
	if store == nil {
		return errLedgerNotConfigured
	}
	defer db.Close()

	pubs, err := store.ListByIssue(ctx, target.Owner, target.Repo, target.IssueNumber)
	if err != nil {
		return err
	}
	return writeHistory(stdout, opts.outputFmt, pubs)
}

var errLedgerNotConfigured = errors.New("ledger is not configured: set ledger.database_url or SCANPOST_DATABASE_URL")

func writeHistory(w io.Writer, format string, pubs []ledger.Publication) error {
	if format == "json" {
		type row struct {
			ID         string    `json:"id"`
			CommentID  int64     `json:"comment_id"`
			CommentURL string    `json:"comment_url"`
			BodySHA256 string    `json:"body_sha256"`
			ArchiveRef string    `json:"archive_ref,omitempty"`
			PostedAt   time.Time `json:"posted_at"`
		}
		rows := make([]row, 0, len(pubs))
		for _, p := range pubs {
			rows = append(rows, row{p.ID, p.CommentID, p.CommentURL, p.BodySHA256, p.ArchiveRef, p.PostedAt})
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(pubs) == 0 {
		_, err := fmt.Fprintln(w, "No scan comments recorded.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCOMMENT\tPOSTED\tSHA256")
	for _, p := range pubs {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", p.ID, p.CommentID, p.PostedAt.UTC().Format(time.RFC3339), shortSHA(p.BodySHA256))
	}
	return tw.Flush()
}

func shortSHA(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}

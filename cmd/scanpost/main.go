// Package main provides the scanpost CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/scanpost/scanpost/pkg/publish"
)

var version = "dev"

// Exit codes.
const (
	ExitSuccess        = 0
	ExitError          = 1
	ExitFileAccess     = 2
	ExitRemoteCall     = 3
	ExitInvalidRequest = 4
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(exitCodeFor(err))
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "scanpost",
		Short: "Post security scan results as GitHub comments",
		Long: `scanpost reads a security scan result file and posts it, wrapped in a
fixed report layout, as a comment on a GitHub issue or pull request.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newPostCmd(),
		newHistoryCmd(),
		newShowCmd(),
		newMigrateCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the scanpost version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "scanpost", version)
		},
	}
}

func exitCodeFor(err error) int {
	var (
		fileErr    *publish.FileAccessError
		remoteErr  *publish.RemoteCallError
		invalidErr *publish.InvalidRequestError
	)
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &fileErr):
		return ExitFileAccess
	case errors.As(err, &remoteErr):
		return ExitRemoteCall
	case errors.As(err, &invalidErr):
		return ExitInvalidRequest
	default:
		return ExitError
	}
}

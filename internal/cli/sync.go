package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/artpar/storyshare/internal/app"
	"github.com/artpar/storyshare/internal/gateway"
	"github.com/spf13/cobra"
)

// NewSyncCommand creates the sync command.
func NewSyncCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Upload stories that were saved offline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withApp(cmd, func(ctx context.Context, a *app.App) error {
				return runDrain(ctx, cmd, a)
			})
		},
	}
}

func runDrain(ctx context.Context, cmd *cobra.Command, a *app.App) error {
	out := cmd.OutOrStdout()

	result, err := a.Sync().SyncPendingUploads(ctx)
	if errors.Is(err, gateway.ErrAuthMissing) {
		printWarn(out, "%d stories waiting, log in to upload them", result.Pending)
		return nil
	}
	if err != nil {
		return err
	}

	if result.Pending == 0 {
		fmt.Fprintln(out, metaStyle.Render("Nothing to upload."))
		return nil
	}
	if len(result.Synced) > 0 {
		printOK(out, "%d stories uploaded to the server!", len(result.Synced))
	}
	for _, f := range result.Failed {
		if f.Retryable {
			printWarn(out, "%s not uploaded, will retry: %v", f.ID, f.Err)
		} else {
			printWarn(out, "%s not uploaded, needs attention: %v", f.ID, f.Err)
		}
	}
	return nil
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch connectivity and upload queued stories when back online",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withApp(cmd, func(ctx context.Context, a *app.App) error {
				ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
				defer stop()

				fmt.Fprintf(cmd.OutOrStdout(), "Watching %s every %s (Ctrl+C to stop)\n",
					a.Config().BaseURL, a.Config().ProbeInterval)

				// drain what is already queued; the monitor only fires on changes
				if a.Monitor().Check(ctx) {
					if err := runDrain(ctx, cmd, a); err != nil {
						return err
					}
				}

				err := a.Monitor().Run(ctx)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}
}

package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/artpar/storyshare/internal/app"
	"github.com/artpar/storyshare/internal/push"
	"github.com/spf13/cobra"
)

// NewNotifyCommand creates the notify command group.
func NewNotifyCommand(root *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Manage push notifications",
	}

	cmd.AddCommand(
		newNotifyStatusCommand(root),
		newNotifyEnableCommand(root),
		newNotifyRequestCommand(root),
		newNotifyDisableCommand(root),
		newNotifyResetCommand(root),
	)

	return cmd
}

func newNotifyStatusCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show notification permission and subscription",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withApp(cmd, func(ctx context.Context, a *app.App) error {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Permission:   %s\n", a.Push().GetStatus(ctx))
				fmt.Fprintf(out, "Subscribed:   %t\n", a.Push().Subscribed(ctx))
				if last := a.Push().State().LastFailure(); !last.IsZero() {
					fmt.Fprintf(out, "Last failure: %s\n", formatDate(last))
				}
				return nil
			})
		},
	}
}

func newNotifyEnableCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "enable",
		Short: "Allow notifications and subscribe to push",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withApp(cmd, func(ctx context.Context, a *app.App) error {
				result, err := a.Push().Enable(ctx)
				reportSubscription(cmd, result, err)
				return nil
			})
		},
	}
}

func newNotifyRequestCommand(root *RootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "request",
		Short: "Ask for notification permission",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withApp(cmd, func(ctx context.Context, a *app.App) error {
				out := cmd.OutOrStdout()
				before := a.Push().GetStatus(ctx)
				if a.Push().RequestPermission(ctx, force) {
					printOK(out, "Notifications allowed")
					return nil
				}
				if before == push.StatusDeniedPermanent && !force {
					printWarn(out, "Notifications were denied before; use --force to ask again")
					return nil
				}
				printWarn(out, "Notifications not allowed")
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Ask even if permission was denied before")

	return cmd
}

func newNotifyDisableCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "disable",
		Short: "Unsubscribe from push notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withApp(cmd, func(ctx context.Context, a *app.App) error {
				removed, err := a.Push().Unsubscribe(ctx)
				if err != nil {
					return err
				}
				if removed {
					printOK(cmd.OutOrStdout(), "Unsubscribed from notifications")
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), metaStyle.Render("Not subscribed."))
				}
				return nil
			})
		},
	}
}

func newNotifyResetCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Forget the notification permission decision",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Device().SetPermission(ctx, push.PermissionDefault); err != nil {
					return err
				}
				a.Push().State().Reset(ctx)
				printOK(cmd.OutOrStdout(), "Notification permission reset")
				return nil
			})
		},
	}
}

// reportSubscription prints a one-line status for a subscription attempt.
func reportSubscription(cmd *cobra.Command, result push.Result, err error) {
	out := cmd.OutOrStdout()

	switch {
	case errors.Is(err, push.ErrPermissionDenied):
		printWarn(out, "Notifications are blocked. Run 'storyshare notify reset' to change that.")
	case errors.Is(err, push.ErrPermissionNotGranted):
		printWarn(out, "You did not allow notifications.")
	case errors.Is(err, push.ErrUnsupported):
		printWarn(out, "Notifications are not supported here.")
	case err != nil:
		printWarn(out, "Failed to enable notifications: %v", err)
	case result == push.ResultSkipped:
		printWarn(out, "Subscription failed recently, try again in a few minutes.")
	case result == push.ResultInFlight:
		printWarn(out, "A subscription request is already running.")
	default:
		printOK(out, "Notifications enabled!")
	}
}

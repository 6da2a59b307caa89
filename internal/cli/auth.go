package cli

import (
	"context"
	"errors"

	"github.com/artpar/storyshare/internal/app"
	"github.com/spf13/cobra"
)

// AuthOptions holds options for the login and register commands.
type AuthOptions struct {
	Name     string
	Email    string
	Password string
}

// NewLoginCommand creates the login command.
func NewLoginCommand(root *RootOptions) *cobra.Command {
	opts := &AuthOptions{}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the story API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withApp(cmd, func(ctx context.Context, a *app.App) error {
				session, err := a.Login(ctx, opts.Email, opts.Password)
				if err != nil {
					return err
				}
				printOK(cmd.OutOrStdout(), "Logged in as %s", session.Name)

				// queued stories can go out now
				if len(a.Sync().Pending(ctx)) > 0 {
					return runDrain(ctx, cmd, a)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Email, "email", "e", "", "Account email")
	cmd.Flags().StringVarP(&opts.Password, "password", "p", "", "Account password")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")

	return cmd
}

// NewRegisterCommand creates the register command.
func NewRegisterCommand(root *RootOptions) *cobra.Command {
	opts := &AuthOptions{}

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(opts.Password) < 8 {
				return errors.New("password must be at least 8 characters")
			}
			return root.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Gateway().Register(ctx, opts.Name, opts.Email, opts.Password); err != nil {
					return err
				}
				printOK(cmd.OutOrStdout(), "Account created, log in with: storyshare login -e %s -p ...", opts.Email)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Name, "name", "n", "", "Display name")
	cmd.Flags().StringVarP(&opts.Email, "email", "e", "", "Account email")
	cmd.Flags().StringVarP(&opts.Password, "password", "p", "", "Account password (at least 8 characters)")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")

	return cmd
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and clear the local story cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if n := len(a.Sync().Pending(ctx)); n > 0 {
					printWarn(cmd.OutOrStdout(), "Discarding %d stories that were not uploaded yet", n)
				}
				if err := a.Logout(ctx); err != nil {
					return err
				}
				printOK(cmd.OutOrStdout(), "Logged out")
				return nil
			})
		},
	}
}

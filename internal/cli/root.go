package cli

import (
	"context"
	"fmt"

	"github.com/artpar/storyshare/internal/app"
	"github.com/artpar/storyshare/internal/config"
	"github.com/artpar/storyshare/internal/logging"
	"github.com/spf13/cobra"
)

// RootOptions holds the global flags.
type RootOptions struct {
	ConfigPath string
	DataDir    string
	BaseURL    string
	LogLevel   string

	// extra is appended to the app options (tests inject fakes here)
	extra []app.Option
}

// NewRootCommand creates the root command.
func NewRootCommand(version string) *cobra.Command {
	return newRootCommand(version, nil)
}

func newRootCommand(version string, extra []app.Option) *cobra.Command {
	opts := &RootOptions{extra: extra}

	cmd := &cobra.Command{
		Use:   "storyshare",
		Short: "Storyshare - share short stories, online or not",
		Long: "Storyshare browses, creates and favorites short location-tagged stories.\n" +
			"Stories are cached locally; stories written offline are uploaded once the API is reachable.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "Config file (default $XDG_CONFIG_HOME/storyshare/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.DataDir, "data-dir", "", "Directory holding the local story cache")
	cmd.PersistentFlags().StringVar(&opts.BaseURL, "base-url", "", "Story API base URL")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")

	// Add subcommands
	cmd.AddCommand(
		NewLoginCommand(opts),
		NewRegisterCommand(opts),
		NewLogoutCommand(opts),
		NewStoriesCommand(opts),
		NewFavoritesCommand(opts),
		NewPendingCommand(opts),
		NewSearchCommand(opts),
		NewFavoriteCommand(opts),
		NewShowCommand(opts),
		NewAddCommand(opts),
		NewSyncCommand(opts),
		NewWatchCommand(opts),
		NewNotifyCommand(opts),
	)

	return cmd
}

// loadConfig layers flags over the config file and environment.
func (o *RootOptions) loadConfig() (config.Config, error) {
	path := o.ConfigPath
	var loadOpts []config.LoadOption
	if path == "" {
		path = config.DefaultPath()
	} else {
		loadOpts = append(loadOpts, config.Explicit())
	}

	cfg, err := config.Load(path, loadOpts...)
	if err != nil {
		return config.Config{}, err
	}
	return cfg.Apply(
		config.WithDataDir(o.DataDir),
		config.WithBaseURL(o.BaseURL),
		config.WithLogLevel(o.LogLevel),
	), nil
}

// withApp builds the application for one command run and closes it afterwards.
func (o *RootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	appOpts := append([]app.Option{
		app.WithConfig(cfg),
		app.WithLogger(logger),
		app.WithIO(cmd.InOrStdin(), cmd.OutOrStdout()),
	}, o.extra...)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	application, err := app.New(ctx, appOpts...)
	if err != nil {
		return err
	}
	defer application.Close()

	return fn(ctx, application)
}

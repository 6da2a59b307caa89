package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/artpar/storyshare/internal/app"
	"github.com/artpar/storyshare/internal/story"
	"github.com/spf13/cobra"
)

// NewStoriesCommand creates the stories command.
func NewStoriesCommand(root *RootOptions) *cobra.Command {
	var cachedOnly, asJSON bool

	cmd := &cobra.Command{
		Use:     "stories",
		Aliases: []string{"ls"},
		Short:   "List stories",
		Long:    "List cached stories right away, then refresh them from the story API.",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withApp(cmd, func(ctx context.Context, a *app.App) error {
				out := cmd.OutOrStdout()
				if cachedOnly {
					return writeRecords(out, asJSON, a.Sync().Stories(ctx))
				}

				if asJSON {
					var latest []story.Record
					if err := a.Sync().LoadStories(ctx, func(records []story.Record) {
						latest = records
					}); err != nil {
						return err
					}
					return writeRecords(out, true, latest)
				}

				renders := 0
				return a.Sync().LoadStories(ctx, func(records []story.Record) {
					if renders > 0 {
						fmt.Fprintln(out, headerStyle.Render("Updated"))
					}
					renders++
					renderStories(out, records)
				})
			})
		},
	}

	cmd.Flags().BoolVar(&cachedOnly, "cached", false, "Only show cached stories")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the final list as JSON")

	return cmd
}

// NewFavoritesCommand creates the favorites command.
func NewFavoritesCommand(root *RootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "favorites",
		Short: "List favorite stories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withApp(cmd, func(ctx context.Context, a *app.App) error {
				return writeRecords(cmd.OutOrStdout(), asJSON, a.Sync().Favorites(ctx))
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")

	return cmd
}

// NewPendingCommand creates the pending command.
func NewPendingCommand(root *RootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List stories waiting to be uploaded",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withApp(cmd, func(ctx context.Context, a *app.App) error {
				return writeRecords(cmd.OutOrStdout(), asJSON, a.Sync().Pending(ctx))
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")

	return cmd
}

// NewSearchCommand creates the search command.
func NewSearchCommand(root *RootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search cached stories by name or description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withApp(cmd, func(ctx context.Context, a *app.App) error {
				return writeRecords(cmd.OutOrStdout(), asJSON, a.Sync().Search(ctx, args[0]))
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")

	return cmd
}

// NewFavoriteCommand creates the favorite command.
func NewFavoriteCommand(root *RootOptions) *cobra.Command {
	var set string

	cmd := &cobra.Command{
		Use:   "favorite ID",
		Short: "Toggle whether a story is a favorite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return root.withApp(cmd, func(ctx context.Context, a *app.App) error {
				var favorite bool
				if set != "" {
					v, err := strconv.ParseBool(set)
					if err != nil {
						return fmt.Errorf("invalid --set value %q: %w", set, err)
					}
					if err := a.Sync().SetFavorite(ctx, id, v); err != nil {
						return err
					}
					favorite = v
				} else {
					v, err := a.Sync().ToggleFavorite(ctx, id)
					if err != nil {
						return err
					}
					favorite = v
				}

				if favorite {
					printOK(cmd.OutOrStdout(), "Added %s to favorites", id)
				} else {
					printOK(cmd.OutOrStdout(), "Removed %s from favorites", id)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&set, "set", "", "Set the flag (true/false) instead of toggling")

	return cmd
}

// NewShowCommand creates the show command.
func NewShowCommand(root *RootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show a story",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.withApp(cmd, func(ctx context.Context, a *app.App) error {
				rec, err := a.Sync().StoryDetail(ctx, args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), rec)
				}
				renderDetail(cmd.OutOrStdout(), rec)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")

	return cmd
}

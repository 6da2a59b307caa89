package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/artpar/storyshare/internal/app"
	"github.com/artpar/storyshare/internal/gateway"
	"github.com/artpar/storyshare/internal/offline"
	"github.com/artpar/storyshare/internal/story"
	"github.com/spf13/cobra"
)

// maxPhotoSize is the largest photo the story API accepts.
const maxPhotoSize = 1 << 20

// AddOptions holds options for the add command.
type AddOptions struct {
	Name        string
	Description string
	Photo       string
	Lat         float64
	Lon         float64
}

// NewAddCommand creates the add command.
func NewAddCommand(root *RootOptions) *cobra.Command {
	opts := &AddOptions{}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Share a new story",
		Long:  "Share a new story. Without connectivity the story is kept locally and uploaded later.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			draft, err := buildDraft(cmd, opts)
			if err != nil {
				return err
			}
			return root.withApp(cmd, func(ctx context.Context, a *app.App) error {
				return runAdd(ctx, cmd, a, draft)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Name, "name", "n", "", "Story title")
	cmd.Flags().StringVarP(&opts.Description, "description", "d", "", "Story text")
	cmd.Flags().StringVar(&opts.Photo, "photo", "", "Path to the photo (max 1MB)")
	cmd.Flags().Float64Var(&opts.Lat, "lat", 0, "Latitude")
	cmd.Flags().Float64Var(&opts.Lon, "lon", 0, "Longitude")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("description")
	cmd.MarkFlagRequired("photo")
	cmd.MarkFlagsRequiredTogether("lat", "lon")

	return cmd
}

func buildDraft(cmd *cobra.Command, opts *AddOptions) (offline.Draft, error) {
	photo, err := os.ReadFile(opts.Photo)
	if err != nil {
		return offline.Draft{}, fmt.Errorf("failed to read photo: %w", err)
	}
	if len(photo) > maxPhotoSize {
		return offline.Draft{}, errors.New("photo must be at most 1MB")
	}

	draft := offline.Draft{
		Name:        opts.Name,
		Description: opts.Description,
		Photo:       photo,
		ContentType: http.DetectContentType(photo),
	}
	if cmd.Flags().Changed("lat") {
		draft.Lat = story.Coord(opts.Lat)
		draft.Lon = story.Coord(opts.Lon)
	}
	return draft, nil
}

func runAdd(ctx context.Context, cmd *cobra.Command, a *app.App, draft offline.Draft) error {
	out := cmd.OutOrStdout()

	// establish connectivity before choosing between submit and queue
	a.Monitor().Check(ctx)

	result, err := a.Sync().SubmitStory(ctx, draft)
	if err != nil {
		return err
	}

	if !result.Queued {
		printOK(out, "Story added!")
		return nil
	}

	printWarn(out, "Story saved locally. It will be uploaded when back online.")
	if errors.Is(result.Err, gateway.ErrAuthMissing) {
		printWarn(out, "Log in to upload it: storyshare login")
	}
	return nil
}

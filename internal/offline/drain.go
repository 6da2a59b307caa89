package offline

import (
	"context"
	"errors"
	"fmt"

	"github.com/artpar/storyshare/internal/gateway"
	"github.com/artpar/storyshare/internal/story"
)

// FailedUpload is a pending story that could not be submitted. It stays
// queued for the next drain. Retryable is false when the same story would
// fail again without a change, such as a rejected photo.
type FailedUpload struct {
	ID        string
	Err       error
	Retryable bool
}

// DrainResult summarizes a SyncPendingUploads run.
type DrainResult struct {
	Pending int
	Synced  []string
	Failed  []FailedUpload
}

// SyncPendingUploads submits every pending story, one at a time in storage
// order. A story is removed from the cache only after the API accepted it;
// a failure is recorded and the drain moves on to the next story. Once the
// session is rejected the remaining stories are recorded as failed without
// being sent. When at least one story was accepted the live list is fetched
// into the cache.
func (m *Manager) SyncPendingUploads(ctx context.Context) (DrainResult, error) {
	pending := m.cache.Pending(ctx)
	result := DrainResult{Pending: len(pending)}
	if len(pending) == 0 {
		m.logger.Debug().Msg("no pending uploads to sync")
		return result, nil
	}

	if m.auth == nil || !m.auth.Authenticated(ctx) {
		m.logger.Warn().Int("pending", len(pending)).Msg("cannot sync, not logged in")
		return result, gateway.ErrAuthMissing
	}

	m.logger.Info().Int("pending", len(pending)).Msg("syncing pending uploads")

	var authErr error
	for _, rec := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if authErr != nil {
			result.Failed = append(result.Failed, FailedUpload{ID: rec.ID, Err: authErr, Retryable: true})
			continue
		}

		err := m.upload(ctx, rec)
		if err != nil {
			m.logger.Error().Err(err).Str("story_id", rec.ID).Msg("failed to sync story")
			retryable := gateway.IsRetryable(err) || errors.Is(err, gateway.ErrAuthMissing)
			result.Failed = append(result.Failed, FailedUpload{ID: rec.ID, Err: err, Retryable: retryable})
			if errors.Is(err, gateway.ErrAuthMissing) {
				authErr = err
			}
			continue
		}

		if !m.cache.Delete(ctx, rec.ID) {
			m.logger.Warn().Str("story_id", rec.ID).Msg("uploaded story could not be removed from the queue")
		}
		result.Synced = append(result.Synced, rec.ID)
	}

	if len(result.Synced) == 0 {
		return result, nil
	}

	if fetched, err := m.stories.ListStories(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("failed to refresh stories after sync")
	} else if !m.cache.PutAll(ctx, fetched) {
		m.logger.Warn().Int("count", len(fetched)).Msg("failed to cache refreshed stories")
	}

	m.notify(ctx, fmt.Sprintf(msgUploaded, len(result.Synced)))
	return result, nil
}

func (m *Manager) upload(ctx context.Context, rec story.Record) error {
	contentType, photo, err := DecodeDataURL(rec.PhotoURL)
	if err != nil {
		return err
	}

	_, err = m.stories.CreateStory(ctx, gateway.NewStory{
		Description: submissionText(rec.Name, rec.Description),
		Photo:       photo,
		PhotoName:   photoName(contentType),
		ContentType: contentType,
		Lat:         rec.Lat,
		Lon:         rec.Lon,
	})
	return err
}

// submissionText folds the story name into the description; the API has no
// separate name field.
func submissionText(name, description string) string {
	return name + "\n\n" + description
}

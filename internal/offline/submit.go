package offline

import (
	"context"
	"fmt"
	"time"

	"github.com/artpar/storyshare/internal/gateway"
	"github.com/artpar/storyshare/internal/story"
)

// Draft is a story composed by the user.
type Draft struct {
	Name        string
	Description string
	Photo       []byte
	ContentType string
	Lat         *float64
	Lon         *float64
}

// SubmitResult reports where a submitted story ended up.
type SubmitResult struct {
	// Queued is set when the story was saved locally for a later drain.
	Queued bool
	// Record is the queued record, or the API's record when it returned one.
	Record *story.Record
	// Err is the submission error that caused queueing, if any.
	Err error
}

// SubmitStory sends draft to the API. When the API is unreachable, or the
// submission fails, the story is queued in the cache instead. Only a failure
// to queue is returned as an error.
func (m *Manager) SubmitStory(ctx context.Context, draft Draft) (SubmitResult, error) {
	if draft.ContentType == "" {
		draft.ContentType = DefaultContentType
	}

	if m.online == nil || m.online.Online() {
		created, err := m.stories.CreateStory(ctx, gateway.NewStory{
			Description: submissionText(draft.Name, draft.Description),
			Photo:       draft.Photo,
			PhotoName:   photoName(draft.ContentType),
			ContentType: draft.ContentType,
			Lat:         draft.Lat,
			Lon:         draft.Lon,
		})
		if err == nil {
			m.notify(ctx, MsgStoryAdded)
			return SubmitResult{Record: created}, nil
		}
		m.logger.Error().Err(err).Msg("error submitting story, saving locally")
		return m.queue(ctx, draft, err)
	}

	return m.queue(ctx, draft, nil)
}

func (m *Manager) queue(ctx context.Context, draft Draft, cause error) (SubmitResult, error) {
	rec := story.Record{
		ID:              story.NewLocalID(),
		Name:            draft.Name,
		Description:     draft.Description,
		PhotoURL:        EncodeDataURL(draft.ContentType, draft.Photo),
		CreatedAt:       m.now().UTC(),
		Lat:             draft.Lat,
		Lon:             draft.Lon,
		IsPendingUpload: true,
	}

	if !m.cache.Put(ctx, rec) {
		if cause != nil {
			return SubmitResult{}, fmt.Errorf("failed to save story locally after submission failed (%v): %w", cause, story.ErrUnavailable)
		}
		return SubmitResult{}, fmt.Errorf("failed to save story locally: %w", story.ErrUnavailable)
	}

	m.logger.Info().Str("story_id", rec.ID).Msg("story saved locally, it will be uploaded when back online")
	return SubmitResult{Queued: true, Record: &rec, Err: cause}, nil
}

// StoryDetail fetches one story. Stories still waiting for upload are served
// from the cache. The fetch is abandoned with gateway.ErrTimeout when it takes
// longer than the detail timeout. The cached favorite flag is kept.
func (m *Manager) StoryDetail(ctx context.Context, id string) (story.Record, error) {
	cached, inCache := m.cache.Get(ctx, id)
	if story.IsLocalID(id) {
		if !inCache {
			return story.Record{}, story.ErrNotFound
		}
		return cached, nil
	}

	type outcome struct {
		rec story.Record
		err error
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		rec, err := m.stories.GetStory(fetchCtx, id)
		done <- outcome{rec, err}
	}()

	timer := time.NewTimer(m.detailTimeout)
	defer timer.Stop()

	var res outcome
	select {
	case res = <-done:
	case <-timer.C:
		m.logger.Warn().Str("story_id", id).Dur("timeout", m.detailTimeout).Msg("story detail request timed out")
		return story.Record{}, gateway.ErrTimeout
	case <-ctx.Done():
		return story.Record{}, ctx.Err()
	}

	if res.err != nil {
		return story.Record{}, fmt.Errorf("failed to load story %s: %w", id, res.err)
	}
	if inCache {
		res.rec.IsFavorite = cached.IsFavorite
	}
	return res.rec, nil
}

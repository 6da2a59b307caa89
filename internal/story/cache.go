package story

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Cache wraps a Store so storage failures never reach callers as errors.
// Reads degrade to empty results and writes report false; the cause is
// logged. Callers that need confirmation inspect the boolean results.
type Cache struct {
	store  Store
	logger zerolog.Logger
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithLogger sets the logger used to report storage failures.
func WithLogger(logger zerolog.Logger) CacheOption {
	return func(c *Cache) {
		c.logger = logger
	}
}

// NewCache creates a Cache on top of store.
func NewCache(store Store, opts ...CacheOption) *Cache {
	c := &Cache{
		store:  store,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With().Str("component", "story-cache").Logger()
	return c
}

// GetAll returns every cached record, or an empty slice if storage fails.
func (c *Cache) GetAll(ctx context.Context) []Record {
	records, err := c.store.GetAll(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("error getting stories from cache")
		return []Record{}
	}
	if records == nil {
		return []Record{}
	}
	return records
}

// Get returns the record for id, if present.
func (c *Cache) Get(ctx context.Context, id string) (Record, bool) {
	record, err := c.store.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Error().Err(err).Str("story_id", id).Msg("error getting story from cache")
		}
		return Record{}, false
	}
	return record, true
}

// Put stores a single record, keeping its favorite flag.
func (c *Cache) Put(ctx context.Context, record Record) bool {
	if _, err := c.store.Put(ctx, record); err != nil {
		c.logger.Error().Err(err).Str("story_id", record.ID).Msg("error saving story to cache")
		return false
	}
	c.logger.Debug().Str("story_id", record.ID).Msg("story saved to cache")
	return true
}

// PutAll stores a batch atomically, keeping favorite flags.
func (c *Cache) PutAll(ctx context.Context, records []Record) bool {
	if _, err := c.store.PutAll(ctx, records); err != nil {
		c.logger.Error().Err(err).Int("count", len(records)).Msg("error saving stories to cache")
		return false
	}
	c.logger.Debug().Int("count", len(records)).Msg("stories saved to cache with preserved favorites")
	return true
}

// Delete removes a record.
func (c *Cache) Delete(ctx context.Context, id string) bool {
	if err := c.store.Delete(ctx, id); err != nil {
		c.logger.Error().Err(err).Str("story_id", id).Msg("error deleting story from cache")
		return false
	}
	return true
}

// ToggleFavorite flips the favorite flag. It fails with ErrNotFound when the
// record is missing and ErrUnavailable when storage fails.
func (c *Cache) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	value, err := c.store.ToggleFavorite(ctx, id)
	switch {
	case err == nil:
		c.logger.Debug().Str("story_id", id).Bool("favorite", value).Msg("favorite toggled")
		return value, nil
	case errors.Is(err, ErrNotFound):
		return false, ErrNotFound
	default:
		c.logger.Error().Err(err).Str("story_id", id).Msg("error toggling favorite")
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

// SetFavorite sets the favorite flag. Missing records report false.
func (c *Cache) SetFavorite(ctx context.Context, id string, favorite bool) bool {
	if err := c.store.SetFavorite(ctx, id, favorite); err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Error().Err(err).Str("story_id", id).Msg("error setting favorite")
		}
		return false
	}
	return true
}

// Filter scans all records and keeps those accepted by pred.
func (c *Cache) Filter(ctx context.Context, pred Predicate) []Record {
	return Filter(c.GetAll(ctx), pred)
}

// Favorites returns favorite records.
func (c *Cache) Favorites(ctx context.Context) []Record {
	return c.Filter(ctx, Favorites)
}

// Pending returns records waiting for upload.
func (c *Cache) Pending(ctx context.Context) []Record {
	return c.Filter(ctx, PendingUploads)
}

// Search returns records whose name or description contains query.
func (c *Cache) Search(ctx context.Context, query string) []Record {
	return c.Filter(ctx, Matching(query))
}

// Clear empties the cache.
func (c *Cache) Clear(ctx context.Context) bool {
	if err := c.store.Clear(ctx); err != nil {
		c.logger.Error().Err(err).Msg("error clearing story cache")
		return false
	}
	c.logger.Info().Msg("story cache cleared")
	return true
}

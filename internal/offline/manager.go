// Package offline keeps the local story cache in step with the story API.
//
// The Manager renders cached data first and reconciles it with live fetches,
// queues stories created without connectivity and drains that queue when the
// API becomes reachable again. Every read goes back to the cache, so no
// component holds its own copy of the list across network calls.
package offline

import (
	"context"
	"fmt"
	"time"

	"github.com/artpar/storyshare/internal/gateway"
	"github.com/artpar/storyshare/internal/notify"
	"github.com/artpar/storyshare/internal/story"
	"github.com/rs/zerolog"
)

// DefaultDetailTimeout bounds a single story detail fetch.
const DefaultDetailTimeout = 15 * time.Second

// Notification bodies.
const (
	MsgNewStories = "New stories are available!"
	MsgStoryAdded = "New story added!"
	msgUploaded   = "%d stories uploaded to the server!"
)

// Authenticator reports whether authenticated calls can be made.
type Authenticator interface {
	Authenticated(ctx context.Context) bool
}

// GrantChecker reports whether notifications may be shown.
type GrantChecker interface {
	NotificationsGranted(ctx context.Context) bool
}

// OnlineReporter reports the last known connectivity.
type OnlineReporter interface {
	Online() bool
}

// Manager is the sync manager.
type Manager struct {
	cache         *story.Cache
	stories       gateway.Stories
	auth          Authenticator
	notifier      notify.Notifier
	grants        GrantChecker
	online        OnlineReporter
	detailTimeout time.Duration
	now           func() time.Time
	logger        zerolog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithNotifier sets where notifications are shown.
func WithNotifier(n notify.Notifier) Option {
	return func(m *Manager) {
		m.notifier = n
	}
}

// WithGrantChecker sets the notification permission source. Without one no
// notifications are shown.
func WithGrantChecker(g GrantChecker) Option {
	return func(m *Manager) {
		m.grants = g
	}
}

// WithConnectivity sets the connectivity source used by SubmitStory. Without
// one the API is assumed reachable.
func WithConnectivity(o OnlineReporter) Option {
	return func(m *Manager) {
		m.online = o
	}
}

// WithDetailTimeout sets the story detail timeout.
func WithDetailTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.detailTimeout = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithLogger sets the manager logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a sync manager.
func NewManager(cache *story.Cache, stories gateway.Stories, auth Authenticator, opts ...Option) *Manager {
	m := &Manager{
		cache:         cache,
		stories:       stories,
		auth:          auth,
		detailTimeout: DefaultDetailTimeout,
		now:           time.Now,
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With().Str("component", "sync").Logger()
	return m
}

// LoadStories renders the cached list right away, then fetches the live list,
// merges it into the cache and renders again only when the result differs.
// A fetch failure is soft when cached data was rendered and is returned
// otherwise.
func (m *Manager) LoadStories(ctx context.Context, render func([]story.Record)) error {
	snapshot := m.cache.GetAll(ctx)
	if len(snapshot) > 0 {
		render(snapshot)
	}

	fetched, err := m.stories.ListStories(ctx)
	if err != nil {
		if len(snapshot) > 0 {
			m.logger.Warn().Err(err).Int("cached", len(snapshot)).Msg("failed to fetch stories, using cached data")
			return nil
		}
		return fmt.Errorf("failed to load stories: %w", err)
	}

	if len(fetched) == 0 {
		m.logger.Debug().Msg("story API returned no stories")
		if len(snapshot) == 0 {
			render([]story.Record{})
		}
		return nil
	}

	refreshed := m.reconcile(ctx, fetched)
	if SameStories(snapshot, refreshed) {
		return nil
	}
	render(refreshed)

	if len(refreshed) > len(snapshot) {
		m.notify(ctx, MsgNewStories)
	}
	return nil
}

// reconcile stores fetched and returns the cache contents afterwards. When
// the cache cannot be read back, fetched is returned with the cached favorite
// flags applied.
func (m *Manager) reconcile(ctx context.Context, fetched []story.Record) []story.Record {
	if !m.cache.PutAll(ctx, fetched) {
		m.logger.Warn().Int("count", len(fetched)).Msg("failed to cache fetched stories")
	}

	if refreshed := m.cache.GetAll(ctx); len(refreshed) > 0 {
		return refreshed
	}

	merged := make([]story.Record, len(fetched))
	for i, r := range fetched {
		if cached, ok := m.cache.Get(ctx, r.ID); ok {
			r.IsFavorite = cached.IsFavorite
		}
		merged[i] = r
	}
	return merged
}

// HandleConnectivity drains the pending queue when the API becomes reachable.
// It is meant to be the connectivity monitor's change callback.
func (m *Manager) HandleConnectivity(ctx context.Context, online bool) {
	if !online {
		m.logger.Info().Msg("offline, new stories will be queued")
		return
	}

	m.logger.Info().Msg("back online, syncing pending uploads")
	result, err := m.SyncPendingUploads(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("pending uploads not synced")
		return
	}
	if result.Pending > 0 {
		m.logger.Info().
			Int("synced", len(result.Synced)).
			Int("failed", len(result.Failed)).
			Msg("pending uploads synced")
	}
}

// ToggleFavorite flips the favorite flag of a cached story.
func (m *Manager) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	return m.cache.ToggleFavorite(ctx, id)
}

// SetFavorite sets the favorite flag of a cached story.
func (m *Manager) SetFavorite(ctx context.Context, id string, favorite bool) error {
	if _, ok := m.cache.Get(ctx, id); !ok {
		return story.ErrNotFound
	}
	if !m.cache.SetFavorite(ctx, id, favorite) {
		return story.ErrUnavailable
	}
	return nil
}

// Stories returns the cached stories.
func (m *Manager) Stories(ctx context.Context) []story.Record {
	return m.cache.GetAll(ctx)
}

// Favorites returns the cached favorites.
func (m *Manager) Favorites(ctx context.Context) []story.Record {
	return m.cache.Favorites(ctx)
}

// Pending returns stories waiting for upload.
func (m *Manager) Pending(ctx context.Context) []story.Record {
	return m.cache.Pending(ctx)
}

// Search returns cached stories whose name or description contains query.
func (m *Manager) Search(ctx context.Context, query string) []story.Record {
	return m.cache.Search(ctx, query)
}

func (m *Manager) notify(ctx context.Context, body string) {
	if m.notifier == nil || m.grants == nil || !m.grants.NotificationsGranted(ctx) {
		return
	}
	n := notify.Notification{Title: notify.DefaultTitle, Body: body}
	if err := m.notifier.Show(ctx, n); err != nil {
		m.logger.Warn().Err(err).Msg("failed to show notification")
	}
}

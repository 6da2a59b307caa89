package cli

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/artpar/storyshare/internal/app"
	"github.com/artpar/storyshare/internal/auth"
	"github.com/artpar/storyshare/internal/database"
	"github.com/artpar/storyshare/internal/gateway"
	"github.com/artpar/storyshare/internal/notify"
	"github.com/artpar/storyshare/internal/story"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway is an in-memory story API.
type fakeGateway struct {
	mu         sync.Mutex
	stories    []story.Record
	created    []gateway.NewStory
	registered []string
}

func (g *fakeGateway) ListStories(context.Context) ([]story.Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]story.Record(nil), g.stories...), nil
}

func (g *fakeGateway) GetStory(_ context.Context, id string) (story.Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, s := range g.stories {
		if s.ID == id {
			return s, nil
		}
	}
	return story.Record{}, &gateway.APIError{StatusCode: 404, Message: "Story not found"}
}

func (g *fakeGateway) CreateStory(_ context.Context, s gateway.NewStory) (*story.Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.created = append(g.created, s)
	return nil, nil
}

func (g *fakeGateway) RegisterPushSubscription(_ context.Context, endpoint string, _ gateway.PushKeys) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.registered = append(g.registered, endpoint)
	return nil
}

func (g *fakeGateway) UnregisterPushSubscription(context.Context, string) error {
	return nil
}

func (g *fakeGateway) Login(context.Context, string, string) (auth.Session, error) {
	return auth.Session{UserID: "user-1", Name: "Dimas", Token: "token"}, nil
}

func (g *fakeGateway) Register(context.Context, string, string, string) error {
	return nil
}

type discardNotifier struct{}

func (discardNotifier) Show(context.Context, notify.Notification) error { return nil }

// harness runs commands against one shared database.
type harness struct {
	t          *testing.T
	db         *sql.DB
	gateway    *fakeGateway
	configPath string
	baseURL    string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(server.Close)

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("log_level: error\n"), 0o644))

	created := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	return &harness{
		t:  t,
		db: db,
		gateway: &fakeGateway{stories: []story.Record{
			{ID: "story-1", Name: "Beach", Description: "Sunset at the beach", CreatedAt: created},
			{ID: "story-2", Name: "Mountain", Description: "Cold morning", CreatedAt: created, Lat: story.Coord(-7.5), Lon: story.Coord(110.4)},
		}},
		configPath: configPath,
		baseURL:    server.URL,
	}
}

// offline points the connectivity probe at a closed port.
func (h *harness) offline() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	h.baseURL = server.URL
	server.Close()
}

func (h *harness) run(stdin string, args ...string) (string, error) {
	h.t.Helper()
	extra := []app.Option{
		app.WithDatabase(h.db),
		app.WithGateway(h.gateway),
		app.WithNotifier(discardNotifier{}),
	}
	cmd := newRootCommand("test", extra)

	var out, errOut bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", h.configPath, "--base-url", h.baseURL}, args...))

	err := cmd.Execute()
	return out.String(), err
}

func TestNewRootCommand(t *testing.T) {
	t.Run("creates root command", func(t *testing.T) {
		cmd := NewRootCommand("1.0.0")
		assert.NotNil(t, cmd)
		assert.Equal(t, "storyshare", cmd.Use)
		assert.Equal(t, "1.0.0", cmd.Version)
	})

	t.Run("has global flags", func(t *testing.T) {
		cmd := NewRootCommand("1.0.0")
		for _, name := range []string{"config", "data-dir", "base-url", "log-level"} {
			assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
		}
	})

	t.Run("has subcommands", func(t *testing.T) {
		cmd := NewRootCommand("1.0.0")
		for _, name := range []string{"login", "register", "logout", "stories", "favorites", "pending", "search", "favorite", "show", "add", "sync", "watch", "notify"} {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err, name)
			assert.True(t, strings.HasPrefix(sub.Use, name), name)
		}
	})

	t.Run("missing explicit config fails", func(t *testing.T) {
		cmd := NewRootCommand("1.0.0")
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "pending"})
		assert.Error(t, cmd.Execute())
	})
}

func TestStoriesCommands(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("", "stories")
	require.NoError(t, err)
	assert.Contains(t, out, "Beach")
	assert.Contains(t, out, "Mountain")

	out, err = h.run("", "favorite", "story-2")
	require.NoError(t, err)
	assert.Contains(t, out, "Added story-2 to favorites")

	out, err = h.run("", "favorites")
	require.NoError(t, err)
	assert.Contains(t, out, "Mountain")
	assert.NotContains(t, out, "Beach")

	// a refresh keeps the favorite
	_, err = h.run("", "stories")
	require.NoError(t, err)
	out, err = h.run("", "favorites")
	require.NoError(t, err)
	assert.Contains(t, out, "Mountain")

	out, err = h.run("", "favorite", "story-2", "--set", "false")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed story-2 from favorites")

	out, err = h.run("", "search", "sunset")
	require.NoError(t, err)
	assert.Contains(t, out, "Beach")
	assert.NotContains(t, out, "Mountain")

	out, err = h.run("", "show", "story-2")
	require.NoError(t, err)
	assert.Contains(t, out, "Cold morning")
	assert.Contains(t, out, "Location: -7.50000, 110.40000")

	_, err = h.run("", "favorite", "nope")
	assert.ErrorIs(t, err, story.ErrNotFound)
}

func TestAddOfflineThenLogin(t *testing.T) {
	h := newHarness(t)
	photo := filepath.Join(t.TempDir(), "photo.png")
	require.NoError(t, os.WriteFile(photo, []byte("\x89PNG\r\n\x1a\nrest"), 0o644))

	online := h.baseURL
	h.offline()

	out, err := h.run("", "add", "--name", "Rain", "--description", "Caught in the rain", "--photo", photo, "--lat", "1.5", "--lon", "2.5")
	require.NoError(t, err)
	assert.Contains(t, out, "Story saved locally")
	assert.Empty(t, h.gateway.created)

	out, err = h.run("", "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "Rain")
	assert.Contains(t, out, "pending upload")

	out, err = h.run("", "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "log in to upload them")

	h.baseURL = online
	out, err = h.run("", "login", "-e", "dimas@example.com", "-p", "secret")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as Dimas")
	assert.Contains(t, out, "1 stories uploaded to the server!")

	require.Len(t, h.gateway.created, 1)
	sent := h.gateway.created[0]
	assert.Equal(t, "Rain\n\nCaught in the rain", sent.Description)
	assert.Equal(t, "image/png", sent.ContentType)
	assert.Equal(t, 1.5, *sent.Lat)

	out, err = h.run("", "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "No stories.")
}

func TestAddOnline(t *testing.T) {
	h := newHarness(t)
	photo := filepath.Join(t.TempDir(), "photo.jpg")
	require.NoError(t, os.WriteFile(photo, []byte("\xff\xd8\xff\xe0jpeg"), 0o644))

	_, err := h.run("", "login", "-e", "dimas@example.com", "-p", "secret")
	require.NoError(t, err)

	out, err := h.run("", "add", "-n", "Cat", "-d", "A cat", "--photo", photo)
	require.NoError(t, err)
	assert.Contains(t, out, "Story added!")
	require.Len(t, h.gateway.created, 1)
	assert.Nil(t, h.gateway.created[0].Lat)
	assert.Equal(t, "image/jpeg", h.gateway.created[0].ContentType)
}

func TestNotifyCommands(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("", "notify", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Permission:   default")

	out, err = h.run("y\n", "notify", "enable")
	require.NoError(t, err)
	assert.Contains(t, out, "Notifications enabled!")
	assert.Len(t, h.gateway.registered, 1)

	out, err = h.run("", "notify", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Permission:   granted")
	assert.Contains(t, out, "Subscribed:   true")

	out, err = h.run("", "notify", "disable")
	require.NoError(t, err)
	assert.Contains(t, out, "Unsubscribed")

	out, err = h.run("", "notify", "reset")
	require.NoError(t, err)
	assert.Contains(t, out, "reset")

	out, err = h.run("n\n", "notify", "request")
	require.NoError(t, err)
	assert.Contains(t, out, "Notifications not allowed")

	out, err = h.run("y\n", "notify", "request")
	require.NoError(t, err)
	assert.Contains(t, out, "--force")

	out, err = h.run("", "notify", "enable")
	require.NoError(t, err)
	assert.Contains(t, out, "blocked")

	out, err = h.run("y\n", "notify", "request", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "Notifications allowed")
	assert.Len(t, h.gateway.registered, 2)
}

func TestLogout(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("", "login", "-e", "dimas@example.com", "-p", "secret")
	require.NoError(t, err)
	_, err = h.run("", "stories")
	require.NoError(t, err)

	out, err := h.run("", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")

	out, err = h.run("", "stories", "--cached")
	require.NoError(t, err)
	assert.Contains(t, out, "No stories.")
}

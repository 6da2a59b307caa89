package app

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/artpar/storyshare/internal/auth"
	"github.com/artpar/storyshare/internal/config"
	"github.com/artpar/storyshare/internal/database"
	"github.com/artpar/storyshare/internal/gateway"
	"github.com/artpar/storyshare/internal/notify"
	"github.com/artpar/storyshare/internal/push"
	"github.com/artpar/storyshare/internal/story"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockGateway implements gateway.Gateway for testing.
type MockGateway struct {
	stories    []story.Record
	registered []string
	token      string
}

func (m *MockGateway) ListStories(context.Context) ([]story.Record, error) {
	return m.stories, nil
}

func (m *MockGateway) GetStory(_ context.Context, id string) (story.Record, error) {
	for _, s := range m.stories {
		if s.ID == id {
			return s, nil
		}
	}
	return story.Record{}, &gateway.APIError{StatusCode: 404, Message: "not found"}
}

func (m *MockGateway) CreateStory(context.Context, gateway.NewStory) (*story.Record, error) {
	return nil, nil
}

func (m *MockGateway) RegisterPushSubscription(_ context.Context, endpoint string, _ gateway.PushKeys) error {
	m.registered = append(m.registered, endpoint)
	return nil
}

func (m *MockGateway) UnregisterPushSubscription(context.Context, string) error {
	return nil
}

func (m *MockGateway) Login(_ context.Context, email, password string) (auth.Session, error) {
	if password != "secret" {
		return auth.Session{}, &gateway.APIError{StatusCode: 401, Message: "Invalid password"}
	}
	return auth.Session{UserID: "user-1", Name: "Dimas", Token: m.token}, nil
}

func (m *MockGateway) Register(context.Context, string, string, string) error {
	return nil
}

type silentNotifier struct {
	shown []notify.Notification
}

func (n *silentNotifier) Show(_ context.Context, notification notify.Notification) error {
	n.shown = append(n.shown, notification)
	return nil
}

func newTestApp(t *testing.T, answers string, opts ...Option) (*App, *MockGateway) {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gw := &MockGateway{
		token: "token-1",
		stories: []story.Record{
			{ID: "story-1", Name: "Dimas", Description: "Hello", CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		},
	}

	opts = append([]Option{
		WithDatabase(db),
		WithGateway(gw),
		WithNotifier(&silentNotifier{}),
		WithIO(strings.NewReader(answers), &bytes.Buffer{}),
	}, opts...)

	a, err := New(context.Background(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a, gw
}

func TestNew(t *testing.T) {
	t.Run("wires defaults", func(t *testing.T) {
		a, gw := newTestApp(t, "")

		assert.Equal(t, config.DefaultConfig(), a.Config())
		assert.Same(t, gw, a.Gateway())
		assert.NotNil(t, a.Sync())
		assert.NotNil(t, a.Push())
		assert.NotNil(t, a.Monitor())
		assert.Equal(t, push.StatusDefault, a.Push().GetStatus(context.Background()))
	})

	t.Run("invalid push key only fails subscribing", func(t *testing.T) {
		db, err := database.OpenInMemory()
		require.NoError(t, err)
		defer db.Close()

		cfg := config.DefaultConfig()
		cfg.VAPIDPublicKey = "bogus"
		a, err := New(context.Background(), WithDatabase(db), WithConfig(cfg), WithGateway(&MockGateway{}))
		require.NoError(t, err)
		defer a.Close()

		assert.Empty(t, a.Sync().Stories(context.Background()))
		_, err = a.Push().Subscribe(context.Background())
		assert.ErrorIs(t, err, push.ErrInvalidKey)
	})

	t.Run("opens database in data dir", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.DataDir = t.TempDir()

		a, err := New(context.Background(), WithConfig(cfg), WithGateway(&MockGateway{}))
		require.NoError(t, err)
		assert.FileExists(t, cfg.DataDir+"/"+database.FileName)
		assert.NoError(t, a.Close())
	})
}

func TestApp_LoginLogout(t *testing.T) {
	ctx := context.Background()
	a, _ := newTestApp(t, "")

	_, err := a.Login(ctx, "dimas@example.com", "wrong")
	assert.Error(t, err)
	assert.False(t, a.Sessions().Authenticated(ctx))

	session, err := a.Login(ctx, "dimas@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "user-1", session.UserID)
	assert.Equal(t, "token-1", a.Sessions().Token(ctx))

	require.NoError(t, a.Sync().LoadStories(ctx, func([]story.Record) {}))
	assert.Len(t, a.Sync().Stories(ctx), 1)

	require.NoError(t, a.Logout(ctx))
	assert.False(t, a.Sessions().Authenticated(ctx))
	assert.Empty(t, a.Sync().Stories(ctx))
}

func TestApp_EnableNotifications(t *testing.T) {
	ctx := context.Background()
	a, gw := newTestApp(t, "y\n")

	result, err := a.Push().Enable(ctx)
	require.NoError(t, err)
	assert.Equal(t, push.ResultSubscribed, result)
	assert.Len(t, gw.registered, 1)
	assert.True(t, a.Push().NotificationsGranted(ctx))
}

package auth

import (
	"context"
	"testing"

	"github.com/artpar/storyshare/internal/settings/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessions(t *testing.T) {
	store, err := sqlite.NewInMemory()
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	sessions := NewSessions(store)

	t.Run("no session initially", func(t *testing.T) {
		_, err := sessions.Load(ctx)
		assert.ErrorIs(t, err, ErrNoSession)
		assert.False(t, sessions.Authenticated(ctx))
		assert.Empty(t, sessions.Token(ctx))
	})

	t.Run("save and load", func(t *testing.T) {
		require.NoError(t, sessions.Save(ctx, Session{UserID: "user-1", Name: "Dimas", Token: "tok"}))

		got, err := sessions.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Dimas", got.Name)
		assert.Equal(t, "tok", sessions.Token(ctx))
		assert.True(t, sessions.Authenticated(ctx))
	})

	t.Run("clear", func(t *testing.T) {
		require.NoError(t, sessions.Clear(ctx))
		assert.False(t, sessions.Authenticated(ctx))
	})
}

package story

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreTests runs the standard store test suite against any Store implementation.
// Use this to verify that a Store implementation correctly implements the interface.
func RunStoreTests(t *testing.T, newStore func() (Store, func())) {
	t.Run("Put", func(t *testing.T) {
		runPutTests(t, newStore)
	})
	t.Run("PutAll", func(t *testing.T) {
		runPutAllTests(t, newStore)
	})
	t.Run("Get", func(t *testing.T) {
		runGetTests(t, newStore)
	})
	t.Run("Delete", func(t *testing.T) {
		runDeleteTests(t, newStore)
	})
	t.Run("Favorite", func(t *testing.T) {
		runFavoriteTests(t, newStore)
	})
	t.Run("Clear", func(t *testing.T) {
		runClearTests(t, newStore)
	})
}

func sampleRecord(id, name string) Record {
	return Record{
		ID:          id,
		Name:        name,
		Description: name + " description",
		PhotoURL:    "https://example.com/images/" + id + ".jpg",
		CreatedAt:   time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func runPutTests(t *testing.T, newStore func() (Store, func())) {
	t.Run("new record defaults favorite to false", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()
		ctx := context.Background()

		stored, err := store.Put(ctx, sampleRecord("s-1", "Sunrise"))
		require.NoError(t, err)
		assert.False(t, stored.IsFavorite)

		got, err := store.Get(ctx, "s-1")
		require.NoError(t, err)
		assert.Equal(t, "Sunrise", got.Name)
		assert.False(t, got.IsFavorite)
	})

	t.Run("new record keeps an explicit favorite", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()
		ctx := context.Background()

		r := sampleRecord("s-1", "Sunrise")
		r.IsFavorite = true
		_, err := store.Put(ctx, r)
		require.NoError(t, err)

		got, err := store.Get(ctx, "s-1")
		require.NoError(t, err)
		assert.True(t, got.IsFavorite)
	})

	t.Run("update keeps stored favorite", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()
		ctx := context.Background()

		r := sampleRecord("s-1", "Sunrise")
		r.IsFavorite = true
		_, err := store.Put(ctx, r)
		require.NoError(t, err)

		updated := sampleRecord("s-1", "Sunrise over the bay")
		stored, err := store.Put(ctx, updated)
		require.NoError(t, err)
		assert.True(t, stored.IsFavorite)

		got, err := store.Get(ctx, "s-1")
		require.NoError(t, err)
		assert.Equal(t, "Sunrise over the bay", got.Name)
		assert.True(t, got.IsFavorite)
	})

	t.Run("update cannot set favorite from outside", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()
		ctx := context.Background()

		_, err := store.Put(ctx, sampleRecord("s-1", "Sunrise"))
		require.NoError(t, err)

		incoming := sampleRecord("s-1", "Sunrise")
		incoming.IsFavorite = true
		_, err = store.Put(ctx, incoming)
		require.NoError(t, err)

		got, err := store.Get(ctx, "s-1")
		require.NoError(t, err)
		assert.False(t, got.IsFavorite)
	})

	t.Run("rejects empty ID", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()

		_, err := store.Put(context.Background(), Record{Name: "nameless"})
		assert.ErrorIs(t, err, ErrInvalidID)
	})

	t.Run("round trips optional coordinates", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()
		ctx := context.Background()

		r := sampleRecord("s-1", "Harbour")
		r.Lat = Coord(-6.2)
		r.Lon = Coord(106.8)
		_, err := store.Put(ctx, r)
		require.NoError(t, err)
		_, err = store.Put(ctx, sampleRecord("s-2", "Nowhere"))
		require.NoError(t, err)

		got, err := store.Get(ctx, "s-1")
		require.NoError(t, err)
		require.True(t, got.HasLocation())
		assert.InDelta(t, -6.2, *got.Lat, 1e-9)
		assert.InDelta(t, 106.8, *got.Lon, 1e-9)

		got, err = store.Get(ctx, "s-2")
		require.NoError(t, err)
		assert.False(t, got.HasLocation())
	})
}

func runPutAllTests(t *testing.T, newStore func() (Store, func())) {
	t.Run("preserves favorites per record", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()
		ctx := context.Background()

		fav := sampleRecord("1", "A")
		fav.IsFavorite = true
		_, err := store.Put(ctx, fav)
		require.NoError(t, err)

		stored, err := store.PutAll(ctx, []Record{sampleRecord("1", "A"), sampleRecord("2", "B")})
		require.NoError(t, err)
		require.Len(t, stored, 2)
		assert.True(t, stored[0].IsFavorite)
		assert.False(t, stored[1].IsFavorite)

		one, err := store.Get(ctx, "1")
		require.NoError(t, err)
		assert.True(t, one.IsFavorite)

		two, err := store.Get(ctx, "2")
		require.NoError(t, err)
		assert.False(t, two.IsFavorite)
	})

	t.Run("is all or nothing", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()
		ctx := context.Background()

		_, err := store.Put(ctx, sampleRecord("keep", "Existing"))
		require.NoError(t, err)

		_, err = store.PutAll(ctx, []Record{
			sampleRecord("a", "A"),
			{Name: "broken"},
			sampleRecord("c", "C"),
		})
		require.Error(t, err)

		all, err := store.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, "keep", all[0].ID)
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()

		stored, err := store.PutAll(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, stored)
	})

	t.Run("last write wins per key", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()
		ctx := context.Background()

		_, err := store.PutAll(ctx, []Record{sampleRecord("1", "first"), sampleRecord("1", "second")})
		require.NoError(t, err)

		count, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		got, err := store.Get(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, "second", got.Name)
	})
}

func runGetTests(t *testing.T, newStore func() (Store, func())) {
	t.Run("missing record", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()

		_, err := store.Get(context.Background(), "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("GetAll keeps storage order across updates", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()
		ctx := context.Background()

		for _, id := range []string{"c", "a", "b"} {
			_, err := store.Put(ctx, sampleRecord(id, id))
			require.NoError(t, err)
		}
		_, err := store.Put(ctx, sampleRecord("c", "c again"))
		require.NoError(t, err)

		all, err := store.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "c", all[0].ID)
		assert.Equal(t, "a", all[1].ID)
		assert.Equal(t, "b", all[2].ID)
	})

	t.Run("GetAll on empty store", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()

		all, err := store.GetAll(context.Background())
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}

func runDeleteTests(t *testing.T, newStore func() (Store, func())) {
	t.Run("removes record", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()
		ctx := context.Background()

		_, err := store.Put(ctx, sampleRecord("s-1", "Sunrise"))
		require.NoError(t, err)
		require.NoError(t, store.Delete(ctx, "s-1"))

		_, err = store.Get(ctx, "s-1")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("missing record is not an error", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()

		assert.NoError(t, store.Delete(context.Background(), "ghost"))
	})
}

func runFavoriteTests(t *testing.T, newStore func() (Store, func())) {
	t.Run("toggle twice restores original", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()
		ctx := context.Background()

		_, err := store.Put(ctx, sampleRecord("s-1", "Sunrise"))
		require.NoError(t, err)

		v, err := store.ToggleFavorite(ctx, "s-1")
		require.NoError(t, err)
		assert.True(t, v)

		v, err = store.ToggleFavorite(ctx, "s-1")
		require.NoError(t, err)
		assert.False(t, v)

		got, err := store.Get(ctx, "s-1")
		require.NoError(t, err)
		assert.False(t, got.IsFavorite)
	})

	t.Run("toggle missing record", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()

		_, err := store.ToggleFavorite(context.Background(), "ghost")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("set favorite", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()
		ctx := context.Background()

		_, err := store.Put(ctx, sampleRecord("s-1", "Sunrise"))
		require.NoError(t, err)
		require.NoError(t, store.SetFavorite(ctx, "s-1", true))

		got, err := store.Get(ctx, "s-1")
		require.NoError(t, err)
		assert.True(t, got.IsFavorite)

		assert.ErrorIs(t, store.SetFavorite(ctx, "ghost", true), ErrNotFound)
	})
}

func runClearTests(t *testing.T, newStore func() (Store, func())) {
	t.Run("removes everything", func(t *testing.T) {
		store, cleanup := newStore()
		defer cleanup()
		ctx := context.Background()

		_, err := store.PutAll(ctx, []Record{sampleRecord("1", "A"), sampleRecord("2", "B")})
		require.NoError(t, err)
		require.NoError(t, store.Clear(ctx))

		count, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
	})
}

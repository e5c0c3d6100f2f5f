package piano

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/salimbaigadam-droid/Piano128keys/core/actor"
	"github.com/salimbaigadam-droid/Piano128keys/core/cache"
	"github.com/salimbaigadam-droid/Piano128keys/ports/store"
)

func newTestStoreActor(t *testing.T, cfg StoreConfig) *actor.BaseActor {
	if cfg.Context == nil {
		cfg.Context = t.Context()
	}
	return NewStoreActor(cfg)
}

func memConnect(mem *store.MemStore) func(ctx context.Context) (store.Store, error) {
	return func(ctx context.Context) (store.Store, error) { return mem, nil }
}

func TestStoreActor_disconnected(t *testing.T) {
	a := newTestStoreActor(t, StoreConfig{}) // no Connect configured

	_, err := actor.Request[GetUserNotesRequest, UserNotesResult](t.Context(), a, GetUserNotesRequest{UserID: "u1"})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrStoreUnavailable)

	// A disconnected store is a handler failure, not a transport failure:
	// the message was delivered and processed.
	require.True(t, actor.IsHandlerError(err))
	require.False(t, actor.IsTransportError(err))

	_, err = actor.Request[SaveSongRequest, SongSavedResult](t.Context(), a, SaveSongRequest{UserID: "u1", SongName: "x"})
	require.ErrorIs(t, err, ErrStoreUnavailable)

	err = actor.Publish(t.Context(), a, RecordNoteRequest{UserID: "u1", KeyNumber: 60})
	require.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestStoreActor_connect_failure_stays_degraded(t *testing.T) {
	a := newTestStoreActor(t, StoreConfig{
		Connect: func(ctx context.Context) (store.Store, error) {
			return nil, errors.New("refused")
		},
	})

	// No retry: every request keeps failing with StoreUnavailable.
	for range 3 {
		_, err := actor.Request[GetUserNotesRequest, UserNotesResult](t.Context(), a, GetUserNotesRequest{UserID: "u1"})
		require.ErrorIs(t, err, ErrStoreUnavailable)
	}
}

func TestStoreActor_record_and_query(t *testing.T) {
	mem := store.NewMemStore()
	a := newTestStoreActor(t, StoreConfig{Connect: memConnect(mem)})

	for i := range 5 {
		require.NoError(t, actor.Publish(t.Context(), a, RecordNoteRequest{
			UserID:    "u1",
			KeyNumber: 60 + i,
			Velocity:  0.8,
			Timestamp: int64(1000 + i),
		}))
	}

	res, err := actor.Request[GetUserNotesRequest, UserNotesResult](t.Context(), a, GetUserNotesRequest{UserID: "u1", Limit: 3})
	require.NoError(t, err)
	require.Equal(t, "u1", res.UserID)
	require.Len(t, res.Notes, 3)
	require.Equal(t, 64, res.Notes[0].KeyNumber) // newest first

	// Unknown user: empty result, not an error.
	res, err = actor.Request[GetUserNotesRequest, UserNotesResult](t.Context(), a, GetUserNotesRequest{UserID: "nobody"})
	require.NoError(t, err)
	require.Empty(t, res.Notes)
}

func TestStoreActor_save_song(t *testing.T) {
	mem := store.NewMemStore()
	a := newTestStoreActor(t, StoreConfig{Connect: memConnect(mem)})

	res, err := actor.Request[SaveSongRequest, SongSavedResult](t.Context(), a, SaveSongRequest{
		UserID:   "u1",
		SongName: "ode",
		Notes:    []int{64, 64, 65, 67},
	})
	require.NoError(t, err)
	require.True(t, res.Saved)
	require.Positive(t, res.SongID)

	res2, err := actor.Request[SaveSongRequest, SongSavedResult](t.Context(), a, SaveSongRequest{
		UserID:   "u1",
		SongName: "scale",
		Notes:    []int{60, 62},
	})
	require.NoError(t, err)
	require.Greater(t, res2.SongID, res.SongID)

	song, err := mem.Song("u1", res.SongID)
	require.NoError(t, err)
	require.Equal(t, "ode", song.Name)
}

func TestStoreActor_query_cache_invalidation(t *testing.T) {
	mem := store.NewMemStore()
	lru := cache.NewLRU(cache.LRUOpts{Size: 16})
	defer lru.Close()

	a := newTestStoreActor(t, StoreConfig{
		Connect:    memConnect(mem),
		QueryCache: lru,
	})

	require.NoError(t, actor.Publish(t.Context(), a, RecordNoteRequest{UserID: "u1", KeyNumber: 60}))

	res, err := actor.Request[GetUserNotesRequest, UserNotesResult](t.Context(), a, GetUserNotesRequest{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, res.Notes, 1)

	// A new note must show up despite the cache.
	require.NoError(t, actor.Publish(t.Context(), a, RecordNoteRequest{UserID: "u1", KeyNumber: 72}))

	res, err = actor.Request[GetUserNotesRequest, UserNotesResult](t.Context(), a, GetUserNotesRequest{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, res.Notes, 2)
	require.Equal(t, 72, res.Notes[0].KeyNumber)
}

func TestStoreActor_limit_defaults(t *testing.T) {
	mem := store.NewMemStore()
	a := newTestStoreActor(t, StoreConfig{Connect: memConnect(mem)})

	for i := range defaultNotesLimit + 10 {
		require.NoError(t, actor.Publish(t.Context(), a, RecordNoteRequest{UserID: "u1", KeyNumber: i % 128}))
	}

	// Limit <= 0 falls back to the default.
	res, err := actor.Request[GetUserNotesRequest, UserNotesResult](t.Context(), a, GetUserNotesRequest{UserID: "u1", Limit: 0})
	require.NoError(t, err)
	require.Len(t, res.Notes, defaultNotesLimit)

	res, err = actor.Request[GetUserNotesRequest, UserNotesResult](t.Context(), a, GetUserNotesRequest{UserID: "u1", Limit: -5})
	require.NoError(t, err)
	require.Len(t, res.Notes, defaultNotesLimit)
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/salimbaigadam-droid/Piano128keys/core/actor"
	"github.com/salimbaigadam-droid/Piano128keys/core/pool"
	"github.com/salimbaigadam-droid/Piano128keys/internal/ratelimiter"
	"github.com/salimbaigadam-droid/Piano128keys/piano"
	"github.com/salimbaigadam-droid/Piano128keys/ports/store"
)

type testEnv struct {
	server *Server
	pool   *pool.Manager
	mem    *store.MemStore
}

func newTestEnv(t *testing.T, opts ...func(*Config)) *testEnv {
	t.Helper()
	mem := store.NewMemStore()

	p, err := pool.New(pool.Config{
		Workers: 2,
		NewWorker: func(id int) *actor.BaseActor {
			return piano.NewProcessor(piano.ProcessorConfig{
				ID:        id,
				WorkDelay: -1,
				Context:   t.Context(),
			})
		},
		NewStore: func() *actor.BaseActor {
			return piano.NewStoreActor(piano.StoreConfig{
				Connect: func(ctx context.Context) (store.Store, error) { return mem, nil },
				Context: t.Context(),
			})
		},
	})
	require.NoError(t, err)
	t.Cleanup(p.Stop)

	cfg := Config{Pool: p}
	for _, o := range opts {
		o(&cfg)
	}
	return &testEnv{server: New(cfg), pool: p, mem: mem}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, r)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestServer_process_note(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/process-note", `{"user_id":"u1","key_number":69}`)
	require.Equal(t, http.StatusOK, w.Code)

	res := decodeBody[noteResponse](t, w)
	require.Equal(t, 69, res.KeyNumber)
	require.True(t, res.Processed)
	require.Equal(t, 2, res.PoolSize)
}

func TestServer_process_note_round_robin(t *testing.T) {
	env := newTestEnv(t)

	seen := map[int]int{}
	for range 4 {
		w := env.do(t, http.MethodPost, "/api/process-note", `{"user_id":"u1","key_number":60}`)
		require.Equal(t, http.StatusOK, w.Code)
		seen[decodeBody[noteResponse](t, w).WorkerID]++
	}
	require.Equal(t, map[int]int{0: 2, 1: 2}, seen)
}

func TestServer_process_note_bad_body(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/api/process-note", `{not json`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_save_song_and_notes(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/save-song", `{"user_id":"u1","song_name":"ode","notes":[64,64,65,67]}`)
	require.Equal(t, http.StatusOK, w.Code)
	saved := decodeBody[piano.SongSavedResult](t, w)
	require.True(t, saved.Saved)
	require.Positive(t, saved.SongID)

	w = env.do(t, http.MethodPost, "/api/save-song", `{"user_id":"u1"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	// Record a few notes directly through the store actor, then query.
	for i := range 3 {
		require.NoError(t, actor.Publish(t.Context(), env.pool.StoreActor(), piano.RecordNoteRequest{
			UserID:    "u1",
			KeyNumber: 60 + i,
		}))
	}

	w = env.do(t, http.MethodGet, "/api/notes/u1?limit=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	notes := decodeBody[piano.UserNotesResult](t, w)
	require.Equal(t, "u1", notes.UserID)
	require.Len(t, notes.Notes, 2)
	require.Equal(t, 62, notes.Notes[0].KeyNumber)

	w = env.do(t, http.MethodGet, "/api/notes/u1?limit=x", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_store_unavailable_is_503(t *testing.T) {
	p, err := pool.New(pool.Config{
		Workers: 1,
		NewWorker: func(id int) *actor.BaseActor {
			return piano.NewProcessor(piano.ProcessorConfig{ID: id, WorkDelay: -1, Context: t.Context()})
		},
		NewStore: func() *actor.BaseActor {
			// No Connect: the store actor stays disconnected.
			return piano.NewStoreActor(piano.StoreConfig{Context: t.Context()})
		},
	})
	require.NoError(t, err)
	t.Cleanup(p.Stop)

	env := &testEnv{server: New(Config{Pool: p}), pool: p}

	w := env.do(t, http.MethodGet, "/api/notes/u1", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = env.do(t, http.MethodPost, "/api/save-song", `{"user_id":"u1","song_name":"x"}`)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestServer_health(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	res := decodeBody[healthResponse](t, w)
	require.Equal(t, "healthy", res.Status)
	require.Equal(t, 2, res.ActiveWorkers)
	require.NotEmpty(t, res.Features)
}

func TestServer_rate_limited(t *testing.T) {
	env := newTestEnv(t, func(cfg *Config) {
		cfg.Limiter = ratelimiter.New(1, 2, time.Minute)
	})

	body := `{"user_id":"u1","key_number":60}`
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/process-note", body).Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/process-note", body).Code)
	require.Equal(t, http.StatusTooManyRequests, env.do(t, http.MethodPost, "/api/process-note", body).Code)

	// A different user is not affected.
	other := `{"user_id":"u2","key_number":60}`
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/process-note", other).Code)
}

func TestServer_subscribe_receives_events(t *testing.T) {
	broadcaster := NewBroadcaster(BroadcasterConfig{Context: t.Context()})
	t.Cleanup(broadcaster.Stop)

	env := newTestEnv(t, func(cfg *Config) {
		cfg.Broadcaster = broadcaster
	})

	ts := httptest.NewServer(env.server.Handler())
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/subscribe"
	ws, err := websocket.Dial(wsURL, "", ts.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })

	// Subscription races the first note; wait until the broadcaster has
	// processed the subscribe message by round-tripping a no-op event.
	require.Eventually(t, func() bool {
		resp, err := http.Post(ts.URL+"/api/process-note", "application/json",
			strings.NewReader(`{"user_id":"u1","key_number":69,"timestamp":123}`))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var ev piano.NoteEvent
		_ = ws.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		if err := websocket.JSON.Receive(ws, &ev); err != nil {
			return false
		}
		require.Equal(t, 69, ev.KeyNumber)
		require.Equal(t, int64(123), ev.Timestamp)
		return true
	}, 5*time.Second, 50*time.Millisecond)
}

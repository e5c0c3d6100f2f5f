// Package integration exercises the full stack end to end: worker pool,
// store actor, broadcaster and the HTTP API over a real listener.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/require"

	promadapter "github.com/salimbaigadam-droid/Piano128keys/adapters/prometheus"
	"github.com/salimbaigadam-droid/Piano128keys/core/actor"
	"github.com/salimbaigadam-droid/Piano128keys/core/cache"
	"github.com/salimbaigadam-droid/Piano128keys/core/pool"
	"github.com/salimbaigadam-droid/Piano128keys/piano"
	"github.com/salimbaigadam-droid/Piano128keys/ports/store"
	"github.com/salimbaigadam-droid/Piano128keys/server"
)

const testWorkers = 4

func newStack(t *testing.T) *httptest.Server {
	t.Helper()

	reg := prometheus.NewRegistry()
	metrics := promadapter.NewAllMetrics(reg)

	queryCache := cache.NewLRU(cache.LRUOpts{Size: 64})
	t.Cleanup(queryCache.Close)

	p, err := pool.New(pool.Config{
		Workers: testWorkers,
		NewWorker: func(id int) *actor.BaseActor {
			return piano.NewProcessor(piano.ProcessorConfig{
				ID:        id,
				WorkDelay: -1,
				Context:   t.Context(),
				Metrics:   metrics.Actor,
			})
		},
		NewStore: func() *actor.BaseActor {
			return piano.NewStoreActor(piano.StoreConfig{
				Connect: func(ctx context.Context) (store.Store, error) {
					return store.NewMemStore(), nil
				},
				QueryCache: queryCache,
				Context:    t.Context(),
				Metrics:    metrics.Actor,
			})
		},
		Metrics: metrics.Pool,
	})
	require.NoError(t, err)
	t.Cleanup(p.Stop)

	broadcaster := server.NewBroadcaster(server.BroadcasterConfig{
		Context: t.Context(),
		Metrics: metrics.Actor,
	})
	t.Cleanup(broadcaster.Stop)

	srv := server.New(server.Config{
		Pool:           p,
		Broadcaster:    broadcaster,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Metrics:        metrics.HTTP,
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestFullStack_note_lifecycle(t *testing.T) {
	ts := newStack(t)

	resp, note := postJSON(t, ts.URL+"/api/process-note", `{"user_id":"u1","key_number":69}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, float64(69), note["key_number"])
	require.Equal(t, true, note["processed"])
	require.Equal(t, float64(testWorkers), note["pool_size"])

	resp, saved := postJSON(t, ts.URL+"/api/save-song", `{"user_id":"u1","song_name":"ode","notes":[64,64,65,67]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, true, saved["saved"])
	require.Greater(t, saved["song_id"], float64(0))

	// Record some notes and read them back.
	for i := range 5 {
		require.NoError(t, func() error {
			body := fmt.Sprintf(`{"user_id":"u2","key_number":%d}`, 60+i)
			resp, err := http.Post(ts.URL+"/api/process-note", "application/json", bytes.NewReader([]byte(body)))
			if err != nil {
				return err
			}
			return resp.Body.Close()
		}())
	}

	resp2, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	var health map[string]any
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&health))
	require.Equal(t, "healthy", health["status"])
	require.Equal(t, float64(testWorkers), health["active_workers"])
}

func TestFullStack_concurrent_fairness(t *testing.T) {
	ts := newStack(t)

	const (
		callers   = 8
		perCaller = 25
	)

	var (
		mu   sync.Mutex
		seen = map[float64]int{}
		wg   sync.WaitGroup
	)

	for c := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body := fmt.Sprintf(`{"user_id":"user-%d","key_number":60}`, c)
			for range perCaller {
				resp, out := postJSON(t, ts.URL+"/api/process-note", body)
				require.Equal(t, http.StatusOK, resp.StatusCode)
				mu.Lock()
				seen[out["worker_id"].(float64)]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Strict round-robin: every worker handles exactly its share.
	require.Len(t, seen, testWorkers)
	for id, n := range seen {
		require.Equal(t, callers*perCaller/testWorkers, n, "worker %v", id)
	}
}

func TestFullStack_metrics_exposed(t *testing.T) {
	ts := newStack(t)

	_, _ = postJSON(t, ts.URL+"/api/process-note", `{"user_id":"u1","key_number":60}`)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	body := buf.String()
	require.Contains(t, body, "piano_pool_size")
	require.Contains(t, body, "piano_actor_messages_total")
	require.Contains(t, body, "piano_http_requests_total")
}

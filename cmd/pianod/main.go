// Command pianod runs the concurrent piano note-processing service: a
// round-robin pool of note-worker actors plus one store actor, exposed over
// HTTP with Prometheus metrics and an optional NATS-backed store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	natsadapter "github.com/salimbaigadam-droid/Piano128keys/adapters/nats"
	promadapter "github.com/salimbaigadam-droid/Piano128keys/adapters/prometheus"
	"github.com/salimbaigadam-droid/Piano128keys/config"
	"github.com/salimbaigadam-droid/Piano128keys/core/actor"
	"github.com/salimbaigadam-droid/Piano128keys/core/cache"
	"github.com/salimbaigadam-droid/Piano128keys/core/pool"
	"github.com/salimbaigadam-droid/Piano128keys/internal/ratelimiter"
	"github.com/salimbaigadam-droid/Piano128keys/piano"
	"github.com/salimbaigadam-droid/Piano128keys/ports/store"
	"github.com/salimbaigadam-droid/Piano128keys/server"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, level := newLogger(cfg.Log)
	slog.SetDefault(log)

	// Hot-reload: log level follows the config file while running.
	if *configPath != "" {
		w, err := config.NewWatcher(*configPath, log)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		w.OnChange(func(old, next *config.Config) {
			level.Set(parseLevel(next.Log.Level))
		})
		if err := w.Start(ctx); err != nil {
			log.Warn("config watcher disabled", slog.Any("error", err))
		}
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error("pianod failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newLogger(cfg config.LogConfig) (*slog.Logger, *slog.LevelVar) {
	level := new(slog.LevelVar)
	level.Set(parseLevel(cfg.Level))
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts)), level
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts)), level
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := promadapter.NewAllMetrics(reg)

	connectStore := storeConnector(cfg.Store, log)

	queryCache := cache.NewLRU(cache.LRUOpts{Size: cfg.Store.CacheSize})
	defer queryCache.Close()

	p, err := pool.New(pool.Config{
		Workers: cfg.Pool.Workers,
		NewWorker: func(id int) *actor.BaseActor {
			return piano.NewProcessor(piano.ProcessorConfig{
				ID:          id,
				MailboxSize: cfg.Pool.MailboxSize,
				Context:     ctx,
				Logger:      log,
				Metrics:     metrics.Actor,
			})
		},
		NewStore: func() *actor.BaseActor {
			return piano.NewStoreActor(piano.StoreConfig{
				Connect:     connectStore,
				QueryCache:  queryCache,
				CacheTTL:    cfg.Store.CacheTTL,
				MailboxSize: cfg.Pool.MailboxSize,
				Context:     ctx,
				Logger:      log,
				Metrics:     metrics.Actor,
			})
		},
		Log:     log,
		Metrics: metrics.Pool,
	})
	if err != nil {
		return err
	}
	defer p.Stop()

	broadcaster := server.NewBroadcaster(server.BroadcasterConfig{
		Context: ctx,
		Logger:  log,
		Metrics: metrics.Actor,
	})
	defer broadcaster.Stop()

	srv := server.New(server.Config{
		Pool:           p,
		Broadcaster:    broadcaster,
		Limiter:        ratelimiter.New(cfg.Rate.RPS, cfg.Rate.Burst, cfg.Rate.IdleTTL),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Log:            log,
		Metrics:        metrics.HTTP,
	})

	httpSrv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", slog.String("addr", cfg.Server.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// storeConnector picks the backing store: NATS JetStream when configured,
// otherwise in-memory.
func storeConnector(cfg config.StoreConfig, log *slog.Logger) func(ctx context.Context) (store.Store, error) {
	if cfg.NatsURL == "" {
		log.Info("using in-memory store")
		return func(ctx context.Context) (store.Store, error) {
			return store.NewMemStore(), nil
		}
	}
	return func(ctx context.Context) (store.Store, error) {
		log.Info("connecting to NATS store", slog.String("url", cfg.NatsURL))
		return natsadapter.NewStore(ctx, natsadapter.StoreConfig{
			Connect: natsadapter.ConnectURL(cfg.NatsURL),
			Bucket:  cfg.Bucket,
			Log:     log,
		})
	}
}

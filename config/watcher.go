package config

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeFunc is invoked with the old and the freshly loaded configuration
// after a successful reload.
type ChangeFunc func(old, next *Config)

// Watcher reloads the configuration file on change. Reloads that fail to
// parse or validate are logged and dropped; the last good configuration
// stays in effect.
type Watcher struct {
	path string
	log  *slog.Logger
	fsw  *fsnotify.Watcher

	mu       sync.RWMutex
	current  *Config
	onChange []ChangeFunc
}

// NewWatcher loads the file once and prepares watching. Call Start to
// begin receiving updates.
func NewWatcher(path string, log *slog.Logger) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{
		path:    path,
		log:     log.With("component", "config-watcher", "path", path),
		fsw:     fsw,
		current: cfg,
	}, nil
}

// Current returns the last successfully loaded configuration.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnChange registers a callback. Must be called before Start.
func (w *Watcher) OnChange(fn ChangeFunc) {
	w.onChange = append(w.onChange, fn)
}

// Start watches the file until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.fsw.Add(w.path); err != nil {
		return fmt.Errorf("watch %s: %w", w.path, err)
	}
	go w.loop(ctx)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.fsw.Close()

	// Editors often produce bursts of events for one save.
	var debounce *time.Timer
	const debounceFor = 250 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceFor, w.reload)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	next, err := Load(w.path)
	if err != nil {
		w.log.Warn("config reload rejected", "error", err)
		return
	}

	w.mu.Lock()
	old := w.current
	w.current = next
	w.mu.Unlock()

	w.log.Info("config reloaded")
	for _, fn := range w.onChange {
		fn(old, next)
	}
}

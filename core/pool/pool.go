// Package pool manages a fixed set of homogeneous worker actors plus one
// distinguished store actor, dispatching work across the workers in strict
// round-robin order.
//
// The pool is built once at startup and never resizes. The dispatch cursor
// is the only piece of state shared across callers; it advances with a
// single atomic operation, so concurrent dispatchers never observe the same
// pre-advance position.
package pool

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/salimbaigadam-droid/Piano128keys/core/actor"
)

// ErrInvalidPoolSize is returned when a pool is constructed with a
// non-positive worker count.
var ErrInvalidPoolSize = errors.New("pool size must be positive")

// Config holds the construction parameters for a Manager.
type Config struct {
	// Workers is the number of worker actors. Must be positive.
	Workers int

	// NewWorker builds the worker actor with the given immutable id
	// (0..Workers-1).
	NewWorker func(id int) *actor.BaseActor

	// NewStore builds the single store actor.
	NewStore func() *actor.BaseActor

	Log     *slog.Logger
	Metrics Metrics
}

// Manager owns the worker set and the store actor singleton.
type Manager struct {
	workers []*actor.BaseActor
	store   *actor.BaseActor
	cursor  atomic.Uint64
	log     *slog.Logger
	metrics Metrics
}

// New constructs the pool: cfg.Workers worker actors with ids
// 0..Workers-1, one store actor, and the dispatch cursor at 0.
func New(cfg Config) (*Manager, error) {
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPoolSize, cfg.Workers)
	}
	if cfg.NewWorker == nil {
		return nil, errors.New("pool: NewWorker is required")
	}
	if cfg.NewStore == nil {
		return nil, errors.New("pool: NewStore is required")
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NopMetrics()
	}

	m := &Manager{
		workers: make([]*actor.BaseActor, cfg.Workers),
		log:     cfg.Log,
		metrics: cfg.Metrics,
	}
	for i := range cfg.Workers {
		m.workers[i] = cfg.NewWorker(i)
	}
	m.store = cfg.NewStore()

	m.metrics.PoolSize(cfg.Workers)
	m.log.Info("worker pool ready", slog.Int("workers", cfg.Workers))

	return m, nil
}

// NextWorker returns the worker at the current cursor and advances the
// cursor by one, wrapping at the pool size. Safe for concurrent use.
func (m *Manager) NextWorker() *actor.BaseActor {
	idx := int((m.cursor.Add(1) - 1) % uint64(len(m.workers)))
	m.metrics.WorkerSelected(idx)
	return m.workers[idx]
}

// StoreActor returns the store actor singleton. Pure accessor.
func (m *Manager) StoreActor() *actor.BaseActor { return m.store }

// Size returns the number of workers. Fixed at construction.
func (m *Manager) Size() int { return len(m.workers) }

// Worker returns the worker with the given id, for tests and diagnostics.
func (m *Manager) Worker(id int) (*actor.BaseActor, bool) {
	if id < 0 || id >= len(m.workers) {
		return nil, false
	}
	return m.workers[id], true
}

// Stop stops every worker and the store actor, waiting for each loop to
// exit. The pool must not be used afterwards.
func (m *Manager) Stop() {
	for _, w := range m.workers {
		w.Stop()
	}
	m.store.Stop()
	m.log.Info("worker pool stopped")
}

package actor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

type scheduleFunc func()

// Scheduler runs background tasks on behalf of an actor, outside its
// mailbox loop. Task concurrency is capped; panics are contained.
type Scheduler interface {
	Schedule(f scheduleFunc)
	// Wait blocks until all in-flight tasks complete.
	Wait()
}

type scheduler struct {
	ctx      context.Context
	log      *slog.Logger
	inflight atomic.Int32
	sem      chan struct{}
	max      int

	wg sync.WaitGroup

	actorID string
	metrics ActorMetrics
}

func (s *scheduler) Schedule(f scheduleFunc) {
	select {
	case <-s.ctx.Done():
		return
	default:
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		if s.sem != nil {
			select {
			case <-s.ctx.Done():
				return
			case s.sem <- struct{}{}:
			}
			defer func() { <-s.sem }()
		}

		count := s.inflight.Add(1)
		s.metrics.SchedulerInflight(s.actorID, int(count))
		defer func() {
			count := s.inflight.Add(-1)
			s.metrics.SchedulerInflight(s.actorID, int(count))
		}()

		s.runTask(f)
	}()
}

func (s *scheduler) runTask(f scheduleFunc) {
	defer s.metrics.SchedulerTaskDuration().ObserveDuration()

	defer func() {
		if r := recover(); r != nil {
			s.metrics.SchedulerTaskCompleted(false)
			s.log.Error("scheduled task panicked", slog.Any("recovered", r))
		}
	}()

	f()
	s.metrics.SchedulerTaskCompleted(true)
}

func (s *scheduler) Wait() {
	s.wg.Wait()
}

// NewScheduler creates a scheduler that limits the number of concurrently
// running tasks to max. If max <= 0, concurrency is unlimited. The scheduler
// stops accepting tasks when ctx is cancelled.
func NewScheduler(ctx context.Context, max int) Scheduler {
	return newScheduler(ctx, max, slog.Default(), "", NopActorMetrics())
}

func newScheduler(ctx context.Context, max int, log *slog.Logger, actorID string, m ActorMetrics) Scheduler {
	var sem chan struct{}
	if max > 0 {
		sem = make(chan struct{}, max)
	}
	if m == nil {
		m = NopActorMetrics()
	}
	return &scheduler{
		ctx:     ctx,
		sem:     sem,
		max:     max,
		log:     log,
		actorID: actorID,
		metrics: m,
	}
}

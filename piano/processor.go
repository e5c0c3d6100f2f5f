package piano

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/salimbaigadam-droid/Piano128keys/core/actor"
)

const defaultWorkDelay = 100 * time.Microsecond

// ProcessorConfig configures one note-processor worker actor.
type ProcessorConfig struct {
	// ID is the worker's immutable identity, assigned by the pool.
	ID int

	// WorkDelay models the CPU-bound part of note processing. Defaults to
	// 100µs; negative disables it (tests).
	WorkDelay time.Duration

	MailboxSize int
	Context     context.Context
	Logger      *slog.Logger
	Metrics     actor.ActorMetrics
}

// processor is the worker's private state. It is touched only from inside
// the actor's own processing step.
type processor struct {
	id             int
	workDelay      time.Duration
	processedCount uint64
}

// NewProcessor creates and starts a note-processor worker actor.
func NewProcessor(cfg ProcessorConfig) *actor.BaseActor {
	delay := cfg.WorkDelay
	if delay == 0 {
		delay = defaultWorkDelay
	}
	if delay < 0 {
		delay = 0
	}

	p := &processor{id: cfg.ID, workDelay: delay}

	return actor.TypedHandlers(
		actor.HandleRequest[ProcessNoteRequest, NoteProcessedResult](p.handleProcessNote),
		actor.HandleRequest[WorkerStatsRequest, WorkerStats](p.handleStats),
	).ToActor(actor.Options{
		ID:          fmt.Sprintf("note-worker-%d", cfg.ID),
		MailboxSize: cfg.MailboxSize,
		Context:     cfg.Context,
		Logger:      cfg.Logger,
		Metrics:     cfg.Metrics,
	})
}

// handleProcessNote never fails: every delivered note yields a result.
func (p *processor) handleProcessNote(hc actor.HandlerCtx, req ProcessNoteRequest) (*NoteProcessedResult, error) {
	start := time.Now()

	if p.workDelay > 0 {
		time.Sleep(p.workDelay)
	}

	sinkFrequency(KeyFrequency(req.KeyNumber))

	p.processedCount++

	elapsed := time.Since(start).Microseconds()
	if elapsed < 0 {
		elapsed = 0
	}

	return &NoteProcessedResult{
		KeyNumber:        req.KeyNumber,
		Processed:        true,
		WorkerID:         p.id,
		ProcessingTimeUs: uint64(elapsed),
	}, nil
}

func (p *processor) handleStats(hc actor.HandlerCtx, _ WorkerStatsRequest) (*WorkerStats, error) {
	return &WorkerStats{WorkerID: p.id, ProcessedCount: p.processedCount}, nil
}

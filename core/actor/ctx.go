package actor

import (
	"context"
	"log/slog"
)

type (
	// HandlerCtx is passed to every message handler. It carries the actor's
	// base context, a scoped logger and the background-task scheduler, and
	// lets handler infrastructure (e.g. tickers) re-enter the mailbox.
	HandlerCtx interface {
		context.Context
		Log() *slog.Logger
		Schedule(f scheduleFunc)
		Request(ctx context.Context, msg any) (any, error)
	}
)

type handlerCtx struct {
	context.Context
	log     *slog.Logger
	request func(ctx context.Context, msg any) (any, error)
	sched   Scheduler
}

// Schedule runs f asynchronously on the actor's scheduler.
func (hc *handlerCtx) Schedule(f scheduleFunc) {
	hc.sched.Schedule(func() { f() })
}

func (hc *handlerCtx) Log() *slog.Logger { return hc.log }

// Request enqueues a message on the owning actor's own mailbox and waits
// for the reply. Calling it synchronously from inside a handler deadlocks;
// it is meant for goroutines started via Schedule or Init.
func (hc *handlerCtx) Request(ctx context.Context, msg any) (any, error) {
	return hc.request(ctx, msg)
}

var _ HandlerCtx = (*handlerCtx)(nil)

package actor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

type (
	// OnPanic is invoked when a message handler panics. The actor keeps
	// running; the panic is converted into a handler error for the caller.
	OnPanic func(recovered any, stack []byte, msgType string)

	// Actor is a reference to a running actor. Multiple references may
	// point at the same actor; the actor alone owns its state.
	Actor interface {
		// ID returns the actor's immutable identifier.
		ID() string
		// Send enqueues an envelope, blocking until it is accepted, ctx is
		// cancelled, or the actor stops.
		Send(ctx context.Context, msg Envelope) error
		// Done is closed when the actor's loop has exited.
		Done() <-chan struct{}
	}
)

// ---- control messages (internal) ----

type ctrlKind int

const (
	ctrlPause ctrlKind = iota
	ctrlResume
	ctrlEnableStep
	ctrlStep
	ctrlStop
)

type ctrlMsg struct {
	kind ctrlKind
}

// Options configures a new actor.
type Options struct {
	// ID identifies the actor in logs and metrics. Generated if empty.
	ID          string
	MailboxSize int
	ControlSize int
	Context     context.Context
	Logger      *slog.Logger
	Metrics     ActorMetrics
	OnPanic     OnPanic
	// MaxConcurrentTasks caps the number of tasks run via HandlerCtx.Schedule.
	// If 0, a default cap applies; negative means unlimited.
	MaxConcurrentTasks int
}

// BaseActor is the runtime behind every actor: one goroutine draining one
// mailbox, processing a single message to completion before the next.
type BaseActor struct {
	id  string
	ctx context.Context
	log *slog.Logger

	mailbox chan Envelope
	control chan ctrlMsg

	stop chan struct{}
	done chan struct{}

	mu     sync.Mutex
	closed bool

	metrics ActorMetrics
	onPanic OnPanic
}

// New creates and starts an actor running handler's message loop.
func New(opt Options, handler RawHandler) *BaseActor {
	if opt.ID == "" {
		opt.ID = fmt.Sprintf("actor-%s", gonanoid.Must(8))
	}
	if opt.MailboxSize == 0 {
		opt.MailboxSize = 1024
	}
	if opt.ControlSize == 0 {
		opt.ControlSize = 16
	}
	if opt.Context == nil {
		opt.Context = context.Background()
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	if opt.Metrics == nil {
		opt.Metrics = NopActorMetrics()
	}
	if opt.MaxConcurrentTasks == 0 {
		opt.MaxConcurrentTasks = 32
	}

	log := opt.Logger.With(slog.String("actor", opt.ID))

	a := &BaseActor{
		id:      opt.ID,
		ctx:     opt.Context,
		log:     log,
		mailbox: make(chan Envelope, opt.MailboxSize),
		control: make(chan ctrlMsg, opt.ControlSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		metrics: opt.Metrics,
		onPanic: opt.OnPanic,
	}
	if a.onPanic == nil {
		a.onPanic = func(recovered any, stack []byte, msgType string) {
			log.Error("actor panicked",
				slog.Any("recovered", recovered),
				slog.String("msg_type", msgType),
				slog.String("stack", string(stack)),
			)
		}
	}

	hCtx := &handlerCtx{
		Context: opt.Context,
		log:     log,
		request: func(ctx context.Context, req any) (any, error) {
			data, err := json.Marshal(req)
			if err != nil {
				return nil, err
			}
			return RawRequest(ctx, a, msgTypeOf(req), data)
		},
		sched: newScheduler(opt.Context, opt.MaxConcurrentTasks, log, opt.ID, opt.Metrics),
	}

	go a.loop(hCtx, handler)
	return a
}

// ID returns the actor's identifier.
func (a *BaseActor) ID() string { return a.id }

// Done is closed when the actor stops.
func (a *BaseActor) Done() <-chan struct{} { return a.done }

// Stop requests shutdown and waits for the loop to exit. Idempotent.
func (a *BaseActor) Stop() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		<-a.done
		return
	}
	a.closed = true
	a.mu.Unlock()

	// Tell the loop to stop; close stop to unblock pending sends either way.
	select {
	case a.control <- ctrlMsg{kind: ctrlStop}:
	default:
	}
	close(a.stop)
	<-a.done
}

// Send enqueues an envelope (blocking until enqueued, ctx canceled, or the
// actor stopped). A send on a stopped actor fails with ErrMailboxClosed.
func (a *BaseActor) Send(ctx context.Context, e Envelope) error {
	if a.isClosed() {
		return ErrMailboxClosed
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("send failed: %w", ctx.Err())
	case <-a.stop:
		return ErrMailboxClosed
	case a.mailbox <- e:
		return nil
	}
}

// TrySend attempts a non-blocking enqueue.
func (a *BaseActor) TrySend(e Envelope) bool {
	if a.isClosed() {
		return false
	}
	select {
	case <-a.stop:
		return false
	case a.mailbox <- e:
		return true
	default:
		return false
	}
}

// Pause prevents further processing until Resume or Step.
func (a *BaseActor) Pause() error { return a.sendCtrl(ctrlPause) }

// Resume enables continuous processing (disables step mode).
func (a *BaseActor) Resume() error { return a.sendCtrl(ctrlResume) }

// EnableStepMode makes the actor process only when Step() is called.
func (a *BaseActor) EnableStepMode() error { return a.sendCtrl(ctrlEnableStep) }

// Step permits exactly one message to be processed.
func (a *BaseActor) Step() error { return a.sendCtrl(ctrlStep) }

// ---- internals ----

func (a *BaseActor) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

func (a *BaseActor) sendCtrl(k ctrlKind) error {
	if a.isClosed() {
		return ErrMailboxClosed
	}
	select {
	case <-a.stop:
		return ErrMailboxClosed
	case a.control <- ctrlMsg{kind: k}:
		return nil
	}
}

func (a *BaseActor) loop(hc HandlerCtx, h RawHandler) {
	defer close(a.done)

	// execution state lives only in this goroutine
	paused := false
	stepMode := false
	permit := 1 // when >0, the actor may process one message; auto-renewed in run mode

	applyCtrl := func(c ctrlMsg) bool {
		switch c.kind {
		case ctrlStop:
			return false
		case ctrlPause:
			paused = true
			permit = 0
		case ctrlResume:
			paused = false
			stepMode = false
			if permit == 0 {
				permit = 1
			}
		case ctrlEnableStep:
			stepMode = true
			paused = true
			permit = 0
		case ctrlStep:
			permit++
		}
		return true
	}

	// drain all pending control messages (control has priority)
	drainControl := func() bool {
		for {
			select {
			case <-a.stop:
				return false
			case c := <-a.control:
				if !applyCtrl(c) {
					return false
				}
			default:
				return true
			}
		}
	}

	if err := h.InitHandler(hc); err != nil {
		a.log.Error("handler init failed", slog.Any("error", err))
	}

	for {
		if ok := drainControl(); !ok {
			return
		}

		select {
		case <-hc.Done():
			return
		default:
		}

		// No permit: block until control says otherwise.
		if permit <= 0 {
			select {
			case <-a.stop:
				return
			case <-hc.Done():
				return
			case c := <-a.control:
				if !applyCtrl(c) {
					return
				}
			}
			continue
		}

		// With a permit, process exactly one message; control can preempt.
		var handled bool
		select {
		case <-a.stop:
			return
		case <-hc.Done():
			return
		case c := <-a.control:
			if !applyCtrl(c) {
				return
			}
		case msg := <-a.mailbox:
			permit--
			a.metrics.MailboxDepth(a.id, len(a.mailbox))
			a.handleOne(hc, h, msg)
			handled = true
		}

		// Auto-renew the permit in continuous mode.
		if handled && !paused && !stepMode {
			permit++
		}
	}
}

// handleOne runs a single handler invocation with crash containment and
// delivers the reply, if one is expected.
func (a *BaseActor) handleOne(hc HandlerCtx, h RawHandler, msg Envelope) {
	timer := a.metrics.MessageDuration(msg.Type)
	res, err := a.safeHandle(hc, h, msg)
	timer.ObserveDuration()
	a.metrics.MessageProcessed(msg.Type, err == nil)

	if msg.Reply != nil {
		// Reply channels are buffered; never block the loop on a caller.
		select {
		case msg.Reply <- Reply{Result: res, Error: err}:
		default:
		}
	}
}

func (a *BaseActor) safeHandle(hc HandlerCtx, h RawHandler, msg Envelope) (res any, err error) {
	defer func() {
		if r := recover(); r != nil {
			a.metrics.MessagePanic(msg.Type)
			a.onPanic(r, debug.Stack(), msg.Type)
			res = nil
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h.HandleMessage(hc, msg.Type, msg.Data)
}

var _ Actor = (*BaseActor)(nil)

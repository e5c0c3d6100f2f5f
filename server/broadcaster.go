package server

import (
	"context"
	"log/slog"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/net/websocket"

	"github.com/salimbaigadam-droid/Piano128keys/core/actor"
	"github.com/salimbaigadam-droid/Piano128keys/piano"
)

type subscribeMsg struct {
	ID string `json:"id"`
}

type unsubscribeMsg struct {
	ID string `json:"id"`
}

// Broadcaster fans processed-note events out to websocket subscribers.
// Subscription and broadcast both go through a single actor, so the
// subscriber set needs no locking; connections are handed over through an
// id-keyed side table because they cannot travel inside a message.
type Broadcaster struct {
	act     *actor.BaseActor
	log     *slog.Logger
	pending sync.Map // sub id -> *websocket.Conn, until the actor picks it up
	subs    map[string]*websocket.Conn
}

// BroadcasterConfig configures the broadcaster actor.
type BroadcasterConfig struct {
	Context context.Context
	Logger  *slog.Logger
	Metrics actor.ActorMetrics
}

// NewBroadcaster creates and starts the broadcaster.
func NewBroadcaster(cfg BroadcasterConfig) *Broadcaster {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	b := &Broadcaster{
		log:  log.With("component", "broadcaster"),
		subs: make(map[string]*websocket.Conn),
	}
	b.act = actor.TypedHandlers(
		actor.HandleMsg[subscribeMsg](b.handleSubscribe),
		actor.HandleMsg[unsubscribeMsg](b.handleUnsubscribe),
		actor.HandleMsg[piano.NoteEvent](b.handleNote),
	).ToActor(actor.Options{
		ID:      "broadcaster",
		Context: cfg.Context,
		Logger:  cfg.Logger,
		Metrics: cfg.Metrics,
	})
	return b
}

// Subscribe registers a connection and returns its subscription id.
func (b *Broadcaster) Subscribe(ctx context.Context, conn *websocket.Conn) (string, error) {
	id := gonanoid.Must(8)
	b.pending.Store(id, conn)
	if err := actor.Publish(ctx, b.act, subscribeMsg{ID: id}); err != nil {
		b.pending.Delete(id)
		return "", err
	}
	return id, nil
}

// Unsubscribe removes a subscriber. The connection is not closed; that is
// the caller's job.
func (b *Broadcaster) Unsubscribe(ctx context.Context, id string) error {
	return actor.Publish(ctx, b.act, unsubscribeMsg{ID: id})
}

// Broadcast delivers one event to all subscribers.
func (b *Broadcaster) Broadcast(ctx context.Context, ev piano.NoteEvent) error {
	return actor.Publish(ctx, b.act, ev)
}

// Stop stops the broadcaster actor.
func (b *Broadcaster) Stop() {
	b.act.Stop()
}

func (b *Broadcaster) handleSubscribe(hc actor.HandlerCtx, msg subscribeMsg) error {
	conn, ok := b.pending.LoadAndDelete(msg.ID)
	if !ok {
		return nil
	}
	b.subs[msg.ID] = conn.(*websocket.Conn)
	hc.Log().Debug("subscriber added", "sub_id", msg.ID, "subscribers", len(b.subs))
	return nil
}

func (b *Broadcaster) handleUnsubscribe(hc actor.HandlerCtx, msg unsubscribeMsg) error {
	delete(b.subs, msg.ID)
	hc.Log().Debug("subscriber removed", "sub_id", msg.ID, "subscribers", len(b.subs))
	return nil
}

func (b *Broadcaster) handleNote(hc actor.HandlerCtx, ev piano.NoteEvent) error {
	for id, conn := range b.subs {
		if err := websocket.JSON.Send(conn, ev); err != nil {
			hc.Log().Debug("dropping dead subscriber", "sub_id", id, "error", err)
			delete(b.subs, id)
			_ = conn.Close()
		}
	}
	return nil
}

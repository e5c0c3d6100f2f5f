package piano

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/salimbaigadam-droid/Piano128keys/core/actor"
	"github.com/salimbaigadam-droid/Piano128keys/core/cache"
	"github.com/salimbaigadam-droid/Piano128keys/ports/store"
)

// ErrStoreUnavailable is returned by every store request while the store
// actor has no established connection. It is a handler failure: the
// message was delivered and processed.
var ErrStoreUnavailable = errors.New("store unavailable: no connection established")

const (
	defaultNotesLimit = 100
	maxNotesLimit     = 1000

	connectTimeout = 10 * time.Second
)

// StoreConfig configures the store actor.
type StoreConfig struct {
	// Connect establishes the single backing-store connection. It runs
	// once when the actor starts; if it fails (or is nil), the actor stays
	// disconnected and requests fail with ErrStoreUnavailable until the
	// process is restarted. There is no automatic retry.
	Connect func(ctx context.Context) (store.Store, error)

	// QueryCache, when set, fronts user-notes reads. Entries are dropped
	// whenever the user's notes change.
	QueryCache cache.Cache
	CacheTTL   time.Duration

	MailboxSize int
	Context     context.Context
	Logger      *slog.Logger
	Metrics     actor.ActorMetrics
}

// storeActor owns the exclusive store connection. Routing every operation
// through its mailbox is the only synchronization the connection needs.
type storeActor struct {
	conn     store.Store
	cache    cache.TypedCache[[]store.NoteRecord]
	cacheTTL time.Duration
	connect  func(ctx context.Context) (store.Store, error)
}

// NewStoreActor creates and starts the store actor.
func NewStoreActor(cfg StoreConfig) *actor.BaseActor {
	s := &storeActor{
		connect:  cfg.Connect,
		cacheTTL: cfg.CacheTTL,
	}
	if cfg.QueryCache != nil {
		s.cache = cache.NewTyped[[]store.NoteRecord](cfg.QueryCache)
	}

	return actor.TypedHandlers(
		actor.Init(s.handleInit),
		actor.HandleRequest[GetUserNotesRequest, UserNotesResult](s.handleGetUserNotes),
		actor.HandleMsg[RecordNoteRequest](s.handleRecordNote),
		actor.HandleRequest[SaveSongRequest, SongSavedResult](s.handleSaveSong),
	).ToActor(actor.Options{
		ID:          "store",
		MailboxSize: cfg.MailboxSize,
		Context:     cfg.Context,
		Logger:      cfg.Logger,
		Metrics:     cfg.Metrics,
	})
}

// handleInit runs once at activation. A failed connect leaves the actor in
// a degraded state on purpose; see ErrStoreUnavailable.
func (s *storeActor) handleInit(hc actor.HandlerCtx) error {
	if s.connect == nil {
		hc.Log().Warn("no store connect configured, store requests will fail")
		return nil
	}

	ctx, cancel := context.WithTimeout(hc, connectTimeout)
	defer cancel()

	conn, err := s.connect(ctx)
	if err != nil {
		hc.Log().Error("store connect failed, staying disconnected", slog.Any("error", err))
		return nil
	}

	s.conn = conn
	hc.Log().Info("store connected")
	return nil
}

func (s *storeActor) handleGetUserNotes(hc actor.HandlerCtx, req GetUserNotesRequest) (*UserNotesResult, error) {
	if s.conn == nil {
		return nil, ErrStoreUnavailable
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultNotesLimit
	}
	if limit > maxNotesLimit {
		limit = maxNotesLimit
	}

	records, ok := s.cachedNotes(req.UserID)
	if !ok {
		var err error
		records, err = s.conn.UserNotes(hc, req.UserID, maxNotesLimit)
		if err != nil {
			return nil, fmt.Errorf("user notes query: %w", err)
		}
		if s.cache != nil {
			s.cache.Put(req.UserID, records, cache.WithTTL(s.cacheTTL))
		}
	}

	if limit < len(records) {
		records = records[:limit]
	}

	notes := make([]NoteEvent, len(records))
	for i, r := range records {
		notes[i] = NoteEvent{KeyNumber: r.KeyNumber, Velocity: r.Velocity, Timestamp: r.Timestamp}
	}

	return &UserNotesResult{UserID: req.UserID, Notes: notes}, nil
}

func (s *storeActor) handleRecordNote(hc actor.HandlerCtx, req RecordNoteRequest) error {
	if s.conn == nil {
		return ErrStoreUnavailable
	}

	err := s.conn.AppendNote(hc, req.UserID, store.NoteRecord{
		KeyNumber: req.KeyNumber,
		Velocity:  req.Velocity,
		Timestamp: req.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("append note: %w", err)
	}

	if s.cache != nil {
		s.cache.Delete(req.UserID)
	}
	return nil
}

func (s *storeActor) handleSaveSong(hc actor.HandlerCtx, req SaveSongRequest) (*SongSavedResult, error) {
	if s.conn == nil {
		return nil, ErrStoreUnavailable
	}

	id, err := s.conn.SaveSong(hc, req.UserID, req.SongName, req.Notes)
	if err != nil {
		return nil, fmt.Errorf("save song: %w", err)
	}

	return &SongSavedResult{SongID: id, Saved: true}, nil
}

func (s *storeActor) cachedNotes(userID string) ([]store.NoteRecord, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(userID)
}

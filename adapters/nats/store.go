package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/salimbaigadam-droid/Piano128keys/ports/store"
)

const (
	defaultBucket = "piano-notes"

	// notesPerUserCap bounds the per-user note history kept in the
	// bucket. Old notes fall off the tail.
	notesPerUserCap = 1000
)

// StoreConfig configures the JetStream KV backed note store.
type StoreConfig struct {
	// Connect is used to create the underlying NATS connection. If nil,
	// ConnectDefault() is used.
	Connect Connector

	// Bucket is the KV bucket name (default "piano-notes").
	Bucket string

	// Log for diagnostics (optional).
	Log *slog.Logger
}

// Store keeps per-user note histories and saved songs in a JetStream KV
// bucket. It is not safe for concurrent use: note appends are
// read-modify-write and rely on the store actor serializing all access.
type Store struct {
	kv    jetstream.KeyValue
	close closeFunc
	log   *slog.Logger
}

var _ store.Store = (*Store)(nil)

// NewStore connects and creates (or opens) the bucket.
func NewStore(ctx context.Context, cfg StoreConfig) (*Store, error) {
	doConnect := cfg.Connect
	if doConnect == nil {
		doConnect = ConnectDefault()
	}
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = defaultBucket
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	nc, closeCon, err := doConnect()
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		closeCon()
		return nil, err
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:  bucket,
		Storage: jetstream.FileStorage,
	})
	if err != nil {
		closeCon()
		return nil, fmt.Errorf("open bucket %s: %w", bucket, err)
	}

	return &Store{
		kv:    kv,
		close: closeCon,
		log:   log.With("component", "nats-store", "bucket", bucket),
	}, nil
}

func notesKey(userID string) string { return "notes." + userID }

func songKey(id int64) string { return fmt.Sprintf("songs.%d", id) }

func (s *Store) AppendNote(ctx context.Context, userID string, n store.NoteRecord) error {
	notes, err := s.loadNotes(ctx, userID)
	if err != nil {
		return err
	}

	notes = append([]store.NoteRecord{n}, notes...)
	if len(notes) > notesPerUserCap {
		notes = notes[:notesPerUserCap]
	}

	data, err := json.Marshal(notes)
	if err != nil {
		return err
	}
	if _, err := s.kv.Put(ctx, notesKey(userID), data); err != nil {
		return fmt.Errorf("append note for %s: %w", userID, err)
	}
	return nil
}

func (s *Store) UserNotes(ctx context.Context, userID string, limit int) ([]store.NoteRecord, error) {
	notes, err := s.loadNotes(ctx, userID)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(notes) > limit {
		notes = notes[:limit]
	}
	return notes, nil
}

func (s *Store) SaveSong(ctx context.Context, userID, name string, notes []int) (int64, error) {
	// Each Put bumps the key's revision; the revision of the sequence
	// key is the next song id.
	rev, err := s.kv.Put(ctx, "song_seq", nil)
	if err != nil {
		return 0, fmt.Errorf("assign song id: %w", err)
	}
	id := int64(rev)

	data, err := json.Marshal(store.SongRecord{
		ID:     id,
		UserID: userID,
		Name:   name,
		Notes:  notes,
	})
	if err != nil {
		return 0, err
	}
	if _, err := s.kv.Put(ctx, songKey(id), data); err != nil {
		return 0, fmt.Errorf("save song for %s: %w", userID, err)
	}
	return id, nil
}

// Song loads a saved song by id.
func (s *Store) Song(ctx context.Context, id int64) (*store.SongRecord, error) {
	entry, err := s.kv.Get(ctx, songKey(id))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	var song store.SongRecord
	if err := json.Unmarshal(entry.Value(), &song); err != nil {
		return nil, err
	}
	return &song, nil
}

func (s *Store) loadNotes(ctx context.Context, userID string) ([]store.NoteRecord, error) {
	entry, err := s.kv.Get(ctx, notesKey(userID))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load notes for %s: %w", userID, err)
	}
	var notes []store.NoteRecord
	if err := json.Unmarshal(entry.Value(), &notes); err != nil {
		return nil, fmt.Errorf("decode notes for %s: %w", userID, err)
	}
	return notes, nil
}

func (s *Store) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}

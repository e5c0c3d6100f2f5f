// Package store defines the backing-store port for played notes and saved
// songs. Implementations are not required to be safe for concurrent use:
// all access is serialized through the store actor, which owns exactly one
// connection.
package store

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("not found")
)

// NoteRecord is one played note as persisted per user, newest first.
type NoteRecord struct {
	KeyNumber int     `json:"key_number"`
	Velocity  float64 `json:"velocity"`
	Timestamp int64   `json:"timestamp"`
}

// SongRecord is a saved song with its store-assigned id.
type SongRecord struct {
	ID     int64  `json:"id"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Notes  []int  `json:"notes"`
}

// Store is the single backing-store connection held by the store actor.
type Store interface {
	// AppendNote records a played note for the user.
	AppendNote(ctx context.Context, userID string, n NoteRecord) error

	// UserNotes returns up to limit of the user's most recent notes,
	// newest first. An unknown user yields an empty slice, not an error.
	UserNotes(ctx context.Context, userID string, limit int) ([]NoteRecord, error)

	// SaveSong persists a song for the user and returns a freshly
	// assigned song id.
	SaveSong(ctx context.Context, userID, name string, notes []int) (int64, error)

	Close() error
}

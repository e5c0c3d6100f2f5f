package store

import (
	"context"
	"sync"
)

// MemStore is an in-memory Store, used in tests and when no backing store
// is configured.
type MemStore struct {
	mu         sync.RWMutex
	notes      map[string][]NoteRecord // newest first
	songs      map[string][]SongRecord
	nextSongID int64
}

func NewMemStore() *MemStore {
	return &MemStore{
		notes: map[string][]NoteRecord{},
		songs: map[string][]SongRecord{},
	}
}

func (m *MemStore) AppendNote(_ context.Context, userID string, n NoteRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes[userID] = append([]NoteRecord{n}, m.notes[userID]...)
	return nil
}

func (m *MemStore) UserNotes(_ context.Context, userID string, limit int) ([]NoteRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	notes := m.notes[userID]
	if limit > 0 && limit < len(notes) {
		notes = notes[:limit]
	}
	out := make([]NoteRecord, len(notes))
	copy(out, notes)
	return out, nil
}

func (m *MemStore) SaveSong(_ context.Context, userID, name string, notes []int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextSongID++
	song := SongRecord{
		ID:     m.nextSongID,
		UserID: userID,
		Name:   name,
		Notes:  append([]int(nil), notes...),
	}
	m.songs[userID] = append(m.songs[userID], song)
	return song.ID, nil
}

// Song returns a saved song by user and id, for tests and diagnostics.
func (m *MemStore) Song(userID string, id int64) (SongRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.songs[userID] {
		if s.ID == id {
			return s, nil
		}
	}
	return SongRecord{}, ErrNotFound
}

func (m *MemStore) Close() error { return nil }

var _ Store = (*MemStore)(nil)

package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Memory_notes(t *testing.T) {
	s := NewMemStore()

	notes, err := s.UserNotes(t.Context(), "nobody", 10)
	require.NoError(t, err)
	require.Empty(t, notes)

	for i := range 5 {
		require.NoError(t, s.AppendNote(t.Context(), "u1", NoteRecord{
			KeyNumber: 60 + i,
			Velocity:  0.8,
			Timestamp: int64(1000 + i),
		}))
	}

	// Newest first, bounded by limit.
	notes, err = s.UserNotes(t.Context(), "u1", 3)
	require.NoError(t, err)
	require.Len(t, notes, 3)
	require.Equal(t, 64, notes[0].KeyNumber)
	require.Equal(t, 62, notes[2].KeyNumber)

	notes, err = s.UserNotes(t.Context(), "u1", 100)
	require.NoError(t, err)
	require.Len(t, notes, 5)
}

func Test_Memory_songs(t *testing.T) {
	s := NewMemStore()

	id1, err := s.SaveSong(t.Context(), "u1", "ode", []int{64, 64, 65, 67})
	require.NoError(t, err)
	id2, err := s.SaveSong(t.Context(), "u1", "scale", []int{60, 62, 64})
	require.NoError(t, err)
	require.Greater(t, id2, id1)

	song, err := s.Song("u1", id1)
	require.NoError(t, err)
	require.Equal(t, "ode", song.Name)
	require.Equal(t, []int{64, 64, 65, 67}, song.Notes)

	_, err = s.Song("u1", 999)
	require.ErrorIs(t, err, ErrNotFound)
}

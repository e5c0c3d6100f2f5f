package piano

// Messages exchanged with the worker and store actors. All of them are
// immutable value types; payload data is the only state that ever crosses
// an actor boundary.

// ProcessNoteRequest asks a worker to process one played note.
type ProcessNoteRequest struct {
	UserID    string  `json:"user_id"`
	KeyNumber int     `json:"key_number"`
	Velocity  float64 `json:"velocity"`
	Timestamp int64   `json:"timestamp"` // epoch millis
}

// NoteProcessedResult is produced exactly once per ProcessNoteRequest.
type NoteProcessedResult struct {
	KeyNumber        int    `json:"key_number"`
	Processed        bool   `json:"processed"`
	WorkerID         int    `json:"worker_id"`
	ProcessingTimeUs uint64 `json:"processing_time_us"`
}

// WorkerStatsRequest asks a worker for its lifetime counters.
type WorkerStatsRequest struct{}

// WorkerStats reports a worker's identity and processed-message count.
// The count is mutated only inside the worker's own processing step, so it
// is monotonically non-decreasing.
type WorkerStats struct {
	WorkerID       int    `json:"worker_id"`
	ProcessedCount uint64 `json:"processed_count"`
}

// GetUserNotesRequest asks the store actor for a user's recent notes.
type GetUserNotesRequest struct {
	UserID string `json:"user_id"`
	Limit  int    `json:"limit"`
}

// NoteEvent is one element of a notes query result, newest first.
type NoteEvent struct {
	KeyNumber int     `json:"key_number"`
	Velocity  float64 `json:"velocity"`
	Timestamp int64   `json:"timestamp"`
}

// UserNotesResult is the store actor's reply to GetUserNotesRequest.
type UserNotesResult struct {
	UserID string      `json:"user_id"`
	Notes  []NoteEvent `json:"notes"`
}

// RecordNoteRequest asks the store actor to persist one played note.
type RecordNoteRequest struct {
	UserID    string  `json:"user_id"`
	KeyNumber int     `json:"key_number"`
	Velocity  float64 `json:"velocity"`
	Timestamp int64   `json:"timestamp"`
}

// SaveSongRequest asks the store actor to persist a song.
type SaveSongRequest struct {
	UserID   string `json:"user_id"`
	SongName string `json:"song_name"`
	Notes    []int  `json:"notes"`
}

// SongSavedResult is the store actor's reply to SaveSongRequest.
type SongSavedResult struct {
	SongID int64 `json:"song_id"`
	Saved  bool  `json:"saved"`
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/net/websocket"

	"github.com/salimbaigadam-droid/Piano128keys/core/actor"
	"github.com/salimbaigadam-droid/Piano128keys/piano"
)

const maxBodyBytes = 1 << 20

// noteRequest is the wire shape of POST /api/process-note. Velocity and
// timestamp are optional and take their defaults when absent.
type noteRequest struct {
	UserID    string   `json:"user_id"`
	KeyNumber int      `json:"key_number"`
	Velocity  *float64 `json:"velocity"`
	Timestamp *int64   `json:"timestamp"`
}

type noteResponse struct {
	KeyNumber        int    `json:"key_number"`
	Processed        bool   `json:"processed"`
	WorkerID         int    `json:"worker_id"`
	ProcessingTimeUs uint64 `json:"processing_time_us"`
	PoolSize         int    `json:"pool_size"`
}

type songRequest struct {
	UserID   string `json:"user_id"`
	SongName string `json:"song_name"`
	Notes    []int  `json:"notes"`
}

type healthResponse struct {
	Status        string   `json:"status"`
	Architecture  string   `json:"architecture"`
	Features      []string `json:"features"`
	ActiveWorkers int      `json:"active_workers"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
}

func flightKey(userID string, limit int) string {
	return userID + "#" + strconv.Itoa(limit)
}

// peekUserID extracts user_id from the body without consuming it, so the
// rate limiter can run before the handler decodes the full request.
func peekUserID(r *http.Request) (string, io.ReadCloser, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return "", nil, err
	}
	var peek struct {
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(data, &peek); err != nil {
		return "", nil, err
	}
	return peek.UserID, io.NopCloser(bytes.NewReader(data)), nil
}

// askStatus maps an ask failure to an HTTP status. Transport failures mean
// the pool could not serve the request; handler failures are the actor's
// own errors.
func askStatus(err error) int {
	switch {
	case errors.Is(err, piano.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, actor.ErrAskTimeout):
		return http.StatusGatewayTimeout
	case actor.IsTransportError(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) askCtx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.askTimeout)
}

func (s *Server) handleProcessNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	velocity := 0.8
	if req.Velocity != nil {
		velocity = *req.Velocity
	}
	timestamp := time.Now().UnixMilli()
	if req.Timestamp != nil {
		timestamp = *req.Timestamp
	}

	msg := piano.ProcessNoteRequest{
		UserID:    req.UserID,
		KeyNumber: req.KeyNumber,
		Velocity:  velocity,
		Timestamp: timestamp,
	}

	ctx, cancel := s.askCtx(r)
	defer cancel()

	result, err := actor.Request[piano.ProcessNoteRequest, piano.NoteProcessedResult](ctx, s.pool.NextWorker(), msg)
	if err != nil {
		s.log.Warn("process-note ask failed", "error", err)
		writeError(w, askStatus(err), err.Error())
		return
	}

	if s.broadcaster != nil {
		if err := s.broadcaster.Broadcast(ctx, piano.NoteEvent{
			KeyNumber: msg.KeyNumber,
			Velocity:  msg.Velocity,
			Timestamp: msg.Timestamp,
		}); err != nil {
			s.log.Warn("broadcast failed", "error", err)
		}
	}

	writeJSON(w, http.StatusOK, noteResponse{
		KeyNumber:        result.KeyNumber,
		Processed:        result.Processed,
		WorkerID:         result.WorkerID,
		ProcessingTimeUs: result.ProcessingTimeUs,
		PoolSize:         s.pool.Size(),
	})
}

func (s *Server) handleSaveSong(w http.ResponseWriter, r *http.Request) {
	var req songRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.SongName == "" {
		writeError(w, http.StatusBadRequest, "user_id and song_name are required")
		return
	}

	ctx, cancel := s.askCtx(r)
	defer cancel()

	result, err := actor.Request[piano.SaveSongRequest, piano.SongSavedResult](ctx, s.pool.StoreActor(), piano.SaveSongRequest{
		UserID:   req.UserID,
		SongName: req.SongName,
		Notes:    req.Notes,
	})
	if err != nil {
		s.log.Warn("save-song ask failed", "error", err)
		writeError(w, askStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleUserNotes(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user is required")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	ctx, cancel := s.askCtx(r)
	defer cancel()

	result, err := s.notesFlight.Do(flightKey(userID, limit), func() (*piano.UserNotesResult, error) {
		return actor.Request[piano.GetUserNotesRequest, piano.UserNotesResult](ctx, s.pool.StoreActor(), piano.GetUserNotesRequest{
			UserID: userID,
			Limit:  limit,
		})
	})
	if err != nil {
		s.log.Warn("notes ask failed", "user_id", userID, "error", err)
		writeError(w, askStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:       "healthy",
		Architecture: "Concurrent Actor Model",
		Features: []string{
			"Actor-based Concurrency",
			"Message Passing",
			"Worker Pool",
		},
		ActiveWorkers: s.pool.Size(),
	})
}

// handleSubscribe keeps the websocket open until the client goes away;
// events arrive via the broadcaster.
func (s *Server) handleSubscribe(ws *websocket.Conn) {
	defer ws.Close()

	ctx := context.Background()
	id, err := s.broadcaster.Subscribe(ctx, ws)
	if err != nil {
		s.log.Warn("subscribe failed", "error", err)
		return
	}
	s.log.Debug("websocket subscribed", "sub_id", id)
	defer func() {
		if err := s.broadcaster.Unsubscribe(ctx, id); err != nil {
			s.log.Debug("unsubscribe failed", "sub_id", id, "error", err)
		}
	}()

	// Drain until the peer closes. Inbound payloads are ignored.
	buf := make([]byte, 512)
	for {
		if _, err := ws.Read(buf); err != nil {
			return
		}
	}
}

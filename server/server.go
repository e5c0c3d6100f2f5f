// Package server exposes the worker pool over HTTP: note processing,
// song persistence, note history, health, and a websocket event stream.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/net/websocket"

	"github.com/salimbaigadam-droid/Piano128keys/core/pool"
	"github.com/salimbaigadam-droid/Piano128keys/core/sf"
	"github.com/salimbaigadam-droid/Piano128keys/internal/ratelimiter"
	"github.com/salimbaigadam-droid/Piano128keys/piano"
)

const defaultAskTimeout = 5 * time.Second

// HTTPMetrics is the instrumentation hook for the HTTP layer.
type HTTPMetrics interface {
	Observe(route string, status int, seconds float64)
	RateLimited()
}

type nopHTTPMetrics struct{}

func (nopHTTPMetrics) Observe(string, int, float64) {}
func (nopHTTPMetrics) RateLimited()                 {}

// Config holds the server's collaborators.
type Config struct {
	Pool        *pool.Manager
	Broadcaster *Broadcaster

	// Limiter bounds per-user request rates. Nil disables limiting.
	Limiter *ratelimiter.PerKey

	// MetricsHandler serves GET /metrics when set (promhttp).
	MetricsHandler http.Handler

	Log     *slog.Logger
	Metrics HTTPMetrics

	// AskTimeout bounds every actor ask issued on behalf of a request.
	AskTimeout time.Duration
}

// Server is the HTTP API over the actor pool. It holds no domain state of
// its own; every operation is an ask against a pool actor.
type Server struct {
	pool        *pool.Manager
	broadcaster *Broadcaster
	limiter     *ratelimiter.PerKey
	log         *slog.Logger
	metrics     HTTPMetrics
	askTimeout  time.Duration

	metricsHandler http.Handler

	// notesFlight collapses concurrent history reads for the same user
	// into one ask.
	notesFlight *sf.Singleflight[piano.UserNotesResult]
}

// New builds the server. The pool is required.
func New(cfg Config) *Server {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = nopHTTPMetrics{}
	}
	askTimeout := cfg.AskTimeout
	if askTimeout <= 0 {
		askTimeout = defaultAskTimeout
	}

	return &Server{
		pool:           cfg.Pool,
		broadcaster:    cfg.Broadcaster,
		limiter:        cfg.Limiter,
		log:            log.With("component", "http"),
		metrics:        metrics,
		askTimeout:     askTimeout,
		metricsHandler: cfg.MetricsHandler,
		notesFlight:    sf.New[piano.UserNotesResult](),
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /api/process-note", s.instrument("/api/process-note", s.rateLimited(s.handleProcessNote)))
	mux.Handle("POST /api/save-song", s.instrument("/api/save-song", s.rateLimited(s.handleSaveSong)))
	mux.Handle("GET /api/notes/{user}", s.instrument("/api/notes", http.HandlerFunc(s.handleUserNotes)))
	mux.Handle("GET /api/health", s.instrument("/api/health", http.HandlerFunc(s.handleHealth)))

	if s.broadcaster != nil {
		mux.Handle("/subscribe", websocket.Handler(s.handleSubscribe))
	}
	if s.metricsHandler != nil {
		mux.Handle("GET /metrics", s.metricsHandler)
	}

	return mux
}

// statusWriter captures the response status for instrumentation.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)
		s.metrics.Observe(route, sw.status, time.Since(start).Seconds())
	})
}

// rateLimited rejects requests whose body user_id exceeds its token
// bucket. The user id is sniffed without consuming the body.
func (s *Server) rateLimited(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, body, err := peekUserID(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		r.Body = body
		if !s.limiter.Allow(userID, time.Now()) {
			s.metrics.RateLimited()
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r)
	})
}

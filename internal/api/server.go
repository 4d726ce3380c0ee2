// Package api exposes the task intake HTTP surface.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/yangwenmai/taskforge/internal/model"
)

// maxRequestBody is the maximum allowed request body size (1 MB).
const maxRequestBody int64 = 1 << 20

// Submitter schedules an authorized task.
type Submitter interface {
	Submit(ctx context.Context, req model.TaskRequest) (*model.Acceptance, error)
}

// RecordReader looks up processing records.
type RecordReader interface {
	Get(trackingID string) (model.Record, bool)
}

// RoundLister lists the published rounds of a task.
type RoundLister interface {
	ListRounds(ctx context.Context, task, nonce string) ([]model.RoundArtifacts, error)
}

// Backend reports and refreshes generation backend readiness.
type Backend interface {
	Available() bool
	Initialize(ctx context.Context) error
}

// Server holds the HTTP handlers and dependencies.
type Server struct {
	submitter        Submitter
	records          RecordReader
	rounds           RoundLister
	backend          Backend
	secret           string
	githubConfigured bool

	router chi.Router
}

// Deps groups the collaborators of a Server.
type Deps struct {
	Submitter        Submitter
	Records          RecordReader
	Rounds           RoundLister
	Backend          Backend
	Secret           string
	GitHubConfigured bool
}

// New creates a new API server.
func New(d Deps) *Server {
	s := &Server{
		submitter:        d.Submitter,
		records:          d.Records,
		rounds:           d.Rounds,
		backend:          d.Backend,
		secret:           d.Secret,
		githubConfigured: d.GitHubConfigured,
	}
	s.router = s.routes()
	return s
}

// Handler returns the root http.Handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(limitBody)

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Post("/process_task", s.handleProcessTask)
	r.Get("/status/{trackingID}", s.handleStatus)
	r.Get("/tasks/{task}/{nonce}/rounds", s.handleListRounds)
	r.Post("/admin/reinitialize", s.handleReinitialize)
	return r
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

// limitBody restricts the request body to maxRequestBody bytes.
func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		next.ServeHTTP(w, r)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"elapsed", time.Since(start).Round(time.Millisecond).String(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail any) {
	writeJSON(w, status, map[string]any{"detail": detail})
}

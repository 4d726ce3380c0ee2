package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yangwenmai/taskforge/internal/model"
)

// ---------------------------------------------------------------------------
// POST /process_task
// ---------------------------------------------------------------------------

func (s *Server) handleProcessTask(w http.ResponseWriter, r *http.Request) {
	var req model.TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, []model.FieldError{{Field: "body", Message: "invalid JSON: " + err.Error()}})
		return
	}
	if err := req.Validate(); err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusUnprocessableEntity, verr.Fields)
			return
		}
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	acc, err := s.submitter.Submit(r.Context(), req)
	switch {
	case errors.Is(err, model.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "Invalid secret key")
		return
	case err != nil:
		slog.Error("submit failed", "task", req.Task, "round", req.Round, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

// ---------------------------------------------------------------------------
// GET /health
// ---------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "healthy",
		"ai_available":      s.backend.Available(),
		"github_configured": s.githubConfigured,
		"config_loaded":     true,
	})
}

// ---------------------------------------------------------------------------
// GET /
// ---------------------------------------------------------------------------

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        "taskforge",
		"description": "Generates static web apps from task briefs, publishes them to GitHub Pages and reports back to the evaluation URL.",
		"endpoints": map[string]string{
			"POST /process_task":               "accept a task; returns a tracking id immediately",
			"GET /health":                      "backend and credential readiness",
			"GET /status/{tracking_id}":        "processing record of one task",
			"GET /tasks/{task}/{nonce}/rounds": "published rounds of a task",
			"POST /admin/reinitialize":         "rebuild the generation backend (X-Secret header)",
		},
	})
}

// ---------------------------------------------------------------------------
// GET /status/{trackingID}
// ---------------------------------------------------------------------------

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "trackingID")
	rec, ok := s.records.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown tracking id")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ---------------------------------------------------------------------------
// GET /tasks/{task}/{nonce}/rounds
// ---------------------------------------------------------------------------

type roundSummary struct {
	Round     int    `json:"round"`
	RepoURL   string `json:"repo_url"`
	CommitSHA string `json:"commit_sha"`
	PagesURL  string `json:"pages_url"`
	CreatedAt string `json:"created_at"`
}

func (s *Server) handleListRounds(w http.ResponseWriter, r *http.Request) {
	task, nonce := chi.URLParam(r, "task"), chi.URLParam(r, "nonce")
	rounds, err := s.rounds.ListRounds(r.Context(), task, nonce)
	if err != nil {
		slog.Error("list rounds failed", "task", task, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list rounds")
		return
	}
	if len(rounds) == 0 {
		writeError(w, http.StatusNotFound, "no published rounds")
		return
	}

	out := make([]roundSummary, 0, len(rounds))
	for _, ra := range rounds {
		out = append(out, roundSummary{
			Round:     ra.Round,
			RepoURL:   ra.RepoURL,
			CommitSHA: ra.CommitSHA,
			PagesURL:  ra.PagesURL,
			CreatedAt: ra.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"task": task, "nonce": nonce, "rounds": out})
}

// ---------------------------------------------------------------------------
// POST /admin/reinitialize
// ---------------------------------------------------------------------------

func (s *Server) handleReinitialize(w http.ResponseWriter, r *http.Request) {
	if s.secret == "" || subtle.ConstantTimeCompare([]byte(r.Header.Get("X-Secret")), []byte(s.secret)) != 1 {
		writeError(w, http.StatusForbidden, "Invalid secret key")
		return
	}
	if err := s.backend.Initialize(r.Context()); err != nil {
		slog.Warn("reinitialize failed", "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ai_available": s.backend.Available()})
}

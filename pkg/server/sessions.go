package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/malbeclabs/driftwatch/pkg/metrics"
	"github.com/malbeclabs/driftwatch/pkg/reconcile"
)

// Session is one ad-hoc reconciliation kept fetchable until it expires.
type Session struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt time.Time         `json:"expires_at"`
	Result    *reconcile.Result `json:"result"`
}

// ReconcileRequest carries the two documents to reconcile and per-request
// option overrides.
type ReconcileRequest struct {
	Snapshot json.RawMessage  `json:"snapshot"`
	ISIS     json.RawMessage  `json:"isis"`
	Options  ReconcileOptions `json:"options"`
}

type ReconcileOptions struct {
	DriftThresholdMs float64 `json:"drift_threshold_ms"`
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var req ReconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Snapshot) == 0 {
		http.Error(w, `Field "snapshot" is required`, http.StatusBadRequest)
		return
	}
	if len(req.ISIS) == 0 {
		http.Error(w, `Field "isis" is required`, http.StatusBadRequest)
		return
	}
	if req.Options.DriftThresholdMs < 0 {
		http.Error(w, "Drift threshold must be positive", http.StatusBadRequest)
		return
	}

	opts := s.cfg.Reconcile
	if req.Options.DriftThresholdMs > 0 {
		// A request threshold always wins, even over a configured
		// comparator.
		opts.DriftThresholdMs = req.Options.DriftThresholdMs
		opts.Comparator = nil
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	start := time.Now()
	result, err := reconcile.Reconcile(ctx, req.Snapshot, req.ISIS, opts)
	metrics.RecordReconcile(time.Since(start), err)
	if err != nil {
		http.Error(w, SanitizeError(err), http.StatusBadRequest)
		return
	}

	now := s.cfg.Clock.Now().UTC()
	session := &Session{
		ID:        uuid.New().String(),
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.SessionTTL),
		Result:    result,
	}
	s.sessions.Store(session.ID, session, s.cfg.SessionTTL)

	s.log.Info("created reconcile session",
		"id", session.ID,
		"total_links", result.Summary.TotalLinks,
		"expires_at", session.ExpiresAt)

	s.writeJSONStatus(w, http.StatusCreated, session)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	session, ok := s.sessions.Fetch(id)
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, session)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.sessions.Fetch(id); !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	s.sessions.Invalidate(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSessionLinks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	session, ok := s.sessions.Fetch(id)
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	s.writeLinksPage(w, r, session.Result.Topology)
}

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/malbeclabs/driftwatch/pkg/reconcile"
	"github.com/malbeclabs/driftwatch/pkg/topology"
)

// DefaultEpochsLimit bounds how many dump stamps /api/epochs lists per
// source when no limit is given.
const DefaultEpochsLimit = 30

// VersionResponse contains the build version info.
type VersionResponse struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// SummaryResponse combines the view status with the health counts and input
// diagnostics of the most recent reconciliation.
type SummaryResponse struct {
	topology.Status
	Summary     reconcile.Summary     `json:"summary"`
	Diagnostics reconcile.Diagnostics `json:"diagnostics"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.shuttingDown.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("shutting down"))
		return
	}
	if !s.view.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("topology not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, VersionResponse{
		Version: s.cfg.Version,
		Commit:  s.cfg.Commit,
		Date:    s.cfg.Date,
	})
}

func (s *Server) handleTopology(w http.ResponseWriter, r *http.Request) {
	result := s.view.Result()
	if result == nil {
		http.Error(w, "Topology not ready", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, result)
}

func (s *Server) handleLinks(w http.ResponseWriter, r *http.Request) {
	result := s.view.Result()
	if result == nil {
		http.Error(w, "Topology not ready", http.StatusServiceUnavailable)
		return
	}
	s.writeLinksPage(w, r, result.Topology)
}

func (s *Server) handleLocations(w http.ResponseWriter, r *http.Request) {
	result := s.view.Result()
	if result == nil {
		http.Error(w, "Topology not ready", http.StatusServiceUnavailable)
		return
	}
	locations := result.Locations
	if locations == nil {
		locations = []reconcile.LocationRollup{}
	}
	s.writeJSON(w, locations)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	result := s.view.Result()
	if result == nil {
		http.Error(w, "Topology not ready", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, SummaryResponse{
		Status:      s.view.Status(),
		Summary:     result.Summary,
		Diagnostics: result.Diagnostics,
	})
}

func (s *Server) handleEpochs(w http.ResponseWriter, r *http.Request) {
	limit := DefaultEpochsLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
			if limit > MaxLimit {
				limit = MaxLimit
			}
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	epochs, err := s.view.Epochs(ctx, limit)
	if err != nil {
		http.Error(w, s.internalError("Failed to list epochs", err), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, epochs)
}

// writeLinksPage applies the optional health filter and pagination to links
// and writes the page. Shared by the live topology and session endpoints.
func (s *Server) writeLinksPage(w http.ResponseWriter, r *http.Request, links []reconcile.ReconciledLink) {
	if health := r.URL.Query().Get("health"); health != "" {
		h := reconcile.Health(health)
		if !h.Valid() {
			http.Error(w, "Invalid health filter", http.StatusBadRequest)
			return
		}
		filtered := make([]reconcile.ReconciledLink, 0, len(links))
		for _, link := range links {
			if link.Health == h {
				filtered = append(filtered, link)
			}
		}
		links = filtered
	}

	pagination := ParsePagination(r, DefaultLimit)
	s.writeJSON(w, PaginatedResponse[reconcile.ReconciledLink]{
		Items:  Page(links, pagination),
		Total:  len(links),
		Limit:  pagination.Limit,
		Offset: pagination.Offset,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("failed to encode response", "error", err)
	}
}

package web

import (
	"errors"
	"net/http"

	"github.com/JonMunkholm/ndjson-import/internal/core"
	"github.com/go-chi/chi/v5"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

// RunsResponse is the body of GET /runs.
type RunsResponse struct {
	Runs  []*core.RunRecord `json:"runs"`
	Count int               `json:"count"`
}

// handleListRuns returns recent runs, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", defaultRunsLimit)
	if limit > maxRunsLimit {
		limit = maxRunsLimit
	}

	runs, err := s.service.Runs(r.Context(), limit)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, RunsResponse{Runs: runs, Count: len(runs)})
}

// handleGetRun returns one run record.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	rec, err := s.service.Run(r.Context(), runID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, core.ErrRunNotFound) {
			status = http.StatusNotFound
		}
		respondError(w, r, err, status)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

package api

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"example.com/tierrun/internal/auth"
	"example.com/tierrun/internal/domain"
	"example.com/tierrun/internal/persistence"
	"example.com/tierrun/internal/workoutsource/gpx"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func (h *Handler) ingestRun(w http.ResponseWriter, r *http.Request) {
	runnerID := chi.URLParam(r, "runnerID")
	if !authorize(w, r, runnerID, auth.ScopeRunsWrite) {
		return
	}
	var req WorkoutRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.ingest(w, r, runnerID, req.toInput())
}

// ingestGPX records a run from a raw GPX upload. The optional role query
// parameter overrides classification.
func (h *Handler) ingestGPX(w http.ResponseWriter, r *http.Request) {
	runnerID := chi.URLParam(r, "runnerID")
	if !authorize(w, r, runnerID, auth.ScopeRunsWrite) {
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to read body: "+err.Error())
		return
	}
	in, err := gpx.Parse(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_gpx", err.Error())
		return
	}
	if raw := r.URL.Query().Get("role"); raw != "" {
		role, ok := parseRole(w, raw)
		if !ok {
			return
		}
		in.Role = role
	}
	h.ingest(w, r, runnerID, in)
}

func (h *Handler) ingest(w http.ResponseWriter, r *http.Request, runnerID string, in domain.WorkoutInput) {
	result, err := h.service.IngestRun(r.Context(), runnerID, in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	status := http.StatusCreated
	if result.Replay {
		status = http.StatusOK
	}
	writeJSON(w, status, IngestResponse{
		Run:         toRunView(result.Run),
		Tier:        toTierView(result.Tier),
		Transitions: toTransitionViews(result.Transitions),
		Replay:      result.Replay,
	})
}

func (h *Handler) syncRuns(w http.ResponseWriter, r *http.Request) {
	runnerID := chi.URLParam(r, "runnerID")
	if !authorize(w, r, runnerID, auth.ScopeRunsWrite) {
		return
	}
	var req WorkoutBatchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	report, err := h.service.SyncWorkouts(r.Context(), runnerID, req.inputs())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SyncResponse{
		Ingested:    report.Ingested,
		Duplicates:  report.Duplicates,
		Rejected:    report.Rejected,
		Transitions: toTransitionViews(report.Transitions),
	})
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	runnerID := chi.URLParam(r, "runnerID")
	if !authorize(w, r, runnerID, auth.ScopeRunsRead) {
		return
	}
	query := r.URL.Query()

	filter := domain.RunFilter{RunnerID: runnerID, Sort: domain.RunSort(query.Get("sort"))}
	if raw := query.Get("role"); raw != "" {
		role, ok := parseRole(w, raw)
		if !ok {
			return
		}
		filter.Role = role
	}
	if raw := query.Get("since"); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "since must be RFC3339")
			return
		}
		filter.Since = since
	}

	limit := defaultPageSize
	if raw := query.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", "limit must be a positive integer")
			return
		}
		limit = min(v, maxPageSize)
	}

	cursor, err := persistence.DecodeCursor(query.Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	runs, next, err := h.service.ListRuns(r.Context(), filter, cursor, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	items := make([]RunView, 0, len(runs))
	for _, run := range runs {
		items = append(items, toRunView(run))
	}
	writeJSON(w, http.StatusOK, ListRunsResponse{Items: items, NextCursor: persistence.EncodeCursor(next)})
}

// loadRun fetches a run and checks the caller may act on its runner.
func (h *Handler) loadRun(w http.ResponseWriter, r *http.Request, scope string) (*domain.Run, bool) {
	if !authorize(w, r, "", scope) {
		return nil, false
	}
	run, err := h.service.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeDomainError(w, err)
		return nil, false
	}
	claims, _ := auth.FromContext(r.Context())
	if !claims.CanActFor(run.RunnerID) {
		// Hide runs of other runners instead of confirming they exist.
		writeError(w, http.StatusNotFound, "not_found", domain.ErrRunNotFound.Error())
		return nil, false
	}
	return run, true
}

func (h *Handler) getRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r, auth.ScopeRunsRead)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toRunView(*run))
}

func (h *Handler) reclassifyRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r, auth.ScopeRunsWrite)
	if !ok {
		return
	}
	var req ReclassifyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	role, ok := parseRole(w, strings.TrimSpace(req.Role))
	if !ok {
		return
	}
	result, err := h.service.ReclassifyRun(r.Context(), run.ID, role)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ReclassifyResponse{
		Run:          toRunView(result.Run),
		PreviousRole: string(result.PreviousRole),
		PreviousLP:   result.PreviousLP,
		From:         toTierView(result.From),
		To:           toTierView(result.To),
		Transitions:  toTransitionViews(result.Transitions),
		Changed:      result.Changed,
	})
}

func (h *Handler) deleteRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r, auth.ScopeRunsWrite)
	if !ok {
		return
	}
	tier, err := h.service.DeleteRun(r.Context(), run.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTierView(*tier))
}

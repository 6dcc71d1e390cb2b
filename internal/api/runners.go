package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"example.com/tierrun/internal/auth"
	"example.com/tierrun/internal/domain"
	"example.com/tierrun/internal/ranking"
)

func (h *Handler) registerRunner(w http.ResponseWriter, r *http.Request) {
	if !authorize(w, r, "", auth.ScopeRunsWrite) {
		return
	}
	claims, _ := auth.FromContext(r.Context())

	var req RegisterRunnerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id := strings.TrimSpace(req.ID)
	if id == "" || !claims.HasScope(auth.ScopeAdmin) {
		id = claims.Subject
	}

	runner, tiers, err := h.service.RegisterRunner(r.Context(), domain.RegisterRunnerInput{
		ID:      id,
		Name:    strings.TrimSpace(req.Name),
		Profile: req.Profile.toProfile(),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, RunnerView{
		ID:        runner.ID,
		Name:      runner.Name,
		Profile:   toProfileView(runner.Profile),
		CreatedAt: runner.CreatedAt,
		Tiers:     toTierViews(tiers),
	})
}

func (h *Handler) getRunner(w http.ResponseWriter, r *http.Request) {
	runnerID := chi.URLParam(r, "runnerID")
	if !authorize(w, r, runnerID, auth.ScopeRunsRead) {
		return
	}
	h.writeRunner(w, r, runnerID, http.StatusOK)
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	runnerID := chi.URLParam(r, "runnerID")
	if !authorize(w, r, runnerID, auth.ScopeRunsWrite) {
		return
	}
	var req ProfileRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if _, err := h.service.UpdateProfile(r.Context(), runnerID, req.toProfile()); err != nil {
		writeDomainError(w, err)
		return
	}
	h.writeRunner(w, r, runnerID, http.StatusOK)
}

// writeRunner renders the runner with both of its ladders.
func (h *Handler) writeRunner(w http.ResponseWriter, r *http.Request, runnerID string, status int) {
	ctx := r.Context()
	runner, err := h.service.GetRunner(ctx, runnerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	view := RunnerView{
		ID:        runner.ID,
		Name:      runner.Name,
		Profile:   toProfileView(runner.Profile),
		CreatedAt: runner.CreatedAt,
	}
	for _, role := range ranking.Roles() {
		tier, err := h.service.GetTier(ctx, runnerID, role)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		view.Tiers = append(view.Tiers, toTierView(*tier))
	}
	writeJSON(w, status, view)
}

func (h *Handler) profileStats(w http.ResponseWriter, r *http.Request) {
	runnerID := chi.URLParam(r, "runnerID")
	if !authorize(w, r, runnerID, auth.ScopeRunsRead) {
		return
	}
	ctx := r.Context()
	stats, err := h.service.ProfileStats(ctx, runnerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	week, err := h.service.WeeklyProgress(ctx, runnerID, h.now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ProfileStatsResponse{
		TotalRuns:       stats.TotalRuns,
		TotalDistanceKm: stats.TotalDistanceKm,
		TotalLP:         stats.TotalLP,
		Week: WeeklyProgressView{
			WeekStart:  week.WeekStart,
			Completed:  week.Completed,
			Target:     week.Target,
			DistanceKm: week.DistanceKm,
			LP:         week.LP,
			Fraction:   week.Fraction(),
		},
	})
}

func (h *Handler) previewScore(w http.ResponseWriter, r *http.Request) {
	runnerID := chi.URLParam(r, "runnerID")
	if !authorize(w, r, runnerID, auth.ScopeRunsRead) {
		return
	}
	var req WorkoutRequest
	if !decodeBody(w, r, &req) {
		return
	}
	lp, role, err := h.service.PreviewLP(r.Context(), runnerID, req.toInput())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ScoreResponse{LP: lp, Role: string(role)})
}

func (h *Handler) placeRunner(w http.ResponseWriter, r *http.Request) {
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
	result, err := h.service.PlaceRunner(r.Context(), runnerID, req.inputs())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PlacementResponse{
		Marathoner:  toRolePlacementView(result.Marathoner),
		Sprinter:    toRolePlacementView(result.Sprinter),
		Recommended: string(result.Recommended),
		Tiers:       toTierViews(result.Tiers),
	})
}

func (h *Handler) getTier(w http.ResponseWriter, r *http.Request) {
	runnerID := chi.URLParam(r, "runnerID")
	if !authorize(w, r, runnerID, auth.ScopeRunsRead) {
		return
	}
	role, ok := parseRole(w, chi.URLParam(r, "role"))
	if !ok {
		return
	}
	tier, err := h.service.GetTier(r.Context(), runnerID, role)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTierView(*tier))
}

func (h *Handler) tierStats(w http.ResponseWriter, r *http.Request) {
	runnerID := chi.URLParam(r, "runnerID")
	if !authorize(w, r, runnerID, auth.ScopeRunsRead) {
		return
	}
	role, ok := parseRole(w, chi.URLParam(r, "role"))
	if !ok {
		return
	}
	stats, err := h.service.TierStats(r.Context(), runnerID, role, h.now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TierStatsResponse{
		Tier:      toTierView(stats.Tier),
		WeeklyLP:  stats.WeeklyLP,
		MonthlyLP: stats.MonthlyLP,
		SeasonLP:  stats.SeasonLP,
	})
}

func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	runnerID := chi.URLParam(r, "runnerID")
	if !authorize(w, r, runnerID, auth.ScopeRunsRead) {
		return
	}
	if h.feeds == nil {
		writeError(w, http.StatusNotFound, "not_found", "event feed disabled")
		return
	}
	if _, err := h.service.GetRunner(r.Context(), runnerID); err != nil {
		writeDomainError(w, err)
		return
	}
	h.feeds.Serve(w, r, runnerID)
}

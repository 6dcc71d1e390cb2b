// Package api exposes the HTTP surface of the tierrun service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"example.com/tierrun/internal/auth"
	"example.com/tierrun/internal/domain"
	"example.com/tierrun/internal/ranking"
)

// maxUploadBytes bounds request bodies, GPX uploads included.
const maxUploadBytes = 10 << 20

// FeedServer upgrades a request into a live event feed for one runner.
type FeedServer interface {
	Serve(w http.ResponseWriter, r *http.Request, runnerID string)
}

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
	feeds   FeedServer
	now     func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithFeeds enables the websocket event feed.
func WithFeeds(feeds FeedServer) Option {
	return func(h *Handler) {
		h.feeds = feeds
	}
}

// WithClock overrides the clock used for calendar statistics.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		h.now = now
	}
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, opts ...Option) *Handler {
	h := &Handler{
		service: service,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes wires endpoints to the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", healthz)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/runners", h.registerRunner)
		r.Route("/runners/{runnerID}", func(r chi.Router) {
			r.Get("/", h.getRunner)
			r.Put("/profile", h.updateProfile)
			r.Get("/stats", h.profileStats)
			r.Post("/score", h.previewScore)
			r.Post("/placement", h.placeRunner)
			r.Get("/tiers/{role}", h.getTier)
			r.Get("/tiers/{role}/stats", h.tierStats)
			r.Get("/runs", h.listRuns)
			r.Post("/runs", h.ingestRun)
			r.Post("/runs/gpx", h.ingestGPX)
			r.Post("/runs/sync", h.syncRuns)
			r.Get("/events", h.events)
		})
		r.Route("/runs/{runID}", func(r chi.Router) {
			r.Get("/", h.getRun)
			r.Patch("/", h.reclassifyRun)
			r.Delete("/", h.deleteRun)
		})
	})
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// authorize checks that the caller holds scope and may act for runnerID. Read
// access is also granted by the write scope.
func authorize(w http.ResponseWriter, r *http.Request, runnerID, scope string) bool {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return false
	}
	if !claims.HasScope(scope) && !(scope == auth.ScopeRunsRead && claims.HasScope(auth.ScopeRunsWrite)) {
		writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
		return false
	}
	if runnerID != "" && !claims.CanActFor(runnerID) {
		writeError(w, http.StatusForbidden, "forbidden", "runner belongs to another subject")
		return false
	}
	return true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body: "+err.Error())
		return false
	}
	return true
}

func parseRole(w http.ResponseWriter, raw string) (ranking.Role, bool) {
	role, err := ranking.ParseRole(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return "", false
	}
	return role, true
}

// writeDomainError maps service errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrRunnerNotFound), errors.Is(err, domain.ErrRunNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrRunnerExists):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrTierConflict):
		writeError(w, http.StatusConflict, "tier_conflict", err.Error())
	case domain.IsRejection(err):
		writeError(w, http.StatusUnprocessableEntity, "run_rejected", err.Error())
	case errors.Is(err, ranking.ErrInvalidProfile), errors.Is(err, domain.ErrInvalidSort):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// Package api exposes the HTTP surface of the consensus engine: report
// submission, target listings, moderator overrides, shelters and auth.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/skyguard/skyguard/internal/auth"
	"github.com/skyguard/skyguard/internal/engine"
	"github.com/skyguard/skyguard/internal/models"
	"github.com/skyguard/skyguard/internal/store"
)

type Handler struct {
	engine   *engine.Engine
	shelters store.ShelterRepository
	logger   *slog.Logger
}

func NewHandler(eng *engine.Engine, shelters store.ShelterRepository, logger *slog.Logger) *Handler {
	return &Handler{
		engine:   eng,
		shelters: shelters,
		logger:   logger,
	}
}

// SubmitReportRequest represents a report submission.
type SubmitReportRequest struct {
	Type        models.TargetType `json:"target_type"`
	Latitude    float64           `json:"latitude"`
	Longitude   float64           `json:"longitude"`
	Description string            `json:"description,omitempty"`
	SubmittedAt time.Time         `json:"submitted_at,omitempty"`
}

// SubmitReportHandler handles POST /api/reports
func (h *Handler) SubmitReportHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req SubmitReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	summary, err := h.engine.SubmitReport(r.Context(), engine.Submission{
		ReporterID:  ident.ReporterID,
		Type:        req.Type,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Description: req.Description,
		SubmittedAt: req.SubmittedAt,
	})
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, summary)
}

// GetTargetsHandler handles GET /api/targets
func (h *Handler) GetTargetsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query, err := parseTargetQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summaries, err := h.engine.ListTargets(r.Context(), query)
	if err != nil {
		h.logger.Error("failed to list targets", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, TargetsResponse{
		Targets: summaries,
		Count:   len(summaries),
	})
}

// TargetsResponse wraps a target listing.
type TargetsResponse struct {
	Targets []models.Summary `json:"targets"`
	Count   int              `json:"count"`
}

// GetTargetByIDHandler handles GET /api/targets/:id
func (h *Handler) GetTargetByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	targetID := pathSegment(r.URL.Path, 3)
	if targetID == "" {
		writeError(w, http.StatusBadRequest, "target ID required")
		return
	}

	summary, err := h.engine.GetTarget(r.Context(), targetID)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// ConfirmTargetHandler handles POST /api/targets/:id/confirm (moderator only).
func (h *Handler) ConfirmTargetHandler(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, h.engine.Confirm)
}

// RejectTargetHandler handles POST /api/targets/:id/reject (moderator only).
func (h *Handler) RejectTargetHandler(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, h.engine.Reject)
}

func (h *Handler) moderate(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, targetID string) (models.Summary, error)) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	targetID := pathSegment(r.URL.Path, 3)
	if targetID == "" {
		writeError(w, http.StatusBadRequest, "target ID required")
		return
	}

	summary, err := apply(r.Context(), targetID)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// GetSheltersHandler handles GET /api/shelters
func (h *Handler) GetSheltersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	shelters, err := h.shelters.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list shelters", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if shelters == nil {
		shelters = []models.Shelter{}
	}

	writeJSON(w, http.StatusOK, shelters)
}

// writeEngineError maps the engine error taxonomy onto HTTP statuses.
func (h *Handler) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation  *engine.ValidationError
		unauth      *engine.UnauthorizedError
		notFound    *engine.NotFoundError
		rateLimited *engine.RateLimitError
		lockTimeout *engine.ConcurrencyTimeoutError
	)
	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Error())
	case errors.As(err, &unauth):
		writeError(w, http.StatusUnauthorized, "unknown reporter")
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, notFound.Error())
	case errors.As(err, &rateLimited):
		writeError(w, http.StatusTooManyRequests, "submission rate limit exceeded")
	case errors.As(err, &lockTimeout):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "target busy, retry")
	default:
		h.logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// parseTargetQuery converts URL query parameters to a TargetQuery.
func parseTargetQuery(r *http.Request) (models.TargetQuery, error) {
	q := r.URL.Query()
	query := models.TargetQuery{}

	if raw := q.Get("status"); raw != "" {
		status := models.TargetStatus(raw)
		switch status {
		case models.StatusPending, models.StatusUnconfirmed, models.StatusConfirmed, models.StatusRejected:
			query.Status = &status
			if status == models.StatusRejected {
				query.IncludeRejected = true
			}
		default:
			return query, errors.New("invalid status filter")
		}
	}

	if raw := q.Get("target_type"); raw != "" {
		t := models.TargetType(raw)
		if !t.Valid() {
			return query, errors.New("invalid target_type filter")
		}
		query.Type = &t
	}

	if raw := q.Get("probability"); raw != "" {
		p := models.Probability(raw)
		switch p {
		case models.ProbabilityLow, models.ProbabilityMedium, models.ProbabilityHigh:
			query.Probability = &p
		default:
			return query, errors.New("invalid probability filter")
		}
	}

	return query, nil
}

// pathSegment returns the n-th slash-separated segment of the path, or "".
// A leading slash yields an empty segment 0, so "/api/targets/abc" has the
// ID at segment 3.
func pathSegment(path string, n int) string {
	parts := strings.Split(path, "/")
	if n >= len(parts) {
		return ""
	}
	return parts[n]
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

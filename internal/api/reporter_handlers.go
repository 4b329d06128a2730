package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"log/slog"

	"github.com/skyguard/skyguard/internal/auth"
	"github.com/skyguard/skyguard/internal/store"
)

// ReporterHandler serves the authenticated reporter's own profile.
type ReporterHandler struct {
	reporters store.ReporterRepository
	logger    *slog.Logger
}

func NewReporterHandler(reporters store.ReporterRepository, logger *slog.Logger) *ReporterHandler {
	return &ReporterHandler{reporters: reporters, logger: logger}
}

// GetProfile handles GET /api/reporters/me
func (h *ReporterHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	profile, err := h.reporters.GetByID(r.Context(), ident.ReporterID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unknown reporter")
			return
		}
		h.logger.Error("failed to get reporter profile", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

// UpdateLocationRequest represents a location update.
type UpdateLocationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// UpdateLocation handles PUT /api/reporters/me/location. The last-known
// position is used to scope proximity alerts.
func (h *ReporterHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ident, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req UpdateLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Latitude < -90 || req.Latitude > 90 || req.Longitude < -180 || req.Longitude > 180 {
		writeError(w, http.StatusBadRequest, "coordinates out of range")
		return
	}

	if err := h.reporters.UpdateLocation(r.Context(), ident.ReporterID, req.Latitude, req.Longitude); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unknown reporter")
			return
		}
		h.logger.Error("failed to update location", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

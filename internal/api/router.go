package api

import (
	"context"
	"net/http"
	"strings"

	"log/slog"

	"github.com/skyguard/skyguard/internal/auth"
	"github.com/skyguard/skyguard/internal/engine"
	"github.com/skyguard/skyguard/internal/store"
)

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// SetupRoutes configures all API routes. Report submission and profile
// routes require a reporter token; confirm/reject additionally require the
// moderator flag; target and shelter reads are public.
func SetupRoutes(
	mux *http.ServeMux,
	eng *engine.Engine,
	reporters store.ReporterRepository,
	shelters store.ShelterRepository,
	authConfig auth.Config,
	health HealthCheck,
	logger *slog.Logger,
) {
	handler := NewHandler(eng, shelters, logger)
	authHandler := NewAuthHandler(reporters, authConfig, logger)
	reporterHandler := NewReporterHandler(reporters, logger)

	reporterAuth := auth.Middleware(authConfig, false)
	moderatorAuth := auth.Middleware(authConfig, true)

	// Authentication routes (public)
	mux.HandleFunc("/api/auth/register", authHandler.Register)
	mux.HandleFunc("/api/auth/login", authHandler.Login)

	// Report submission (reporter token required)
	mux.Handle("/api/reports", reporterAuth(http.HandlerFunc(handler.SubmitReportHandler)))

	// Target routes (public for reading, moderator for overrides)
	mux.HandleFunc("/api/targets", handler.GetTargetsHandler)
	mux.HandleFunc("/api/targets/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/confirm") {
			moderatorAuth(http.HandlerFunc(handler.ConfirmTargetHandler)).ServeHTTP(w, r)
			return
		}
		if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/reject") {
			moderatorAuth(http.HandlerFunc(handler.RejectTargetHandler)).ServeHTTP(w, r)
			return
		}
		handler.GetTargetByIDHandler(w, r)
	})

	// Shelter routes (public)
	mux.HandleFunc("/api/shelters", handler.GetSheltersHandler)

	// Reporter profile routes (reporter token required)
	mux.Handle("/api/reporters/me", reporterAuth(http.HandlerFunc(reporterHandler.GetProfile)))
	mux.Handle("/api/reporters/me/location", reporterAuth(http.HandlerFunc(reporterHandler.UpdateLocation)))

	// Health check
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			if err := health(r.Context()); err != nil {
				logger.Error("health check failed", "error", err)
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

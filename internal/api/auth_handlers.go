package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/skyguard/skyguard/internal/auth"
	"github.com/skyguard/skyguard/internal/models"
	"github.com/skyguard/skyguard/internal/store"
)

// AuthHandler handles reporter registration and login.
type AuthHandler struct {
	reporters store.ReporterRepository
	config    auth.Config
	logger    *slog.Logger
}

// NewAuthHandler creates a new authentication handler.
func NewAuthHandler(reporters store.ReporterRepository, config auth.Config, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		reporters: reporters,
		config:    config,
		logger:    logger,
	}
}

// RegisterRequest represents a registration request.
type RegisterRequest struct {
	Username             string `json:"username"`
	Password             string `json:"password"`
	TelegramChatID       string `json:"telegram_chat_id,omitempty"`
	NotificationsEnabled bool   `json:"notifications_enabled,omitempty"`
}

// LoginRequest represents a login request.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse represents a successful auth response.
type TokenResponse struct {
	Token     string                 `json:"token"`
	ExpiresAt time.Time              `json:"expires_at"`
	Reporter  models.ReporterProfile `json:"reporter"`
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if len(req.Username) < 3 || len(req.Username) > 150 {
		writeError(w, http.StatusBadRequest, "username must be 3-150 characters")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	if _, err := h.reporters.GetByUsername(r.Context(), req.Username); err == nil {
		writeError(w, http.StatusConflict, "username already taken")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		h.logger.Error("failed to check username", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("failed to hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	profile := models.ReporterProfile{
		ID:                   uuid.NewString(),
		Username:             req.Username,
		PasswordHash:         hash,
		TrustRating:          0,
		CreatedAt:            time.Now().UTC(),
		TelegramChatID:       req.TelegramChatID,
		NotificationsEnabled: req.NotificationsEnabled,
	}

	if err := h.reporters.Create(r.Context(), profile); err != nil {
		h.logger.Error("failed to create reporter", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("reporter registered", "reporter_id", profile.ID, "username", profile.Username)
	h.respondWithToken(w, http.StatusCreated, profile)
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	profile, err := h.reporters.GetByUsername(r.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			h.logger.Error("failed to look up reporter", "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		// Generic message; do not reveal whether the username exists.
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if !auth.CheckPassword(req.Password, profile.PasswordHash) {
		h.logger.Warn("failed login attempt", "username", req.Username, "ip", r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	h.logger.Info("successful login", "reporter_id", profile.ID)
	h.respondWithToken(w, http.StatusOK, *profile)
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, status int, profile models.ReporterProfile) {
	ident := auth.Identity{ReporterID: profile.ID, Moderator: profile.Moderator}
	token, err := auth.GenerateToken(ident, h.config.JWTSecret, h.config.TokenDuration)
	if err != nil {
		h.logger.Error("failed to generate token", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, status, TokenResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(h.config.TokenDuration),
		Reporter:  profile,
	})
}

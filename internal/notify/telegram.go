// Package notify delivers best-effort alerts about confirmed targets to
// reporters over Telegram.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/skyguard/skyguard/internal/geo"
	"github.com/skyguard/skyguard/internal/models"
	"github.com/skyguard/skyguard/internal/store"
)

// AlertRadiusKM is the distance within which reporters are alerted about a
// confirmed target.
const AlertRadiusKM = 30.0

// TelegramNotifier sends confirmation alerts via the Telegram Bot API to
// reporters with a linked chat whose last-known location is within
// AlertRadiusKM of the target. Delivery is best effort; failures are logged
// and never surface to the confirmation path.
type TelegramNotifier struct {
	botToken   string
	apiBaseURL string
	reporters  store.ReporterRepository
	httpClient *http.Client
	logger     *slog.Logger
	enabled    bool
}

// NewTelegramNotifier creates a notifier. An empty bot token yields a
// disabled notifier that silently drops alerts.
func NewTelegramNotifier(botToken string, reporters store.ReporterRepository, logger *slog.Logger) *TelegramNotifier {
	n := &TelegramNotifier{
		botToken:   botToken,
		apiBaseURL: "https://api.telegram.org",
		reporters:  reporters,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger:  logger,
		enabled: botToken != "",
	}
	if !n.enabled {
		logger.Info("telegram notifier disabled, no bot token configured")
	}
	return n
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
}

// TargetConfirmed alerts every notifiable reporter within AlertRadiusKM of
// the confirmed target. Implements the engine's Notifier interface.
func (n *TelegramNotifier) TargetConfirmed(ctx context.Context, target models.Target) {
	if !n.enabled {
		return
	}

	profiles, err := n.reporters.ListNotifiable(ctx)
	if err != nil {
		n.logger.Error("failed to list notifiable reporters", "error", err)
		return
	}

	origin := geo.Point{Lat: target.Latitude, Lon: target.Longitude}

	sent := 0
	for _, p := range profiles {
		if p.LastLatitude == nil || p.LastLongitude == nil {
			continue
		}
		dist := geo.DistanceKM(origin, geo.Point{Lat: *p.LastLatitude, Lon: *p.LastLongitude})
		if dist > AlertRadiusKM {
			continue
		}
		if err := n.sendMessage(ctx, p.TelegramChatID, alertText(target, dist)); err != nil {
			n.logger.Warn("failed to send telegram alert",
				"reporter_id", p.ID,
				"target_id", target.ID,
				"error", err)
			continue
		}
		sent++
	}

	n.logger.Info("target confirmation alerts dispatched",
		"target_id", target.ID,
		"type", target.Type,
		"sent", sent)
}

func (n *TelegramNotifier) sendMessage(ctx context.Context, chatID, text string) error {
	body, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBaseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var parsed sendMessageResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return fmt.Errorf("failed to parse response (status %d): %w", resp.StatusCode, err)
	}
	if !parsed.OK {
		return fmt.Errorf("telegram API error (status %d): %s", resp.StatusCode, parsed.Description)
	}
	return nil
}

func alertText(target models.Target, distanceKM float64) string {
	radius := 0.0
	if target.Scoring != nil {
		radius = target.Scoring.DangerRadiusKM
	}
	return fmt.Sprintf("Confirmed %s threat %.1f km from your location (%.5f, %.5f). Estimated danger radius %.1f km. Seek shelter if you are in the area.",
		target.Type, distanceKM, target.Latitude, target.Longitude, radius)
}

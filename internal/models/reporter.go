package models

import "time"

// Trust rating bounds. Ratings are clamped to this range by every update.
const (
	TrustMin = -5.0
	TrustMax = 5.0
)

// ReporterProfile holds per-reporter reliability state. The trust rating is
// mutated only by the trust feedback loop, one adjustment per terminal target.
type ReporterProfile struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	TrustRating  float64   `json:"trust_rating"`
	Moderator    bool      `json:"moderator,omitempty"`
	CreatedAt    time.Time `json:"created_at"`

	// Optional last-known location, used for proximity alerts.
	LastLatitude  *float64 `json:"last_latitude,omitempty"`
	LastLongitude *float64 `json:"last_longitude,omitempty"`

	// Telegram integration for threat notifications.
	TelegramChatID       string `json:"telegram_chat_id,omitempty"`
	NotificationsEnabled bool   `json:"notifications_enabled"`
}

// ClampTrust bounds a trust rating to [TrustMin, TrustMax].
func ClampTrust(rating float64) float64 {
	if rating < TrustMin {
		return TrustMin
	}
	if rating > TrustMax {
		return TrustMax
	}
	return rating
}

package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/skyguard/skyguard/internal/models"
	"github.com/skyguard/skyguard/internal/store"
)

// PostgresReporterRepository implements store.ReporterRepository using
// PostgreSQL.
type PostgresReporterRepository struct {
	db *sql.DB
}

// NewPostgresReporterRepository creates a new PostgreSQL reporter repository.
func NewPostgresReporterRepository(db *sql.DB) *PostgresReporterRepository {
	return &PostgresReporterRepository{db: db}
}

const reporterColumns = `
	id, username, password_hash, trust_rating, moderator, created_at,
	last_latitude, last_longitude, telegram_chat_id, notifications_enabled
`

// Create inserts a new reporter profile.
func (r *PostgresReporterRepository) Create(ctx context.Context, profile models.ReporterProfile) error {
	query := `
		INSERT INTO reporters (` + reporterColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	var chatID *string
	if profile.TelegramChatID != "" {
		chatID = &profile.TelegramChatID
	}
	_, err := r.db.ExecContext(ctx, query,
		profile.ID,
		profile.Username,
		profile.PasswordHash,
		profile.TrustRating,
		profile.Moderator,
		profile.CreatedAt,
		profile.LastLatitude,
		profile.LastLongitude,
		chatID,
		profile.NotificationsEnabled,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reporter: %w", err)
	}
	return nil
}

// GetByID retrieves a profile, or store.ErrNotFound.
func (r *PostgresReporterRepository) GetByID(ctx context.Context, id string) (*models.ReporterProfile, error) {
	query := `SELECT ` + reporterColumns + ` FROM reporters WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByUsername retrieves a profile by username, or store.ErrNotFound.
func (r *PostgresReporterRepository) GetByUsername(ctx context.Context, username string) (*models.ReporterProfile, error) {
	query := `SELECT ` + reporterColumns + ` FROM reporters WHERE username = $1`
	return r.getOne(ctx, query, username)
}

// AdjustTrust applies a delta to a reporter's trust rating, clamped to the
// model bounds, and returns the new rating.
func (r *PostgresReporterRepository) AdjustTrust(ctx context.Context, id string, delta float64) (float64, error) {
	query := `
		UPDATE reporters
		SET trust_rating = GREATEST($2, LEAST($3, trust_rating + $4))
		WHERE id = $1
		RETURNING trust_rating
	`
	var rating float64
	err := r.db.QueryRowContext(ctx, query, id, models.TrustMin, models.TrustMax, delta).Scan(&rating)
	if err == sql.ErrNoRows {
		return 0, store.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to adjust trust: %w", err)
	}
	return rating, nil
}

// UpdateLocation records the reporter's last-known position.
func (r *PostgresReporterRepository) UpdateLocation(ctx context.Context, id string, lat, lon float64) error {
	query := `UPDATE reporters SET last_latitude = $2, last_longitude = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, lat, lon)
	if err != nil {
		return fmt.Errorf("failed to update location: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListNotifiable retrieves profiles with notifications enabled and a linked
// Telegram chat.
func (r *PostgresReporterRepository) ListNotifiable(ctx context.Context) ([]models.ReporterProfile, error) {
	query := `
		SELECT ` + reporterColumns + `
		FROM reporters
		WHERE notifications_enabled = TRUE AND telegram_chat_id IS NOT NULL
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifiable reporters: %w", err)
	}
	defer rows.Close()

	var profiles []models.ReporterProfile
	for rows.Next() {
		profile, err := scanReporter(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reporter: %w", err)
		}
		profiles = append(profiles, *profile)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reporters: %w", err)
	}
	return profiles, nil
}

func (r *PostgresReporterRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.ReporterProfile, error) {
	profile, err := scanReporter(r.db.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reporter: %w", err)
	}
	return profile, nil
}

func scanReporter(row scanner) (*models.ReporterProfile, error) {
	var profile models.ReporterProfile
	var lat, lon sql.NullFloat64
	var chatID sql.NullString

	err := row.Scan(
		&profile.ID,
		&profile.Username,
		&profile.PasswordHash,
		&profile.TrustRating,
		&profile.Moderator,
		&profile.CreatedAt,
		&lat,
		&lon,
		&chatID,
		&profile.NotificationsEnabled,
	)
	if err != nil {
		return nil, err
	}

	if lat.Valid {
		profile.LastLatitude = &lat.Float64
	}
	if lon.Valid {
		profile.LastLongitude = &lon.Float64
	}
	profile.TelegramChatID = chatID.String
	return &profile, nil
}

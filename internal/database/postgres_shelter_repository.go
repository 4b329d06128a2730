package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/skyguard/skyguard/internal/models"
)

// PostgresShelterRepository implements store.ShelterRepository using
// PostgreSQL.
type PostgresShelterRepository struct {
	db *sql.DB
}

// NewPostgresShelterRepository creates a new PostgreSQL shelter repository.
func NewPostgresShelterRepository(db *sql.DB) *PostgresShelterRepository {
	return &PostgresShelterRepository{db: db}
}

// List retrieves all shelters.
func (r *PostgresShelterRepository) List(ctx context.Context) ([]models.Shelter, error) {
	query := `
		SELECT id, title, address, capacity, latitude, longitude
		FROM shelters
		ORDER BY title ASC
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query shelters: %w", err)
	}
	defer rows.Close()

	var shelters []models.Shelter
	for rows.Next() {
		var s models.Shelter
		var address sql.NullString
		if err := rows.Scan(&s.ID, &s.Title, &address, &s.Capacity, &s.Latitude, &s.Longitude); err != nil {
			return nil, fmt.Errorf("failed to scan shelter: %w", err)
		}
		s.Address = address.String
		shelters = append(shelters, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate shelters: %w", err)
	}
	return shelters, nil
}

// Create stores a new shelter.
func (r *PostgresShelterRepository) Create(ctx context.Context, shelter models.Shelter) error {
	query := `
		INSERT INTO shelters (id, title, address, capacity, latitude, longitude)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	var address *string
	if shelter.Address != "" {
		address = &shelter.Address
	}
	_, err := r.db.ExecContext(ctx, query,
		shelter.ID,
		shelter.Title,
		address,
		shelter.Capacity,
		shelter.Latitude,
		shelter.Longitude,
	)
	if err != nil {
		return fmt.Errorf("failed to insert shelter: %w", err)
	}
	return nil
}

package store

import (
	"context"
	"errors"
	"sort"

	"github.com/skyguard/skyguard/internal/models"
)

// ErrNotFound is returned by repositories when the requested row is absent.
var ErrNotFound = errors.New("not found")

// TargetRepository defines the interface for storing and retrieving targets
// together with their owned reports.
type TargetRepository interface {
	// Create stores a new target and its initial report.
	Create(ctx context.Context, target models.Target) error

	// Update replaces an existing target, including its report set. The
	// engine serializes updates per target; the repository may assume no
	// interleaved writers for the same ID.
	Update(ctx context.Context, target models.Target) error

	// GetByID retrieves a target with its reports, or ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.Target, error)

	// ListActive retrieves all non-terminal targets with their reports.
	ListActive(ctx context.Context) ([]models.Target, error)

	// Query retrieves targets matching the filter, newest first. Rejected
	// targets are excluded unless the query names them explicitly.
	Query(ctx context.Context, query models.TargetQuery) ([]models.Target, error)
}

// ReporterRepository defines the interface for reporter profile storage.
type ReporterRepository interface {
	// Create stores a new reporter profile.
	Create(ctx context.Context, profile models.ReporterProfile) error

	// GetByID retrieves a profile, or ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.ReporterProfile, error)

	// GetByUsername retrieves a profile by username, or ErrNotFound.
	GetByUsername(ctx context.Context, username string) (*models.ReporterProfile, error)

	// AdjustTrust applies a clamped delta to a reporter's trust rating and
	// returns the new rating, or ErrNotFound.
	AdjustTrust(ctx context.Context, id string, delta float64) (float64, error)

	// UpdateLocation records the reporter's last-known position.
	UpdateLocation(ctx context.Context, id string, lat, lon float64) error

	// ListNotifiable retrieves profiles with notifications enabled and a
	// linked Telegram chat.
	ListNotifiable(ctx context.Context) ([]models.ReporterProfile, error)
}

// ShelterRepository defines the read-mostly interface for shelters.
type ShelterRepository interface {
	// List retrieves all shelters.
	List(ctx context.Context) ([]models.Shelter, error)

	// Create stores a new shelter.
	Create(ctx context.Context, shelter models.Shelter) error
}

// matches reports whether t passes the query filter.
func matches(t *models.Target, q models.TargetQuery) bool {
	if q.Status != nil {
		if t.Status != *q.Status {
			return false
		}
	} else if t.Status == models.StatusRejected && !q.IncludeRejected {
		return false
	}
	if q.Type != nil && t.Type != *q.Type {
		return false
	}
	if q.Probability != nil {
		if t.Scoring == nil || t.Scoring.Probability != *q.Probability {
			return false
		}
	}
	return true
}

// sortNewestFirst orders targets by creation time, newest first.
func sortNewestFirst(targets []models.Target) {
	sort.Slice(targets, func(i, j int) bool {
		return targets[i].CreatedAt.After(targets[j].CreatedAt)
	})
}

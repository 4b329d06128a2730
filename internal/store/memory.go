package store

import (
	"context"
	"sync"

	"github.com/skyguard/skyguard/internal/models"
)

// MemoryTargetRepository implements an in-memory target repository for
// testing and development.
type MemoryTargetRepository struct {
	mu      sync.RWMutex
	targets map[string]models.Target
}

// NewMemoryTargetRepository creates a new in-memory target repository.
func NewMemoryTargetRepository() *MemoryTargetRepository {
	return &MemoryTargetRepository{targets: make(map[string]models.Target)}
}

// Create stores a new target.
func (r *MemoryTargetRepository) Create(ctx context.Context, target models.Target) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targets[target.ID] = copyTarget(target)
	return nil
}

// Update replaces an existing target.
func (r *MemoryTargetRepository) Update(ctx context.Context, target models.Target) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.targets[target.ID]; !ok {
		return ErrNotFound
	}
	r.targets[target.ID] = copyTarget(target)
	return nil
}

// GetByID retrieves a target by ID.
func (r *MemoryTargetRepository) GetByID(ctx context.Context, id string) (*models.Target, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.targets[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := copyTarget(t)
	return &out, nil
}

// ListActive retrieves all non-terminal targets.
func (r *MemoryTargetRepository) ListActive(ctx context.Context) ([]models.Target, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Target
	for _, t := range r.targets {
		if !t.Status.Terminal() {
			out = append(out, copyTarget(t))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// Query retrieves targets matching the filter, newest first.
func (r *MemoryTargetRepository) Query(ctx context.Context, query models.TargetQuery) ([]models.Target, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.Target
	for _, t := range r.targets {
		if matches(&t, query) {
			out = append(out, copyTarget(t))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// copyTarget deep-copies a target so callers never share report slices or
// scoring structs with the store.
func copyTarget(t models.Target) models.Target {
	out := t
	out.Reports = append([]models.Report(nil), t.Reports...)
	if t.Scoring != nil {
		scoring := *t.Scoring
		out.Scoring = &scoring
	}
	if t.ResolvedAt != nil {
		resolved := *t.ResolvedAt
		out.ResolvedAt = &resolved
	}
	return out
}

// MemoryReporterRepository implements an in-memory reporter repository.
type MemoryReporterRepository struct {
	mu        sync.RWMutex
	reporters map[string]models.ReporterProfile
	byName    map[string]string // username -> ID
}

// NewMemoryReporterRepository creates a new in-memory reporter repository.
func NewMemoryReporterRepository() *MemoryReporterRepository {
	return &MemoryReporterRepository{
		reporters: make(map[string]models.ReporterProfile),
		byName:    make(map[string]string),
	}
}

// Create stores a new reporter profile.
func (r *MemoryReporterRepository) Create(ctx context.Context, profile models.ReporterProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reporters[profile.ID] = profile
	if profile.Username != "" {
		r.byName[profile.Username] = profile.ID
	}
	return nil
}

// GetByID retrieves a profile by reporter ID.
func (r *MemoryReporterRepository) GetByID(ctx context.Context, id string) (*models.ReporterProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.reporters[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// GetByUsername retrieves a profile by username.
func (r *MemoryReporterRepository) GetByUsername(ctx context.Context, username string) (*models.ReporterProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[username]
	if !ok {
		return nil, ErrNotFound
	}
	p := r.reporters[id]
	return &p, nil
}

// AdjustTrust applies a clamped delta and returns the new rating.
func (r *MemoryReporterRepository) AdjustTrust(ctx context.Context, id string, delta float64) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.reporters[id]
	if !ok {
		return 0, ErrNotFound
	}
	p.TrustRating = models.ClampTrust(p.TrustRating + delta)
	r.reporters[id] = p
	return p.TrustRating, nil
}

// UpdateLocation records the reporter's last-known position.
func (r *MemoryReporterRepository) UpdateLocation(ctx context.Context, id string, lat, lon float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.reporters[id]
	if !ok {
		return ErrNotFound
	}
	p.LastLatitude = &lat
	p.LastLongitude = &lon
	r.reporters[id] = p
	return nil
}

// ListNotifiable retrieves profiles with notifications enabled and a linked
// Telegram chat.
func (r *MemoryReporterRepository) ListNotifiable(ctx context.Context) ([]models.ReporterProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.ReporterProfile
	for _, p := range r.reporters {
		if p.NotificationsEnabled && p.TelegramChatID != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

// MemoryShelterRepository implements an in-memory shelter repository.
type MemoryShelterRepository struct {
	mu       sync.RWMutex
	shelters []models.Shelter
}

// NewMemoryShelterRepository creates a new in-memory shelter repository.
func NewMemoryShelterRepository() *MemoryShelterRepository {
	return &MemoryShelterRepository{}
}

// List retrieves all shelters.
func (r *MemoryShelterRepository) List(ctx context.Context) ([]models.Shelter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.Shelter(nil), r.shelters...), nil
}

// Create stores a new shelter.
func (r *MemoryShelterRepository) Create(ctx context.Context, shelter models.Shelter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shelters = append(r.shelters, shelter)
	return nil
}

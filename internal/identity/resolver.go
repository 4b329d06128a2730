// Package identity resolves reporter IDs to current trust ratings for the
// consensus engine. Ratings may be stale by a bounded margin, so lookups are
// served from a TTL cache over the reporter store.
package identity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/skyguard/skyguard/internal/store"
)

// Resolver caches trust ratings with a TTL to keep hot reporters off the
// database on every submission.
type Resolver struct {
	reporters store.ReporterRepository
	ttl       time.Duration
	clock     clockwork.Clock

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	trust    float64
	cachedAt time.Time
}

// NewResolver creates a resolver over the reporter store. A zero TTL disables
// caching.
func NewResolver(reporters store.ReporterRepository, ttl time.Duration, clock clockwork.Clock) *Resolver {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Resolver{
		reporters: reporters,
		ttl:       ttl,
		clock:     clock,
		cache:     make(map[string]cacheEntry),
	}
}

// Resolve returns the reporter's current trust rating. Unknown reporters
// surface store.ErrNotFound to the caller.
func (r *Resolver) Resolve(ctx context.Context, reporterID string) (float64, error) {
	now := r.clock.Now()

	if r.ttl > 0 {
		r.mu.RLock()
		entry, ok := r.cache[reporterID]
		r.mu.RUnlock()
		if ok && now.Sub(entry.cachedAt) < r.ttl {
			return entry.trust, nil
		}
	}

	profile, err := r.reporters.GetByID(ctx, reporterID)
	if err != nil {
		return 0, fmt.Errorf("resolve reporter %s: %w", reporterID, err)
	}

	if r.ttl > 0 {
		r.mu.Lock()
		r.cache[reporterID] = cacheEntry{trust: profile.TrustRating, cachedAt: now}
		r.mu.Unlock()
	}

	return profile.TrustRating, nil
}

// Invalidate drops a reporter from the cache, e.g. after a trust update.
func (r *Resolver) Invalidate(reporterID string) {
	r.mu.Lock()
	delete(r.cache, reporterID)
	r.mu.Unlock()
}

package engine

import (
	"time"

	"github.com/skyguard/skyguard/internal/geo"
	"github.com/skyguard/skyguard/internal/models"
)

// typesCompatible reports whether a report of type rt may corroborate a
// target of type tt. Same type always matches; explosions merge with any
// type, in either direction, since a blast corroborates whatever caused it.
func typesCompatible(rt, tt models.TargetType) bool {
	if rt == tt {
		return true
	}
	return rt == models.TypeExplosion || tt == models.TypeExplosion
}

// selectCandidate picks the target a new report should extend, or nil if the
// report starts a new cluster. Candidates are non-terminal targets of a
// compatible type created within the cluster window; the nearest within the
// type's proximity threshold wins, and equal distances consolidate into the
// older target.
func (e *Engine) selectCandidate(report *models.Report, candidates []models.Target, now time.Time) *models.Target {
	point := geo.Point{Lat: report.Latitude, Lon: report.Longitude}

	var best *models.Target
	bestDist := 0.0

	for i := range candidates {
		t := &candidates[i]
		if t.Status.Terminal() {
			continue
		}
		if !typesCompatible(report.Type, t.Type) {
			continue
		}
		if now.Sub(t.CreatedAt) > e.cfg.ClusterWindow {
			continue
		}

		dist := geo.DistanceKM(point, geo.Point{Lat: t.Latitude, Lon: t.Longitude})

		// Cross-type explosion merges use the wider of the two thresholds.
		threshold := e.cfg.ProximityForType(report.Type)
		if tt := e.cfg.ProximityForType(t.Type); tt > threshold {
			threshold = tt
		}
		if dist > threshold {
			continue
		}

		switch {
		case best == nil:
			best, bestDist = t, dist
		case dist < bestDist:
			best, bestDist = t, dist
		case dist == bestDist && t.CreatedAt.Before(best.CreatedAt):
			best = t
		}
	}

	return best
}

// recomputeCentroid sets the target's position to the trust-weighted mean of
// its reports. Weights share the scorer's floor so zero or negative trust
// cannot drag the centroid.
func (e *Engine) recomputeCentroid(t *models.Target) {
	points := make([]geo.Point, len(t.Reports))
	weights := make([]float64, len(t.Reports))
	for i, r := range t.Reports {
		points[i] = geo.Point{Lat: r.Latitude, Lon: r.Longitude}
		weights[i] = e.scorer.weight(r.TrustAtSubmission)
	}

	c := geo.WeightedCentroid(points, weights)
	t.Latitude = c.Lat
	t.Longitude = c.Lon
}

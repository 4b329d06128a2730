package models

import (
	"time"
)

// Target is an aggregated real-world event candidate built from one or more
// Reports. A Target owns its Reports exclusively; Reports never move between
// Targets once assigned.
type Target struct {
	ID         string       `json:"id"`
	Type       TargetType   `json:"target_type"`
	Latitude   float64      `json:"latitude"`
	Longitude  float64      `json:"longitude"`
	Status     TargetStatus `json:"status"`
	Scoring    *Scoring     `json:"scoring,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	ResolvedAt *time.Time   `json:"resolved_at,omitempty"`
	// FeedbackSent marks that the trust feedback loop has been enqueued for
	// this target; a target is fed back at most once.
	FeedbackSent bool     `json:"-"`
	Reports      []Report `json:"reports,omitempty"`
}

// Scoring carries the consensus-derived fields of a Target. It is nil while
// the target is still pending so "not yet scored" is distinct from "scored
// zero".
type Scoring struct {
	WeightedScore  float64     `json:"weighted_score"`
	Probability    Probability `json:"probability"`
	ReportCount    int         `json:"report_count"`
	DangerRadiusKM float64     `json:"danger_radius_km"`
}

// TargetStatus is the lifecycle state of a Target.
type TargetStatus string

const (
	StatusPending     TargetStatus = "pending"
	StatusUnconfirmed TargetStatus = "unconfirmed"
	StatusConfirmed   TargetStatus = "confirmed"
	StatusRejected    TargetStatus = "rejected"
)

// Terminal reports whether s admits no further transitions.
func (s TargetStatus) Terminal() bool {
	return s == StatusConfirmed || s == StatusRejected
}

// Probability is the coarse confidence tier derived from the weighted score.
type Probability string

const (
	ProbabilityLow    Probability = "low"
	ProbabilityMedium Probability = "medium"
	ProbabilityHigh   Probability = "high"
)

// Reporters returns the distinct reporter IDs in report arrival order.
func (t *Target) Reporters() []string {
	seen := make(map[string]bool, len(t.Reports))
	ids := make([]string, 0, len(t.Reports))
	for _, r := range t.Reports {
		if seen[r.ReporterID] {
			continue
		}
		seen[r.ReporterID] = true
		ids = append(ids, r.ReporterID)
	}
	return ids
}

// Summary is the client-facing projection of a Target, without its reports.
type Summary struct {
	ID             string       `json:"id"`
	Type           TargetType   `json:"target_type"`
	Latitude       float64      `json:"latitude"`
	Longitude      float64      `json:"longitude"`
	Status         TargetStatus `json:"status"`
	Probability    *Probability `json:"probability,omitempty"`
	ReportCount    *int         `json:"report_count,omitempty"`
	WeightedScore  *float64     `json:"weighted_score,omitempty"`
	DangerRadiusKM *float64     `json:"danger_radius_km,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	ResolvedAt     *time.Time   `json:"resolved_at,omitempty"`
}

// Summarize builds the client projection. Scoring fields are present only
// once the target has left pending.
func (t *Target) Summarize() Summary {
	s := Summary{
		ID:         t.ID,
		Type:       t.Type,
		Latitude:   t.Latitude,
		Longitude:  t.Longitude,
		Status:     t.Status,
		CreatedAt:  t.CreatedAt,
		ResolvedAt: t.ResolvedAt,
	}
	if t.Scoring != nil {
		s.Probability = &t.Scoring.Probability
		s.ReportCount = &t.Scoring.ReportCount
		s.WeightedScore = &t.Scoring.WeightedScore
		s.DangerRadiusKM = &t.Scoring.DangerRadiusKM
	}
	return s
}

// TargetQuery filters target listings.
type TargetQuery struct {
	Status      *TargetStatus
	Probability *Probability
	Type        *TargetType
	// IncludeRejected widens the listing to terminal-rejected targets.
	// The public listing never sets it.
	IncludeRejected bool
}

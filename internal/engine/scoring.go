package engine

import (
	"math"

	"github.com/skyguard/skyguard/internal/config"
	"github.com/skyguard/skyguard/internal/models"
)

// Scorer computes a target's aggregate confidence from the trust snapshots of
// every contributing report. It is a pure function of the report set: running
// it twice over unchanged reports yields identical output.
type Scorer struct {
	cfg config.EngineConfig
}

// NewScorer creates a scorer with the given tunables.
func NewScorer(cfg config.EngineConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score computes the weighted score for a report set on the normalized [0,1]
// scale: the mean of floored, normalized trust snapshots, boosted by
// corroboration volume without letting raw count dominate trust quality.
func (s *Scorer) Score(reports []models.Report) float64 {
	if len(reports) == 0 {
		return 0
	}

	total := 0.0
	for _, r := range reports {
		total += s.weight(r.TrustAtSubmission)
	}
	mean := total / float64(len(reports))

	boosted := mean * (1 + s.cfg.CorroborationBoost*math.Log(float64(len(reports))))

	return clamp01(boosted)
}

// weight maps a raw trust rating to a clustering/scoring weight: clamp to the
// trust bounds, normalize to [0,1], then floor so zero or negative trust
// cannot collapse the aggregate.
func (s *Scorer) weight(trust float64) float64 {
	norm := (models.ClampTrust(trust) - models.TrustMin) / (models.TrustMax - models.TrustMin)
	return math.Max(norm, s.cfg.TrustWeightFloor)
}

// Probability buckets a weighted score into the coarse confidence tier.
func (s *Scorer) Probability(score float64) models.Probability {
	switch {
	case score >= s.cfg.ScoreT2:
		return models.ProbabilityHigh
	case score >= s.cfg.ScoreT1:
		return models.ProbabilityMedium
	default:
		return models.ProbabilityLow
	}
}

// Base danger radii per threat type, in kilometers. Display only; never used
// for clustering decisions.
var baseDangerRadiusKM = map[models.TargetType]float64{
	models.TypeDrone:      1.0,
	models.TypeHelicopter: 1.5,
	models.TypePlane:      2.0,
	models.TypeExplosion:  3.0,
	models.TypeRocket:     5.0,
	models.TypeOther:      1.0,
}

// DangerRadiusKM derives the display radius from the threat type and the
// probability tier: one scale step up per tier.
func (s *Scorer) DangerRadiusKM(t models.TargetType, p models.Probability) float64 {
	base, ok := baseDangerRadiusKM[t]
	if !ok {
		base = baseDangerRadiusKM[models.TypeOther]
	}

	switch p {
	case models.ProbabilityHigh:
		return base * 2.0
	case models.ProbabilityMedium:
		return base * 1.5
	default:
		return base
	}
}

// Rescore recomputes the full scoring block for a target's current report
// set.
func (s *Scorer) Rescore(t *models.Target) models.Scoring {
	score := s.Score(t.Reports)
	prob := s.Probability(score)
	return models.Scoring{
		WeightedScore:  score,
		Probability:    prob,
		ReportCount:    len(t.Reports),
		DangerRadiusKM: s.DangerRadiusKM(t.Type, prob),
	}
}

func clamp01(v float64) float64 {
	return math.Max(0.0, math.Min(1.0, v))
}

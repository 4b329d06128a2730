package engine

import (
	"time"

	"github.com/skyguard/skyguard/internal/models"
)

// evaluate recomputes scoring for the target's current report set and applies
// the threshold-driven transitions:
//
//	pending     -> unconfirmed  (>=2 reports and score >= T1)
//	unconfirmed -> confirmed    (score >= T2)
//
// Scoring fields become visible only once the target leaves pending, so "not
// yet scored" stays distinct from "scored zero". Returns true when the target
// entered a terminal status during this evaluation.
func (e *Engine) evaluate(t *models.Target, now time.Time) bool {
	prev := t.Status
	scoring := e.scorer.Rescore(t)

	if t.Status == models.StatusPending &&
		scoring.ReportCount >= 2 &&
		scoring.WeightedScore >= e.cfg.ScoreT1 {
		t.Status = models.StatusUnconfirmed
	}

	if t.Status == models.StatusUnconfirmed &&
		scoring.WeightedScore >= e.cfg.ScoreT2 {
		t.Status = models.StatusConfirmed
	}

	if t.Status == models.StatusPending {
		t.Scoring = nil
	} else {
		t.Scoring = &scoring
	}

	if t.Status.Terminal() && !prev.Terminal() {
		e.markResolved(t, now)
		return true
	}
	return false
}

// markResolved stamps the terminal transition. FeedbackSent guards the
// trust feedback loop: a target is fed back at most once, and the flag is
// persisted together with the status so overlapping evaluations cannot
// double-enqueue.
func (e *Engine) markResolved(t *models.Target, now time.Time) {
	resolved := now
	t.ResolvedAt = &resolved
	t.FeedbackSent = true
}

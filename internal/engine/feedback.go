package engine

import (
	"context"

	"github.com/skyguard/skyguard/internal/models"
)

// enqueueFeedback hands a terminal target to the asynchronous trust feedback
// worker. A slow trust update must never delay ingest, so when the queue is
// full the send is moved off the caller's goroutine instead of blocking it.
// Every send is guarded by the done channel; once the engine is stopped the
// feedback is dropped with a warning instead of blocking forever.
func (e *Engine) enqueueFeedback(target models.Target) {
	select {
	case e.feedbackCh <- target:
	case <-e.done:
		e.logger.Warn("engine stopped, dropping trust feedback",
			"target_id", target.ID)
	default:
		e.logger.Warn("feedback queue full, enqueueing asynchronously",
			"target_id", target.ID)
		go func() {
			select {
			case e.feedbackCh <- target:
			case <-e.done:
				e.logger.Warn("engine stopped, dropping trust feedback",
					"target_id", target.ID)
			}
		}()
	}
}

// runFeedback is the trust feedback loop worker. Failures are logged and
// skipped; they never affect the state transition that enqueued the target.
func (e *Engine) runFeedback(ctx context.Context) {
	defer e.wg.Done()

	for {
		select {
		case target := <-e.feedbackCh:
			e.applyFeedback(ctx, target)
		case <-ctx.Done():
			// Drain whatever was enqueued before shutdown.
			for {
				select {
				case target := <-e.feedbackCh:
					e.applyFeedback(context.WithoutCancel(ctx), target)
				default:
					return
				}
			}
		}
	}
}

// applyFeedback closes the loop from outcome to reporter trust. Each distinct
// contributing reporter is adjusted exactly once per terminal target,
// regardless of how many reports they contributed to it.
func (e *Engine) applyFeedback(ctx context.Context, target models.Target) {
	deltas := e.trustDeltas(&target)

	for reporterID, delta := range deltas {
		newRating, err := e.reporters.AdjustTrust(ctx, reporterID, delta)
		if err != nil {
			trustErr := &TrustUpdateError{ReporterID: reporterID, Err: err}
			e.logger.Error("trust update failed, skipping reporter",
				"target_id", target.ID,
				"reporter_id", reporterID,
				"error", trustErr)
			continue
		}
		e.metrics.TrustUpdated(string(target.Status))
		e.logger.Debug("trust adjusted",
			"reporter_id", reporterID,
			"target_id", target.ID,
			"delta", delta,
			"trust_rating", newRating)
	}
}

// trustDeltas computes the per-reporter adjustment for a terminal target.
//
// Confirmed: every distinct contributor earns the fixed reward.
//
// Rejected: the penalty scales with how early the reporter's first report
// arrived relative to corroboration. The first (or lone) reporter of a false
// event is penalized twice the base amount, the latest corroborator exactly
// the base, linear in between. Clamping to the trust bounds happens in the
// store.
func (e *Engine) trustDeltas(target *models.Target) map[string]float64 {
	deltas := make(map[string]float64)

	switch target.Status {
	case models.StatusConfirmed:
		for _, id := range target.Reporters() {
			deltas[id] = e.cfg.ConfirmReward
		}

	case models.StatusRejected:
		n := len(target.Reports)
		seen := make(map[string]bool, n)
		for i, r := range target.Reports {
			if seen[r.ReporterID] {
				continue
			}
			seen[r.ReporterID] = true

			factor := 2.0
			if n > 1 {
				factor = 2.0 - float64(i)/float64(n-1)
			}
			deltas[r.ReporterID] = -e.cfg.RejectBasePenalty * factor
		}
	}

	return deltas
}

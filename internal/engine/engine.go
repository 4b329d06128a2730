// Package engine implements the report aggregation and consensus core: it
// turns a stream of independent, noisy, possibly duplicate or malicious
// reports into geographically distinct, confidence-scored targets, and feeds
// confirmed/rejected outcomes back into reporter trust.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/skyguard/skyguard/internal/config"
	"github.com/skyguard/skyguard/internal/metrics"
	"github.com/skyguard/skyguard/internal/models"
	"github.com/skyguard/skyguard/internal/store"
)

// TrustResolver resolves a reporter ID to its current trust rating. The
// rating may be stale by a bounded margin; that is acceptable since every
// report snapshots trust at submission time.
type TrustResolver interface {
	Resolve(ctx context.Context, reporterID string) (float64, error)
}

// Notifier is told about confirmed targets so collaborators (proximity
// alerts) can react. Implementations must not block.
type Notifier interface {
	TargetConfirmed(ctx context.Context, target models.Target)
}

// Engine is the consensus core. All target mutations run under a per-target
// lock: attach report → recompute score → evaluate transition is one atomic
// critical section. Reports destined for different targets proceed in
// parallel; creation of brand-new targets is serialized per target type.
type Engine struct {
	targets   store.TargetRepository
	reporters store.ReporterRepository
	identity  TrustResolver
	scorer    *Scorer
	cfg       config.EngineConfig
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *metrics.EngineCollector
	notifier  Notifier

	locks    *lockTable
	limiters sync.Map // reporterID -> *rate.Limiter

	feedbackCh chan models.Target
	done       chan struct{}
	wg         sync.WaitGroup
	stop       context.CancelFunc
	stopOnce   sync.Once
}

// New constructs an Engine. notifier and collector may be nil.
func New(
	targets store.TargetRepository,
	reporters store.ReporterRepository,
	identity TrustResolver,
	cfg config.EngineConfig,
	clock clockwork.Clock,
	collector *metrics.EngineCollector,
	notifier Notifier,
	logger *slog.Logger,
) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	queue := cfg.FeedbackQueue
	if queue <= 0 {
		queue = 1
	}
	return &Engine{
		targets:    targets,
		reporters:  reporters,
		identity:   identity,
		scorer:     NewScorer(cfg),
		cfg:        cfg,
		clock:      clock,
		logger:     logger,
		metrics:    collector,
		notifier:   notifier,
		locks:      newLockTable(),
		feedbackCh: make(chan models.Target, queue),
		done:       make(chan struct{}),
	}
}

// Start launches the asynchronous trust feedback worker.
func (e *Engine) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	e.stop = cancel
	e.wg.Add(1)
	go e.runFeedback(ctx)
}

// Stop shuts down the feedback worker after draining queued targets. The
// feedback channel is never closed: producers are quiesced through the done
// channel first, so a send spilled onto a goroutine cannot race the shutdown.
// Safe to call more than once and after the worker's context was cancelled.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.done)
		if e.stop != nil {
			e.stop()
		}
		e.wg.Wait()
	})
}

// submittedAtSkew is the clock drift tolerated on client-supplied timestamps.
const submittedAtSkew = time.Minute

// Submission carries the fields of one report submission.
type Submission struct {
	ReporterID  string
	Type        models.TargetType
	Latitude    float64
	Longitude   float64
	Description string
	SubmittedAt time.Time // zero value means "now"
}

// SubmitReport validates and ingests one report, attaches it to an existing
// target or creates a new one, rescores, evaluates lifecycle transitions, and
// returns the updated target summary. Attach is atomic with respect to the
// per-target lock: cancellation before commit leaves no observable change.
func (e *Engine) SubmitReport(ctx context.Context, sub Submission) (models.Summary, error) {
	if !e.allow(sub.ReporterID) {
		return models.Summary{}, &RateLimitError{ReporterID: sub.ReporterID}
	}

	now := e.clock.Now()
	submittedAt := sub.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = now
	} else {
		if submittedAt.After(now.Add(submittedAtSkew)) {
			return models.Summary{}, &ValidationError{Reason: "submitted_at cannot be in the future"}
		}
		if now.Sub(submittedAt) > e.cfg.ClusterWindow {
			return models.Summary{}, &ValidationError{Reason: "submitted_at is older than the clustering window"}
		}
	}

	report := models.Report{
		ID:          uuid.NewString(),
		ReporterID:  sub.ReporterID,
		Type:        sub.Type,
		Latitude:    sub.Latitude,
		Longitude:   sub.Longitude,
		Description: sub.Description,
		SubmittedAt: submittedAt,
	}

	if err := report.Validate(); err != nil {
		return models.Summary{}, &ValidationError{Reason: err.Error()}
	}

	trust, err := e.identity.Resolve(ctx, sub.ReporterID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Summary{}, &UnauthorizedError{ReporterID: sub.ReporterID}
		}
		return models.Summary{}, fmt.Errorf("resolve reporter trust: %w", err)
	}
	report.TrustAtSubmission = trust

	summary, err := e.ingest(ctx, &report, now)
	if err != nil {
		return models.Summary{}, err
	}

	e.metrics.ReportIngested(string(report.Type))
	return summary, nil
}

// ingest routes the report to an existing cluster or a new target. Candidate
// selection happens outside any lock, so the chosen target is re-validated
// once its lock is held; if it went terminal in the meantime the selection is
// retried.
func (e *Engine) ingest(ctx context.Context, report *models.Report, now time.Time) (models.Summary, error) {
	const maxAttempts = 3

	for attempt := 0; attempt < maxAttempts; attempt++ {
		candidates, err := e.targets.ListActive(ctx)
		if err != nil {
			return models.Summary{}, fmt.Errorf("list active targets: %w", err)
		}

		if cand := e.selectCandidate(report, candidates, now); cand != nil {
			summary, ok, err := e.tryAttach(ctx, report, cand.ID, now)
			if err != nil {
				return models.Summary{}, err
			}
			if ok {
				return summary, nil
			}
			// Target resolved concurrently; rescan.
			continue
		}

		summary, created, err := e.tryCreate(ctx, report, now)
		if err != nil {
			return models.Summary{}, err
		}
		if created {
			return summary, nil
		}
		// A concurrent submission created a matching target first; rescan.
	}

	return models.Summary{}, &ConcurrencyTimeoutError{Key: string(report.Type)}
}

// tryAttach appends the report to the target under its lock. Returns
// ok=false when the target is gone or terminal and the caller should redo
// candidate selection.
func (e *Engine) tryAttach(ctx context.Context, report *models.Report, targetID string, now time.Time) (models.Summary, bool, error) {
	release, err := e.acquire(ctx, targetID)
	if err != nil {
		return models.Summary{}, false, err
	}
	defer release()

	target, err := e.targets.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Summary{}, false, nil
		}
		return models.Summary{}, false, fmt.Errorf("get target %s: %w", targetID, err)
	}
	if target.Status.Terminal() || !typesCompatible(report.Type, target.Type) {
		return models.Summary{}, false, nil
	}

	// Caller cancelled; nothing has been made observable yet.
	if err := ctx.Err(); err != nil {
		return models.Summary{}, false, err
	}

	report.TargetID = target.ID
	target.Reports = append(target.Reports, *report)
	e.recomputeCentroid(target)
	transitioned := e.evaluate(target, now)

	if err := e.targets.Update(ctx, *target); err != nil {
		return models.Summary{}, false, fmt.Errorf("update target %s: %w", target.ID, err)
	}

	e.logger.Debug("report attached",
		"target_id", target.ID,
		"report_id", report.ID,
		"report_count", len(target.Reports),
		"status", target.Status)

	e.afterPersist(ctx, *target, transitioned)

	return target.Summarize(), true, nil
}

// tryCreate starts a new pending target for the report. Creation is
// serialized per target type so simultaneous first reports of one event
// cannot fan out into duplicate targets; the candidate scan is repeated under
// the creation lock before committing.
func (e *Engine) tryCreate(ctx context.Context, report *models.Report, now time.Time) (models.Summary, bool, error) {
	release, err := e.acquire(ctx, "create:"+string(report.Type))
	if err != nil {
		return models.Summary{}, false, err
	}
	defer release()

	candidates, err := e.targets.ListActive(ctx)
	if err != nil {
		return models.Summary{}, false, fmt.Errorf("list active targets: %w", err)
	}
	if cand := e.selectCandidate(report, candidates, now); cand != nil {
		return models.Summary{}, false, nil
	}

	if err := ctx.Err(); err != nil {
		return models.Summary{}, false, err
	}

	target := models.Target{
		ID:        uuid.NewString(),
		Type:      report.Type,
		Latitude:  report.Latitude,
		Longitude: report.Longitude,
		Status:    models.StatusPending,
		CreatedAt: now,
	}
	report.TargetID = target.ID
	target.Reports = []models.Report{*report}

	if err := e.targets.Create(ctx, target); err != nil {
		return models.Summary{}, false, fmt.Errorf("create target: %w", err)
	}

	e.logger.Info("target created",
		"target_id", target.ID,
		"target_type", target.Type,
		"latitude", target.Latitude,
		"longitude", target.Longitude)
	e.metrics.TargetCreated(string(target.Type))

	return target.Summarize(), true, nil
}

// Confirm forces a non-terminal target to confirmed (moderator override).
func (e *Engine) Confirm(ctx context.Context, targetID string) (models.Summary, error) {
	return e.moderate(ctx, targetID, models.StatusConfirmed)
}

// Reject forces a non-terminal target to rejected (moderator override).
func (e *Engine) Reject(ctx context.Context, targetID string) (models.Summary, error) {
	return e.moderate(ctx, targetID, models.StatusRejected)
}

func (e *Engine) moderate(ctx context.Context, targetID string, status models.TargetStatus) (models.Summary, error) {
	release, err := e.acquire(ctx, targetID)
	if err != nil {
		return models.Summary{}, err
	}
	defer release()

	target, err := e.targets.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Summary{}, &NotFoundError{TargetID: targetID}
		}
		return models.Summary{}, fmt.Errorf("get target %s: %w", targetID, err)
	}
	if target.Status.Terminal() {
		return models.Summary{}, &NotFoundError{TargetID: targetID}
	}

	now := e.clock.Now()
	scoring := e.scorer.Rescore(target)
	target.Scoring = &scoring
	target.Status = status
	e.markResolved(target, now)

	if err := e.targets.Update(ctx, *target); err != nil {
		return models.Summary{}, fmt.Errorf("update target %s: %w", target.ID, err)
	}

	e.logger.Info("moderator transition applied",
		"target_id", target.ID,
		"status", target.Status)

	e.afterPersist(ctx, *target, true)

	return target.Summarize(), nil
}

// Sweep applies time-based decay: non-terminal targets with no corroboration
// inside the staleness window are rejected. It takes the same per-target lock
// as ingest and re-checks state under it, so an overlapping ingest-triggered
// evaluation cannot be lost; busy targets are skipped and caught by the next
// sweep.
func (e *Engine) Sweep(ctx context.Context) error {
	active, err := e.targets.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("list active targets: %w", err)
	}

	now := e.clock.Now()
	for i := range active {
		t := &active[i]
		if !e.stale(t, now) {
			continue
		}
		if err := e.sweepOne(ctx, t.ID, now); err != nil {
			var timeout *ConcurrencyTimeoutError
			if errors.As(err, &timeout) {
				e.logger.Debug("sweep skipped busy target", "target_id", t.ID)
				continue
			}
			return err
		}
	}
	return nil
}

func (e *Engine) sweepOne(ctx context.Context, targetID string, now time.Time) error {
	release, err := e.acquire(ctx, targetID)
	if err != nil {
		return err
	}
	defer release()

	target, err := e.targets.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("get target %s: %w", targetID, err)
	}
	if target.Status.Terminal() || !e.stale(target, now) {
		return nil
	}

	scoring := e.scorer.Rescore(target)
	target.Scoring = &scoring
	target.Status = models.StatusRejected
	e.markResolved(target, now)

	if err := e.targets.Update(ctx, *target); err != nil {
		return fmt.Errorf("update target %s: %w", target.ID, err)
	}

	e.logger.Info("target rejected by staleness decay",
		"target_id", target.ID,
		"age", now.Sub(target.CreatedAt).Round(time.Second))

	e.afterPersist(ctx, *target, true)
	return nil
}

// stale reports whether the target has gone without corroboration longer
// than the staleness window. Age is measured from the newest report so an
// actively corroborated unconfirmed target keeps living.
func (e *Engine) stale(t *models.Target, now time.Time) bool {
	last := t.CreatedAt
	for _, r := range t.Reports {
		if r.SubmittedAt.After(last) {
			last = r.SubmittedAt
		}
	}
	return now.Sub(last) > e.cfg.StalenessWindow
}

// ListTargets returns client-facing summaries. Rejected targets are excluded
// unless the query names them.
func (e *Engine) ListTargets(ctx context.Context, query models.TargetQuery) ([]models.Summary, error) {
	targets, err := e.targets.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query targets: %w", err)
	}
	summaries := make([]models.Summary, len(targets))
	for i := range targets {
		summaries[i] = targets[i].Summarize()
	}
	return summaries, nil
}

// GetTarget returns one target summary or NotFoundError.
func (e *Engine) GetTarget(ctx context.Context, targetID string) (models.Summary, error) {
	target, err := e.targets.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Summary{}, &NotFoundError{TargetID: targetID}
		}
		return models.Summary{}, fmt.Errorf("get target %s: %w", targetID, err)
	}
	return target.Summarize(), nil
}

// acquire wraps the lock table with the configured timeout.
func (e *Engine) acquire(ctx context.Context, key string) (func(), error) {
	release, err := e.locks.acquire(ctx, key, e.cfg.LockTimeout)
	if err != nil {
		var timeout *ConcurrencyTimeoutError
		if errors.As(err, &timeout) {
			e.metrics.LockTimeout()
		}
		return nil, err
	}
	return release, nil
}

// allow enforces the per-reporter submission rate limit.
func (e *Engine) allow(reporterID string) bool {
	if e.cfg.ReportRateLimit <= 0 {
		return true
	}
	v, _ := e.limiters.LoadOrStore(reporterID,
		rate.NewLimiter(rate.Limit(e.cfg.ReportRateLimit), e.cfg.ReportRateBurst))
	return v.(*rate.Limiter).Allow()
}

// afterPersist runs the post-commit hooks for a successfully stored target
// state: metrics, the one-shot feedback enqueue, and confirmation alerts.
func (e *Engine) afterPersist(ctx context.Context, target models.Target, transitioned bool) {
	if !transitioned || !target.Status.Terminal() {
		return
	}

	switch target.Status {
	case models.StatusConfirmed:
		e.metrics.TargetConfirmed(string(target.Type))
		if e.notifier != nil {
			go e.notifier.TargetConfirmed(context.WithoutCancel(ctx), target)
		}
	case models.StatusRejected:
		e.metrics.TargetRejected(string(target.Type))
	}

	e.enqueueFeedback(target)
}

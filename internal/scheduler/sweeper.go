// Package scheduler runs the periodic maintenance loops of the consensus
// engine.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// Sweepable is the slice of the engine the sweeper needs.
type Sweepable interface {
	Sweep(ctx context.Context) error
}

// StalenessSweeper periodically evaluates time-based decay so targets that
// never gather corroboration get rejected even when no new report arrives to
// trigger an evaluation.
type StalenessSweeper struct {
	engine   Sweepable
	logger   *slog.Logger
	clock    clockwork.Clock
	interval time.Duration
	stopChan chan struct{}
}

// NewStalenessSweeper creates a sweeper ticking at the given interval.
func NewStalenessSweeper(engine Sweepable, interval time.Duration, clock clockwork.Clock, logger *slog.Logger) *StalenessSweeper {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &StalenessSweeper{
		engine:   engine,
		logger:   logger,
		clock:    clock,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the sweep loop. It runs once immediately, then on every tick
// until the context is cancelled or Stop is called.
func (s *StalenessSweeper) Start(ctx context.Context) {
	s.logger.Info("starting staleness sweeper", "interval", s.interval)
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)

	for {
		select {
		case <-ticker.Chan():
			s.sweep(ctx)
		case <-s.stopChan:
			s.logger.Info("staleness sweeper stopped")
			return
		case <-ctx.Done():
			s.logger.Info("staleness sweeper stopping due to context cancellation")
			return
		}
	}
}

// Stop stops the sweeper loop.
func (s *StalenessSweeper) Stop() {
	close(s.stopChan)
}

func (s *StalenessSweeper) sweep(ctx context.Context) {
	if err := s.engine.Sweep(ctx); err != nil {
		s.logger.Error("staleness sweep failed", "error", err)
	}
}

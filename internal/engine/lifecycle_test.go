package engine

import (
	"testing"
	"time"

	"github.com/skyguard/skyguard/internal/config"
	"github.com/skyguard/skyguard/internal/models"
)

func TestEvaluate(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	e := &Engine{cfg: cfg, scorer: NewScorer(cfg)}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("lone report stays pending regardless of trust", func(t *testing.T) {
		target := &models.Target{Status: models.StatusPending, Reports: reportsWithTrust(5)}
		if e.evaluate(target, now) {
			t.Error("evaluate() reported a terminal transition")
		}
		if target.Status != models.StatusPending {
			t.Errorf("status = %v, want pending with a single report", target.Status)
		}
		if target.Scoring != nil {
			t.Error("pending target must keep Scoring nil")
		}
	})

	t.Run("two low-trust reports stay pending", func(t *testing.T) {
		target := &models.Target{Status: models.StatusPending, Reports: reportsWithTrust(-5, -5)}
		e.evaluate(target, now)
		if target.Status != models.StatusPending {
			t.Errorf("status = %v, want pending below T1", target.Status)
		}
	})

	t.Run("corroborated target promotes to unconfirmed", func(t *testing.T) {
		target := &models.Target{Status: models.StatusPending, Reports: reportsWithTrust(0, 0)}
		if e.evaluate(target, now) {
			t.Error("promotion to unconfirmed is not terminal")
		}
		if target.Status != models.StatusUnconfirmed {
			t.Errorf("status = %v, want unconfirmed", target.Status)
		}
		if target.Scoring == nil {
			t.Fatal("scoring must become visible once the target leaves pending")
		}
	})

	t.Run("strong consensus passes straight through to confirmed", func(t *testing.T) {
		target := &models.Target{Status: models.StatusPending, Reports: reportsWithTrust(5, 5, 5)}
		if !e.evaluate(target, now) {
			t.Error("evaluate() must report the terminal transition")
		}
		if target.Status != models.StatusConfirmed {
			t.Errorf("status = %v, want confirmed", target.Status)
		}
		if target.ResolvedAt == nil || !target.ResolvedAt.Equal(now) {
			t.Error("terminal transition must stamp ResolvedAt")
		}
		if !target.FeedbackSent {
			t.Error("terminal transition must mark FeedbackSent")
		}
	})

	t.Run("unconfirmed holds below T2", func(t *testing.T) {
		target := &models.Target{Status: models.StatusUnconfirmed, Reports: reportsWithTrust(0, 0)}
		if e.evaluate(target, now) {
			t.Error("evaluate() reported a terminal transition")
		}
		if target.Status != models.StatusUnconfirmed {
			t.Errorf("status = %v, want unconfirmed", target.Status)
		}
	})

	t.Run("no demotion when the score sinks", func(t *testing.T) {
		// An unconfirmed target whose latest report drags the score under T1
		// stays unconfirmed; transitions only move forward.
		target := &models.Target{Status: models.StatusUnconfirmed, Reports: reportsWithTrust(-5, -5, -5)}
		e.evaluate(target, now)
		if target.Status != models.StatusUnconfirmed {
			t.Errorf("status = %v, want unconfirmed (no demotion)", target.Status)
		}
	})
}

func TestTrustDeltas(t *testing.T) {
	cfg := config.DefaultEngineConfig()
	e := &Engine{cfg: cfg, scorer: NewScorer(cfg)}

	t.Run("confirmed rewards each distinct reporter once", func(t *testing.T) {
		target := &models.Target{
			Status: models.StatusConfirmed,
			Reports: []models.Report{
				{ReporterID: "a"}, {ReporterID: "b"}, {ReporterID: "a"},
			},
		}
		deltas := e.trustDeltas(target)
		if len(deltas) != 2 {
			t.Fatalf("got %d deltas, want 2", len(deltas))
		}
		if deltas["a"] != cfg.ConfirmReward || deltas["b"] != cfg.ConfirmReward {
			t.Errorf("deltas = %v, want %v each", deltas, cfg.ConfirmReward)
		}
	})

	t.Run("lone reporter of a rejected target pays double", func(t *testing.T) {
		target := &models.Target{
			Status:  models.StatusRejected,
			Reports: []models.Report{{ReporterID: "a"}},
		}
		deltas := e.trustDeltas(target)
		if deltas["a"] != -2*cfg.RejectBasePenalty {
			t.Errorf("delta = %v, want %v", deltas["a"], -2*cfg.RejectBasePenalty)
		}
	})

	t.Run("rejection penalty decays with arrival position", func(t *testing.T) {
		target := &models.Target{
			Status: models.StatusRejected,
			Reports: []models.Report{
				{ReporterID: "first"}, {ReporterID: "middle"}, {ReporterID: "last"},
			},
		}
		deltas := e.trustDeltas(target)
		if deltas["first"] != -0.5 {
			t.Errorf("first delta = %v, want -0.5", deltas["first"])
		}
		if deltas["middle"] != -0.375 {
			t.Errorf("middle delta = %v, want -0.375", deltas["middle"])
		}
		if deltas["last"] != -0.25 {
			t.Errorf("last delta = %v, want -0.25", deltas["last"])
		}
	})

	t.Run("non-terminal targets produce no deltas", func(t *testing.T) {
		target := &models.Target{Status: models.StatusUnconfirmed, Reports: []models.Report{{ReporterID: "a"}}}
		if deltas := e.trustDeltas(target); len(deltas) != 0 {
			t.Errorf("deltas = %v, want none", deltas)
		}
	})
}

package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/telegate-io/telegate/internal/intent"
	"github.com/telegate-io/telegate/internal/security"
	"github.com/telegate-io/telegate/internal/session"
)

// IntentExpiryJob deletes unredeemed intents past their TTL. A token
// that sat in a chat history for an hour must not still redeem.
type IntentExpiryJob struct {
	Ledger       *intent.Ledger
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "*/5 * * * *"
}

// Compile-time interface check.
var _ Job = (*IntentExpiryJob)(nil)

// Name implements Job.
func (j *IntentExpiryJob) Name() string { return "intent_expiry" }

// Schedule implements Job.
func (j *IntentExpiryJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/5 * * * *"
}

// Run deletes expired intents.
func (j *IntentExpiryJob) Run(ctx context.Context) error {
	deleted, err := j.Ledger.Expire(ctx)
	if err != nil {
		return err
	}
	if deleted > 0 {
		j.Logger.Info("cron: expired intents deleted", "count", deleted)
	}
	return nil
}

// SessionPruneJob removes sessions untouched longer than MaxIdle.
type SessionPruneJob struct {
	Store        session.Store
	MaxIdle      time.Duration
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "0 * * * *"
}

// Compile-time interface check.
var _ Job = (*SessionPruneJob)(nil)

// Name implements Job.
func (j *SessionPruneJob) Name() string { return "session_prune" }

// Schedule implements Job.
func (j *SessionPruneJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "0 * * * *"
}

// Run prunes sessions idle longer than MaxIdle.
func (j *SessionPruneJob) Run(ctx context.Context) error {
	maxIdle := j.MaxIdle
	if maxIdle <= 0 {
		maxIdle = 30 * 24 * time.Hour
	}
	pruned, err := j.Store.Prune(ctx, time.Now().Add(-maxIdle))
	if err != nil {
		return err
	}
	if pruned > 0 {
		j.Logger.Info("cron: pruned idle sessions", "count", pruned)
	}
	return nil
}

// RateLimitSweepJob drops idle rate-limit buckets so per-client state
// does not grow without bound.
type RateLimitSweepJob struct {
	Limiter      *security.RateLimiter
	ScheduleExpr string // empty = default "*/10 * * * *"
}

// Compile-time interface check.
var _ Job = (*RateLimitSweepJob)(nil)

// Name implements Job.
func (j *RateLimitSweepJob) Name() string { return "ratelimit_sweep" }

// Schedule implements Job.
func (j *RateLimitSweepJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/10 * * * *"
}

// Run sweeps idle buckets.
func (j *RateLimitSweepJob) Run(_ context.Context) error {
	j.Limiter.Sweep()
	return nil
}

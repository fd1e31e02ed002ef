package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/chaingate/internal/memory"
)

// MemoryCompactionJob trims every agent's log to the newest MaxPerAgent
// records.
type MemoryCompactionJob struct {
	Store        memory.Compactor
	MaxPerAgent  int
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "0 * * * *"
}

// Compile-time interface check.
var _ Job = (*MemoryCompactionJob)(nil)

// Name implements Job.
func (j *MemoryCompactionJob) Name() string { return "memory_compaction" }

// Schedule implements Job.
func (j *MemoryCompactionJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "0 * * * *"
}

// Run compacts the store.
func (j *MemoryCompactionJob) Run(ctx context.Context) error {
	if ctx.Err() != nil {
		return fmt.Errorf("cron: memory compaction cancelled: %w", ctx.Err())
	}
	dropped, err := j.Store.Compact(ctx, j.MaxPerAgent)
	if err != nil {
		return fmt.Errorf("cron: memory compaction: %w", err)
	}
	if dropped > 0 {
		j.Logger.Info("cron: compacted agent memory", "dropped", dropped, "max_per_agent", j.MaxPerAgent)
	}
	return nil
}

// IdleSweeper is the subset of agent.Pool needed by IdleAgentSweepJob.
// Defined here to avoid an import cycle with the agent package.
type IdleSweeper interface {
	SweepIdle(ctx context.Context, maxIdle time.Duration) int
}

// IdleAgentSweepJob shuts down agent runtimes idle longer than MaxIdle.
type IdleAgentSweepJob struct {
	Pool         IdleSweeper
	MaxIdle      time.Duration
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "*/5 * * * *"
}

// Compile-time interface check.
var _ Job = (*IdleAgentSweepJob)(nil)

// Name implements Job.
func (j *IdleAgentSweepJob) Name() string { return "agent_idle_sweep" }

// Schedule implements Job.
func (j *IdleAgentSweepJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/5 * * * *"
}

// Run evicts idle runtimes.
func (j *IdleAgentSweepJob) Run(ctx context.Context) error {
	if ctx.Err() != nil {
		return fmt.Errorf("cron: idle sweep cancelled: %w", ctx.Err())
	}
	if n := j.Pool.SweepIdle(ctx, j.MaxIdle); n > 0 {
		j.Logger.Info("cron: shut down idle agents", "count", n, "max_idle", j.MaxIdle)
	}
	return nil
}

// Pruner is the subset of security.RateLimiter needed by RateLimitPruneJob.
type Pruner interface {
	Prune() int
}

// RateLimitPruneJob drops rate limit windows of agents that went quiet.
type RateLimitPruneJob struct {
	Limiter      Pruner
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "@every 10m"
}

// Compile-time interface check.
var _ Job = (*RateLimitPruneJob)(nil)

// Name implements Job.
func (j *RateLimitPruneJob) Name() string { return "ratelimit_prune" }

// Schedule implements Job.
func (j *RateLimitPruneJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "@every 10m"
}

// Run prunes the limiter.
func (j *RateLimitPruneJob) Run(ctx context.Context) error {
	if ctx.Err() != nil {
		return fmt.Errorf("cron: rate limit prune cancelled: %w", ctx.Err())
	}
	if n := j.Limiter.Prune(); n > 0 {
		j.Logger.Debug("cron: pruned rate limit windows", "agents", n)
	}
	return nil
}

package cron_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/flemzord/chaingate/internal/cron"
	"github.com/flemzord/chaingate/internal/cron/crontest"
	"github.com/flemzord/chaingate/internal/memory"
)

func TestMemoryCompactionJob_Defaults(t *testing.T) {
	t.Parallel()

	j := &cron.MemoryCompactionJob{Logger: slog.Default()}
	if j.Name() != "memory_compaction" {
		t.Errorf("name = %q", j.Name())
	}
	if j.Schedule() != "0 * * * *" {
		t.Errorf("schedule = %q, want hourly", j.Schedule())
	}
	j.ScheduleExpr = "@every 1m"
	if j.Schedule() != "@every 1m" {
		t.Errorf("schedule override ignored: %q", j.Schedule())
	}
}

func TestMemoryCompactionJob_Run(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewInMemoryStore()
	for range 5 {
		_ = store.Save(ctx, "a1", memory.Record{Tool: "echo"})
	}

	j := &cron.MemoryCompactionJob{Store: store, MaxPerAgent: 3, Logger: slog.Default()}
	if err := j.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	recs, _ := store.Get(ctx, "a1", 0)
	if len(recs) != 3 {
		t.Errorf("records after compaction = %d, want 3", len(recs))
	}
}

func TestMemoryCompactionJob_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	j := &cron.MemoryCompactionJob{Store: memory.NewInMemoryStore(), MaxPerAgent: 1, Logger: slog.Default()}
	if err := j.Run(ctx); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestIdleAgentSweepJob_Run(t *testing.T) {
	t.Parallel()

	sweeper := &crontest.MockSweeper{
		SweepFunc: func(maxIdle time.Duration) int {
			if maxIdle != 30*time.Minute {
				t.Errorf("maxIdle = %v, want 30m", maxIdle)
			}
			return 2
		},
	}
	j := &cron.IdleAgentSweepJob{Pool: sweeper, MaxIdle: 30 * time.Minute, Logger: slog.Default()}

	if j.Schedule() != "*/5 * * * *" {
		t.Errorf("schedule = %q", j.Schedule())
	}
	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sweeper.SweepCalls.Load() != 1 {
		t.Errorf("sweep calls = %d, want 1", sweeper.SweepCalls.Load())
	}
}

func TestRateLimitPruneJob(t *testing.T) {
	t.Parallel()

	p := &crontest.MockPruner{Evicted: 2}
	j := &cron.RateLimitPruneJob{Limiter: p, Logger: slog.Default()}
	if j.Name() != "ratelimit_prune" || j.Schedule() != "@every 10m" {
		t.Errorf("job = %q %q", j.Name(), j.Schedule())
	}
	if err := j.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := p.PruneCalls.Load(); got != 1 {
		t.Errorf("Prune calls = %d, want 1", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := j.Run(ctx); err == nil {
		t.Error("expected error for cancelled context")
	}
	if p.PruneCalls.Load() != 1 {
		t.Error("pruned on a cancelled context")
	}
}

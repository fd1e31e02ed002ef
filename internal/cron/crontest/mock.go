// Package crontest holds fakes for code that schedules or implements
// cron jobs.
package crontest

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/flemzord/chaingate/internal/cron"
)

var (
	_ cron.Job         = (*MockJob)(nil)
	_ cron.IdleSweeper = (*MockSweeper)(nil)
	_ cron.Pruner      = (*MockPruner)(nil)
)

// MockJob is a cron.Job whose Run is RunFunc, or a no-op when nil.
type MockJob struct {
	NameVal     string
	ScheduleVal string
	RunFunc     func(ctx context.Context) error

	calls atomic.Int32
}

func (m *MockJob) Name() string     { return m.NameVal }
func (m *MockJob) Schedule() string { return m.ScheduleVal }

func (m *MockJob) Run(ctx context.Context) error {
	m.calls.Add(1)
	if m.RunFunc == nil {
		return nil
	}
	return m.RunFunc(ctx)
}

// CallCount reports how many times Run was entered.
func (m *MockJob) CallCount() int { return int(m.calls.Load()) }

// MockSweeper stands in for the agent pool in IdleAgentSweepJob.
type MockSweeper struct {
	SweepFunc  func(maxIdle time.Duration) int
	SweepCalls atomic.Int32
}

func (m *MockSweeper) SweepIdle(_ context.Context, maxIdle time.Duration) int {
	m.SweepCalls.Add(1)
	if m.SweepFunc == nil {
		return 0
	}
	return m.SweepFunc(maxIdle)
}

// MockPruner stands in for the rate limiter in RateLimitPruneJob. Each
// Prune reports Evicted entries.
type MockPruner struct {
	Evicted    int
	PruneCalls atomic.Int32
}

func (m *MockPruner) Prune() int {
	m.PruneCalls.Add(1)
	return m.Evicted
}

// Package cron runs the gateway's housekeeping on a clock: memory
// compaction, idle agent eviction and rate limiter pruning.
package cron

import "context"

// Job is one periodic task. Names must be unique within a Scheduler.
type Job interface {
	Name() string

	// Schedule is a 5-field cron expression or a descriptor such as
	// "@every 10m" or "@hourly".
	Schedule() string

	// Run does one pass. A cancelled ctx means the scheduler is stopping.
	Run(ctx context.Context) error
}

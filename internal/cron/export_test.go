package cron

import "context"

// RunOnce fires one scheduler tick for j outside the cron clock.
func (s *Scheduler) RunOnce(ctx context.Context, j Job) {
	s.tick(ctx, j)()
}

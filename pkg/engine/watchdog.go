package engine

import (
	"context"
	"time"

	"github.com/jdziat/questionnaire-autoanswer/pkg/core"
)

// SweepStale fails the active job when it has run longer than the configured
// job timeout. It reports whether a job was failed.
func (e *Engine) SweepStale(now time.Time) bool {
	e.mu.Lock()
	job, stale := e.controller.Stale(now, e.config.JobTimeout)
	e.mu.Unlock()
	if !stale {
		return false
	}

	e.config.Logger.Warn("job exceeded timeout", "job_id", job.ID, "timeout", e.config.JobTimeout)
	return e.Deliver(job.ID, &core.FailureEvent{Reason: ReasonTimedOut}) == nil
}

// RunWatchdog checks for stuck jobs on the configured schedule until ctx is
// canceled or the engine is closed. It returns immediately when no job
// timeout is configured.
func (e *Engine) RunWatchdog(ctx context.Context) error {
	if e.config.JobTimeout <= 0 {
		return nil
	}
	for {
		now := e.config.Now()
		wait := e.config.Watchdog.Next(now).Sub(now)
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-e.baseCtx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
			e.SweepStale(e.config.Now())
		}
	}
}

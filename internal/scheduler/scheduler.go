// internal/scheduler/scheduler.go
package scheduler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is the callback invoked on each tick of a periodic job.
type Job func()

// Scheduler runs named fixed-cadence jobs on a shared cron runner. A job
// whose previous tick is still running is skipped rather than overlapped,
// so two ticks of the same job never interleave.
type Scheduler struct {
	cron *cron.Cron
}

// New creates a Scheduler with no registered jobs.
func New() *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
}

// Every registers fn to run once per interval. Jobs must be registered
// before Start.
func (s *Scheduler) Every(name string, interval time.Duration, fn Job) error {
	if interval <= 0 {
		return fmt.Errorf("schedule %s: non-positive interval %s", name, interval)
	}
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), fn); err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	slog.Debug("scheduled job", "name", name, "interval", interval.String())
	return nil
}

// Start begins the tickers.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and blocks until in-flight jobs return. No job
// fires after Stop returns.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

package jobs

import (
	"time"

	"github.com/go-co-op/gocron"
)

// IdleSweeper is the part of the engine the janitor drives.
type IdleSweeper interface {
	SweepIdle(maxIdle time.Duration) int
}

// Janitor periodically closes quiz sessions nobody has touched in a
// while. Their persisted state stays restorable; only the in-memory
// session and its timers are released.
type Janitor struct {
	scheduler *gocron.Scheduler
	sweeper   IdleSweeper
	interval  time.Duration
	maxIdle   time.Duration
}

func NewJanitor(sweeper IdleSweeper, interval, maxIdle time.Duration) *Janitor {
	return &Janitor{
		scheduler: gocron.NewScheduler(time.UTC),
		sweeper:   sweeper,
		interval:  interval,
		maxIdle:   maxIdle,
	}
}

// Start schedules the sweep and returns immediately.
func (j *Janitor) Start() {
	j.scheduler.Every(j.interval).Do(func() {
		j.sweeper.SweepIdle(j.maxIdle)
	})
	j.scheduler.StartAsync()
}

// Stop cancels the scheduled sweeps.
func (j *Janitor) Stop() {
	j.scheduler.Stop()
}

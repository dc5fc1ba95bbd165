package daemon

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
)

const scanJobName = "prn-scan"

// Scheduler wraps a gocron scheduler running the periodic scan job.
//
// The job runs in singleton mode: a tick that fires while the previous cycle
// is still draining is rescheduled instead of overlapping it.
type Scheduler struct {
	scheduler gocron.Scheduler
	job       gocron.Job
	task      func()
	interval  time.Duration
}

// NewScheduler creates a scheduler that will run task every interval,
// starting immediately once Start is called.
func NewScheduler(interval time.Duration, stopTimeout time.Duration, task func()) (*Scheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithStopTimeout(stopTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	sch := &Scheduler{scheduler: s, task: task, interval: interval}
	job, err := s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		sch.jobOptions(true)...,
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("failed to create scan job: %w", err)
	}
	sch.job = job
	return sch, nil
}

func (s *Scheduler) jobOptions(immediately bool) []gocron.JobOption {
	opts := []gocron.JobOption{
		gocron.WithName(scanJobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	}
	if immediately {
		opts = append(opts, gocron.WithStartAt(gocron.WithStartImmediately()))
	}
	return opts
}

// Start begins scheduling.
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler", slog.Duration("interval", s.interval))
	s.scheduler.Start()
}

// Stop halts the timer and waits, up to the stop timeout, for a running cycle.
func (s *Scheduler) Stop() error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

// RunNow requests an extra cycle. Singleton mode still applies.
func (s *Scheduler) RunNow() error {
	return s.job.RunNow()
}

// SetInterval reschedules the scan job when interval changed.
func (s *Scheduler) SetInterval(interval time.Duration) error {
	if interval == s.interval || interval <= 0 {
		return nil
	}
	job, err := s.scheduler.Update(s.job.ID(), gocron.DurationJob(interval), gocron.NewTask(s.task), s.jobOptions(false)...)
	if err != nil {
		return fmt.Errorf("failed to reschedule scan job: %w", err)
	}
	s.job = job
	s.interval = interval
	slog.Info("Scan interval updated", slog.Duration("interval", interval))
	return nil
}

// NextRun returns the next scheduled run time, or zero when unknown.
func (s *Scheduler) NextRun() time.Time {
	next, err := s.job.NextRun()
	if err != nil {
		return time.Time{}
	}
	return next
}

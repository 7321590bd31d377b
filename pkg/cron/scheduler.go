// Package cron schedules recurring extraction runs using robfig/cron.
package cron

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one scheduled extraction round. The context carries the round's
// deadline.
type Job func(ctx context.Context)

// Scheduler runs the job on a cron schedule (standard 5-field format).
type Scheduler struct {
	cron     *cron.Cron
	schedule string
	job      Job
	timeout  time.Duration
	logger   *slog.Logger
}

// NewScheduler creates a scheduler for one job.
func NewScheduler(schedule string, job Job, logger *slog.Logger) *Scheduler {
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:     c,
		schedule: schedule,
		job:      job,
		timeout:  30 * time.Minute,
		logger:   logger,
	}
}

// Start registers the job and begins the schedule.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.schedule, s.runJob)
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.logger.Info("watch scheduler started",
		slog.String("schedule", s.schedule),
		slog.Int("jobs", len(s.cron.Entries())),
	)
	return nil
}

// Stop gracefully stops the schedule. The returned context closes once any
// running round has finished.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("watch scheduler stopping")
	return s.cron.Stop()
}

// RunNow triggers one round immediately, off schedule.
func (s *Scheduler) RunNow() {
	go s.runJob()
}

func (s *Scheduler) runJob() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.job(ctx)
}

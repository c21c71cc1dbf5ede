// Package maintenance runs optional background upkeep for the local engine —
// currently just the branch TTL sweep described in SPEC_FULL.md §4.8.
package maintenance

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Job represents a scheduled maintenance task.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler runs jobs on cron cadences. It keeps the teacher's Job/AddJob/
// Start/Stop shape but delegates the actual ticking to robfig/cron instead of
// a hand-rolled time.Ticker loop.
type Scheduler struct {
	logger *slog.Logger
	cron   *cron.Cron
	jobs   []Job
}

// NewScheduler creates a new scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		logger: logger,
		cron:   cron.New(),
	}
}

// AddJob registers a job to run on the given cron expression (standard
// five-field cron syntax, e.g. "*/5 * * * *").
func (s *Scheduler) AddJob(ctx context.Context, job Job, expr string) error {
	_, err := s.cron.AddFunc(expr, func() {
		s.logger.Debug("running scheduled job", "job", job.Name())
		if err := job.Run(ctx); err != nil {
			s.logger.Error("scheduled job failed", "job", job.Name(), "error", err)
		}
	})
	if err != nil {
		return err
	}
	s.jobs = append(s.jobs, job)
	s.logger.Info("registered scheduled job", "job", job.Name(), "cron", expr)
	return nil
}

// Start begins running all scheduled jobs in the background.
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.Start()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()
}

// Stop halts all scheduled jobs and waits for any in-flight run to finish.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("maintenance scheduler stopped")
}

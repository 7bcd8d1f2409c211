// Package scheduler runs periodic rebuilds during a watch session.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/sitebuild/internal/config"
	"git.home.luguber.info/inful/sitebuild/internal/livereload"
	"git.home.luguber.info/inful/sitebuild/internal/logfields"
)

// ErrInvalidInterval is returned for non-positive intervals.
var ErrInvalidInterval = errors.New("interval must be positive")

// TaskRunner runs a sequence of steps; *taskgraph.Runner satisfies it.
type TaskRunner interface {
	Run(ctx context.Context, cfg config.Config, names ...string) error
}

// Scheduler wraps a gocron scheduler.
type Scheduler struct {
	scheduler gocron.Scheduler
}

// New creates a scheduler.
func New() (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	return &Scheduler{scheduler: s}, nil
}

// Start begins executing jobs.
func (s *Scheduler) Start() {
	slog.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop shuts the scheduler down, waiting for running jobs.
func (s *Scheduler) Stop() error {
	slog.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

// Every schedules fn at a fixed interval and returns the job id. Overlapping runs are skipped.
func (s *Scheduler) Every(name string, interval time.Duration, fn func()) (string, error) {
	if interval <= 0 {
		return "", ErrInvalidInterval
	}
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(fn),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create periodic job: %w", err)
	}
	return job.ID().String(), nil
}

// ScheduleRebuild re-runs tasks every interval and broadcasts a full reload after each
// successful run. reload may be nil.
func (s *Scheduler) ScheduleRebuild(ctx context.Context, cfg config.Config, interval time.Duration, runner TaskRunner, reload livereload.Broadcaster, tasks ...string) (string, error) {
	return s.Every("periodic-rebuild", interval, func() {
		if ctx.Err() != nil {
			return
		}
		slog.Info("Executing scheduled rebuild", slog.Any("tasks", tasks))
		if err := runner.Run(ctx, cfg, tasks...); err != nil {
			slog.Error("Scheduled rebuild failed", logfields.Error(err))
			return
		}
		if reload != nil {
			reload.Broadcast(livereload.KindReload, "scheduled")
		}
	})
}

package build

import (
	"context"
	"errors"
	"log/slog"

	"git.home.luguber.info/inful/sitebuild/internal/config"
	"git.home.luguber.info/inful/sitebuild/internal/devserver"
	"git.home.luguber.info/inful/sitebuild/internal/logfields"
	"git.home.luguber.info/inful/sitebuild/internal/scheduler"
	"git.home.luguber.info/inful/sitebuild/internal/taskgraph"
	"git.home.luguber.info/inful/sitebuild/internal/watcher"
)

// watchSession is the body of the watch task. runner is resolved lazily because the
// runner is built from the graph that contains this task.
type watchSession struct {
	opts   Options
	runner func() *taskgraph.Runner
}

func (s *watchSession) run(ctx context.Context, cfg config.Config) error {
	runner := s.runner()
	if runner == nil {
		return errors.New("watch: runner not initialized")
	}

	srv := devserver.New(s.opts.Hub, s.opts.Registry)
	if err := srv.Start(cfg); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), devserver.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Dev server shutdown failed", logfields.Error(err))
		}
	}()

	if s.opts.RebuildInterval > 0 {
		sched, err := scheduler.New()
		if err != nil {
			return err
		}
		if _, err := sched.ScheduleRebuild(ctx, cfg, s.opts.RebuildInterval, runner, s.opts.Hub, TaskAssets); err != nil {
			_ = sched.Stop()
			return err
		}
		sched.Start()
		defer func() {
			if err := sched.Stop(); err != nil {
				slog.Warn("Scheduler shutdown failed", logfields.Error(err))
			}
		}()
	}

	w := watcher.New(cfg, runner, s.opts.Hub, watcher.WithQuiet(s.opts.WatchQuiet))

	slog.Info("Dev session started", logfields.Port(cfg.DefaultPort), slog.String("addr", srv.Addr().String()))
	err := w.Watch(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

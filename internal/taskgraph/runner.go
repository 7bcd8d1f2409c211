package taskgraph

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/sitebuild/internal/config"
	ferrors "git.home.luguber.info/inful/sitebuild/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuild/internal/logfields"
	"git.home.luguber.info/inful/sitebuild/internal/metrics"
)

// Runner executes tasks from a Graph.
type Runner struct {
	graph    *Graph
	recorder metrics.Recorder
}

// Option configures a Runner.
type Option func(*Runner)

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(rn *Runner) {
		if r != nil {
			rn.recorder = r
		}
	}
}

// NewRunner creates a runner for g.
func NewRunner(g *Graph, opts ...Option) *Runner {
	r := &Runner{graph: g, recorder: metrics.NoopRecorder{}}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Graph returns the graph the runner executes.
func (r *Runner) Graph() *Graph { return r.graph }

// Run executes the named tasks one after another.
func (r *Runner) Run(ctx context.Context, cfg config.Config, names ...string) error {
	steps := make([]Step, len(names))
	for i, n := range names {
		steps[i] = Seq(n)
	}
	return r.RunSequence(ctx, cfg, steps...)
}

// RunSequence executes steps in order. Within one call every task runs at most once, so a
// task reached through several paths shares a single execution.
func (r *Runner) RunSequence(ctx context.Context, cfg config.Config, steps ...Step) error {
	for _, st := range steps {
		for _, name := range st {
			if !r.graph.Has(name) {
				return ferrors.ValidationError("unknown task").
					WithTask(name).
					Build()
			}
		}
	}

	run := &execution{
		runner: r,
		cfg:    cfg,
		id:     uuid.NewString(),
		calls:  make(map[string]*call),
	}
	t0 := time.Now()
	slog.Info("Run started", logfields.RunID(run.id), slog.Int("steps", len(steps)))
	err := run.sequence(ctx, steps)
	attrs := []any{
		logfields.RunID(run.id),
		logfields.DurationMS(float64(time.Since(t0).Milliseconds())),
	}
	if err != nil {
		slog.Error("Run failed", append(attrs, logfields.Error(err))...)
		return err
	}
	slog.Info("Run finished", attrs...)
	return nil
}

type call struct {
	done chan struct{}
	err  error
}

// execution memoizes task results for one RunSequence call.
type execution struct {
	runner *Runner
	cfg    config.Config
	id     string

	mu    sync.Mutex
	calls map[string]*call
}

func (e *execution) sequence(ctx context.Context, steps []Step) error {
	for _, st := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.step(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

func (e *execution) step(ctx context.Context, st Step) error {
	if len(st) == 1 {
		return e.task(ctx, st[0])
	}
	// Plain Group: a failing member does not cancel its siblings.
	var g errgroup.Group
	for _, name := range st {
		g.Go(func() error { return e.task(ctx, name) })
	}
	return g.Wait()
}

func (e *execution) task(ctx context.Context, name string) error {
	e.mu.Lock()
	if c, ok := e.calls[name]; ok {
		e.mu.Unlock()
		<-c.done
		return c.err
	}
	c := &call{done: make(chan struct{})}
	e.calls[name] = c
	e.mu.Unlock()

	c.err = e.exec(ctx, name)
	close(c.done)
	return c.err
}

func (e *execution) exec(ctx context.Context, name string) error {
	t, _ := e.runner.graph.Task(name)
	rec := e.runner.recorder

	if len(t.Deps) > 0 {
		if err := e.step(ctx, Group(t.Deps...)); err != nil {
			rec.IncTaskResult(name, metrics.ResultSkipped)
			return err
		}
	}
	if err := e.sequence(ctx, t.Steps); err != nil {
		rec.IncTaskResult(name, metrics.ResultSkipped)
		return err
	}
	if t.Run == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		rec.IncTaskResult(name, metrics.ResultCanceled)
		return err
	}

	slog.Info("Task started", logfields.Task(name), logfields.RunID(e.id))
	t0 := time.Now()
	err := t.Run(ctx, e.cfg)
	d := time.Since(t0)
	rec.ObserveTaskDuration(name, d)
	if err != nil {
		rec.IncTaskResult(name, metrics.ResultFailed)
		slog.Error("Task failed",
			logfields.Task(name),
			logfields.RunID(e.id),
			logfields.DurationMS(float64(d.Milliseconds())),
			logfields.Error(err))
		return err
	}
	rec.IncTaskResult(name, metrics.ResultSuccess)
	slog.Info("Task finished",
		logfields.Task(name),
		logfields.RunID(e.id),
		logfields.DurationMS(float64(d.Milliseconds())))
	return nil
}

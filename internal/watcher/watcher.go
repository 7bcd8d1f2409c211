// Package watcher turns source changes into task runs and reload broadcasts.
//
// Filesystem notifications and synthetic events share one channel consumed by a single loop.
// Events arriving within the quiet window are coalesced per task, each matched task runs
// once, and a successful run is followed by one broadcast of its subscription's reload kind.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/sitebuild/internal/config"
	"git.home.luguber.info/inful/sitebuild/internal/livereload"
	"git.home.luguber.info/inful/sitebuild/internal/logfields"
)

// DefaultQuiet is the default coalescing window.
const DefaultQuiet = 50 * time.Millisecond

// MaxWaitFactor caps how long a continuous stream of events can postpone a run, as a
// multiple of the quiet window.
const MaxWaitFactor = 10

// Event is a change to a path relative to the project root.
type Event struct {
	Path string
	Op   fsnotify.Op
}

// TaskRunner runs named tasks; *taskgraph.Runner satisfies it.
type TaskRunner interface {
	Run(ctx context.Context, cfg config.Config, names ...string) error
}

// Watcher dispatches change events to tasks.
type Watcher struct {
	cfg    config.Config
	subs   []Subscription
	runner TaskRunner
	reload livereload.Broadcaster
	quiet  time.Duration
	events chan Event
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithSubscriptions replaces the default subscriptions.
func WithSubscriptions(subs ...Subscription) Option {
	return func(w *Watcher) { w.subs = subs }
}

// WithQuiet sets the coalescing window. Zero runs tasks immediately for every event.
func WithQuiet(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.quiet = d
		}
	}
}

// New creates a watcher. reload may be nil when no clients need notifying.
func New(cfg config.Config, runner TaskRunner, reload livereload.Broadcaster, opts ...Option) *Watcher {
	w := &Watcher{
		cfg:    cfg,
		subs:   DefaultSubscriptions(cfg.Paths),
		runner: runner,
		reload: reload,
		quiet:  DefaultQuiet,
		events: make(chan Event, 64),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Events accepts synthetic events.
func (w *Watcher) Events() chan<- Event { return w.events }

// Subscriptions returns the active subscriptions.
func (w *Watcher) Subscriptions() []Subscription { return w.subs }

// Match returns the subscriptions covering rel.
func (w *Watcher) Match(rel string) []Subscription {
	var out []Subscription
	for _, s := range w.subs {
		if s.Matches(rel) {
			out = append(out, s)
		}
	}
	return out
}

// Watch subscribes to the source tree and runs the dispatch loop until ctx is done.
func (w *Watcher) Watch(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer func() { _ = fw.Close() }()

	root := w.cfg.Abs(w.cfg.Paths.Src)
	if st, err := os.Stat(root); err != nil || !st.IsDir() {
		slog.Warn("Source directory missing, nothing to watch", logfields.Path(root))
	} else {
		addDirsRecursive(fw, root)
	}
	slog.Info("Watching for changes", logfields.Path(root), logfields.Count(len(w.subs)))

	go w.pump(ctx, fw)
	return w.Run(ctx)
}

// pump converts fsnotify events into Events.
func (w *Watcher) pump(ctx context.Context, fw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if shouldIgnoreEvent(ev.Name) || ev.Op == fsnotify.Chmod {
				continue
			}
			if ev.Op.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					addDirsRecursive(fw, ev.Name)
				}
			}
			rel, err := w.cfg.Rel(ev.Name)
			if err != nil {
				continue
			}
			select {
			case w.events <- Event{Path: rel, Op: ev.Op}:
			case <-ctx.Done():
				return
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			slog.Warn("watcher error", logfields.Error(err))
		}
	}
}

// Run consumes events until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	var (
		pending []Subscription
		first   time.Time
		timer   *time.Timer
		fire    <-chan time.Time
	)
	maxWait := w.quiet * MaxWaitFactor
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-w.events:
			matched := w.Match(ev.Path)
			if len(matched) == 0 {
				continue
			}
			slog.Debug("File change detected", logfields.Path(ev.Path), slog.String("op", ev.Op.String()))
			if len(pending) == 0 {
				first = time.Now()
			}
			pending = mergePending(pending, matched)
			if w.quiet == 0 {
				w.dispatch(ctx, pending)
				pending = nil
				continue
			}
			wait := min(w.quiet, max(maxWait-time.Since(first), 0))
			if timer == nil {
				timer = time.NewTimer(wait)
			} else {
				timer.Reset(wait)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.dispatch(ctx, pending)
			pending = nil
		}
	}
}

func mergePending(pending, add []Subscription) []Subscription {
	for _, s := range add {
		dup := false
		for _, p := range pending {
			if p.Task == s.Task {
				dup = true
				break
			}
		}
		if !dup {
			pending = append(pending, s)
		}
	}
	return pending
}

func (w *Watcher) dispatch(ctx context.Context, subs []Subscription) {
	for _, s := range subs {
		if ctx.Err() != nil {
			return
		}
		slog.Info("Change detected; rebuilding", logfields.Task(s.Task), logfields.Area(s.Name))
		if err := w.runner.Run(ctx, w.cfg, s.Task); err != nil {
			if !errors.Is(err, context.Canceled) {
				slog.Warn("rebuild failed", logfields.Task(s.Task), logfields.Error(err))
			}
			continue
		}
		if w.reload != nil {
			w.reload.Broadcast(s.Reload, s.Task)
		}
	}
}

func addDirsRecursive(fw *fsnotify.Watcher, root string) {
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if err := fw.Add(path); err != nil {
				slog.Warn("watch add failed", logfields.Path(path), logfields.Error(err))
			}
		}
		return nil
	})
}

// shouldIgnoreEvent reports editor and OS artifacts that must not trigger rebuilds.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)
	switch {
	case strings.HasPrefix(base, "."):
		return true
	case strings.HasSuffix(base, "~"),
		strings.HasSuffix(base, ".swp"),
		strings.HasSuffix(base, ".swx"),
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#"):
		return true
	case base == "Thumbs.db", base == "4913":
		return true
	}
	return false
}

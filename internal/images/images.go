// Package images optimizes the site's images, memoizing results across runs.
package images

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/sitebuild/internal/config"
	ferrors "git.home.luguber.info/inful/sitebuild/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuild/internal/imagecache"
	"git.home.luguber.info/inful/sitebuild/internal/logfields"
	"git.home.luguber.info/inful/sitebuild/internal/metrics"
	"git.home.luguber.info/inful/sitebuild/internal/pipeline"
)

// DefaultConcurrency bounds parallel file processing.
const DefaultConcurrency = 4

// Task optimizes every file under the source images directory.
type Task struct {
	optimizer Optimizer
	cache     imagecache.Store
	recorder  metrics.Recorder
}

// Option configures a Task.
type Option func(*Task)

// WithOptimizer replaces the default optimizer.
func WithOptimizer(o Optimizer) Option {
	return func(t *Task) { t.optimizer = o }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(t *Task) {
		if r != nil {
			t.recorder = r
		}
	}
}

// New returns an image task backed by cache. The cache outlives individual runs and should be
// shared for the life of the process.
func New(cache imagecache.Store, opts ...Option) *Task {
	t := &Task{
		optimizer: NewDefaultOptimizer(),
		cache:     cache,
		recorder:  metrics.NoopRecorder{},
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Run processes all images, writing them under the destination images directory.
func (t *Task) Run(ctx context.Context, cfg config.Config) error {
	src := cfg.Abs(cfg.Paths.SrcImages)
	dst := cfg.Abs(cfg.Paths.DistImages)
	files, err := pipeline.Glob(src, "**/*")
	if err != nil {
		return err
	}

	var hits, misses atomic.Int32
	var g errgroup.Group
	g.SetLimit(DefaultConcurrency)
	for _, rel := range files {
		g.Go(func() error {
			hit, err := t.process(ctx, src, dst, rel)
			if err != nil {
				return err
			}
			if hit {
				hits.Add(1)
			} else {
				misses.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("Images processed",
		logfields.Count(len(files)),
		slog.Int("cache_hits", int(hits.Load())),
		slog.Int("cache_misses", int(misses.Load())))
	return nil
}

func (t *Task) process(ctx context.Context, srcDir, dstDir, rel string) (bool, error) {
	srcPath := filepath.Join(srcDir, filepath.FromSlash(rel))
	dstPath := filepath.Join(dstDir, filepath.FromSlash(rel))

	st, err := os.Stat(srcPath)
	if err != nil {
		return false, fsErr(err, "stat image", srcPath)
	}
	sig := imagecache.Signature(rel, st.Size(), st.ModTime())

	if digest, ok, err := t.cache.Digest(ctx, sig); err != nil {
		return false, cacheErr(err, srcPath)
	} else if ok {
		out, ok, err := t.cache.Output(ctx, digest)
		if err != nil {
			return false, cacheErr(err, srcPath)
		}
		if ok {
			t.recorder.IncImageCache(true)
			return true, pipeline.WriteFile(dstPath, out)
		}
	}

	in, err := os.ReadFile(srcPath)
	if err != nil {
		return false, fsErr(err, "read image", srcPath)
	}
	digest := imagecache.Digest(in, rel)

	out, ok, err := t.cache.Output(ctx, digest)
	if err != nil {
		return false, cacheErr(err, srcPath)
	}
	hit := ok
	if !ok {
		out, err = t.optimizer.Optimize(ctx, rel, in)
		if err != nil {
			slog.Warn("Image optimize failed, copying original", logfields.Path(rel), logfields.Error(err))
			return false, pipeline.WriteFile(dstPath, in)
		}
	}
	if err := t.cache.Put(ctx, sig, digest, out); err != nil {
		return false, cacheErr(err, srcPath)
	}
	t.recorder.IncImageCache(hit)
	return hit, pipeline.WriteFile(dstPath, out)
}

func fsErr(err error, msg, path string) error {
	return ferrors.WrapError(err, ferrors.CategoryFileSystem, msg).
		WithPath(path).
		Build()
}

func cacheErr(err error, path string) error {
	return ferrors.WrapError(err, ferrors.CategoryInternal, "image cache").
		WithPath(path).
		Build()
}

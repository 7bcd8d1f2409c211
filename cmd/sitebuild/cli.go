package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/natefinch/lumberjack.v2"

	"git.home.luguber.info/inful/sitebuild/internal/build"
	"git.home.luguber.info/inful/sitebuild/internal/config"
	ferrors "git.home.luguber.info/inful/sitebuild/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuild/internal/imagecache"
	"git.home.luguber.info/inful/sitebuild/internal/metrics"
	"git.home.luguber.info/inful/sitebuild/internal/styles"
	"git.home.luguber.info/inful/sitebuild/internal/taskgraph"
)

// imageCacheFile is the database name inside --cache-dir.
const imageCacheFile = "images.db"

// CLI is the command line surface.
type CLI struct {
	Tasks []string `arg:"" optional:"" default:"default" help:"Tasks to run in order."`

	Environment     string           `help:"Build environment name." env:"SITEBUILD_ENVIRONMENT" default:"local"`
	Minify          bool             `help:"Write minified variants of styles and pages." env:"SITEBUILD_MINIFY"`
	Port            int              `help:"Dev server port." default:"3000"`
	Root            string           `help:"Project root." default:"." type:"path"`
	Verbose         bool             `short:"v" help:"Enable verbose logging"`
	LogFile         string           `help:"Also write logs to this rotating file."`
	CacheDir        string           `help:"Persist the image cache in this directory."`
	SassBinary      string           `help:"Dart Sass executable." default:"sass"`
	RebuildInterval time.Duration    `help:"Periodic asset rebuild while watching (0 disables)." default:"0s"`
	WatchQuiet      time.Duration    `help:"Window for coalescing file change events." default:"50ms"`
	List            bool             `help:"Print the task graph and exit."`
	Version         kong.VersionFlag `name:"version" help:"Show version and exit"`

	logFile io.Closer
}

// AfterApply runs after flag parsing; setup logging once.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	var out io.Writer = os.Stderr
	if c.LogFile != "" {
		lj := &lumberjack.Logger{
			Filename:   c.LogFile,
			MaxSize:    10,
			MaxBackups: 3,
		}
		c.logFile = lj
		out = io.MultiWriter(os.Stderr, lj)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})))
	return nil
}

// Close releases the log file, if any.
func (c *CLI) Close() {
	if c.logFile != nil {
		_ = c.logFile.Close()
		c.logFile = nil
	}
}

// Config resolves the immutable build configuration from flags.
func (c *CLI) Config() config.Config {
	return config.Resolve(config.Flags{
		Environment: c.Environment,
		Minify:      c.Minify,
		Port:        c.Port,
		Root:        c.Root,
	})
}

// Run executes the requested tasks, or prints the graph with --list.
func (c *CLI) Run(ctx context.Context, out io.Writer) error {
	cfg := c.Config()

	store, err := c.imageCache()
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("Failed to close image cache", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	runner, err := build.New(build.Options{
		Compiler:        &styles.SassCompiler{Binary: c.SassBinary},
		ImageCache:      store,
		Recorder:        metrics.NewPrometheusRecorder(reg),
		Registry:        reg,
		WatchQuiet:      c.WatchQuiet,
		RebuildInterval: c.RebuildInterval,
	})
	if err != nil {
		return err
	}

	if c.List {
		return printGraph(out, runner.Graph())
	}

	slog.Info("Starting sitebuild",
		slog.String("environment", cfg.Environment),
		slog.Bool("minify", cfg.Minify),
		slog.Any("tasks", c.Tasks))
	return runner.Run(ctx, cfg, c.Tasks...)
}

func (c *CLI) imageCache() (imagecache.Store, error) {
	if c.CacheDir == "" {
		mem, err := imagecache.NewMemoryStore(0)
		if err != nil {
			return nil, err
		}
		return mem, nil
	}
	if err := os.MkdirAll(c.CacheDir, 0o750); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "create cache directory").
			WithPath(c.CacheDir).
			Build()
	}
	db, err := imagecache.NewSQLiteStore(filepath.Join(c.CacheDir, imageCacheFile))
	if err != nil {
		return nil, err
	}
	return db, nil
}

func printGraph(out io.Writer, g *taskgraph.Graph) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, name := range g.Names() {
		if _, err := fmt.Fprintf(tw, "%s\t%s\n", name, g.Describe(name)); err != nil {
			return err
		}
	}
	return tw.Flush()
}

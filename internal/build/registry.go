package build

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/sitebuild/internal/imagecache"
	"git.home.luguber.info/inful/sitebuild/internal/images"
	"git.home.luguber.info/inful/sitebuild/internal/livereload"
	"git.home.luguber.info/inful/sitebuild/internal/metrics"
	"git.home.luguber.info/inful/sitebuild/internal/pages"
	"git.home.luguber.info/inful/sitebuild/internal/scripts"
	"git.home.luguber.info/inful/sitebuild/internal/styles"
	"git.home.luguber.info/inful/sitebuild/internal/taskgraph"
)

// Task names.
const (
	TaskClean     = "clean"
	TaskStyles    = "styles"
	TaskScripts   = "scripts"
	TaskTemplates = "templates"
	TaskImages    = "images"
	TaskAssets    = "assets"
	TaskWatch     = "watch"
	TaskDefault   = "default"
	TaskDev       = "dev"
)

// Transforms lists the four transform tasks.
var Transforms = []string{TaskStyles, TaskScripts, TaskTemplates, TaskImages}

// Options wires collaborators into the task bodies. Zero values select defaults.
type Options struct {
	Compiler   styles.Compiler
	ImageCache imagecache.Store
	Optimizer  images.Optimizer
	Recorder   metrics.Recorder
	// Registry backs /metrics on the dev server; nil disables the endpoint.
	Registry *prometheus.Registry
	// WatchQuiet is the event coalescing window. Zero runs the matched task once per event;
	// negative selects watcher.DefaultQuiet.
	WatchQuiet time.Duration
	// RebuildInterval enables periodic rebuilds while watching when positive.
	RebuildInterval time.Duration
	// Hub overrides the live reload hub, mainly for tests.
	Hub *livereload.Hub
}

// New builds the task graph and a runner over it.
func New(opts Options) (*taskgraph.Runner, error) {
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	if opts.ImageCache == nil {
		store, err := imagecache.NewMemoryStore(0)
		if err != nil {
			return nil, err
		}
		opts.ImageCache = store
	}
	if opts.Hub == nil {
		opts.Hub = livereload.NewHub(opts.Recorder)
	}

	imageOpts := []images.Option{images.WithRecorder(opts.Recorder)}
	if opts.Optimizer != nil {
		imageOpts = append(imageOpts, images.WithOptimizer(opts.Optimizer))
	}

	var (
		styleTask  = styles.New(opts.Compiler)
		scriptTask = scripts.New()
		pageTask   = pages.New()
		imageTask  = images.New(opts.ImageCache, imageOpts...)
		runner     *taskgraph.Runner
	)

	session := &watchSession{opts: opts, runner: func() *taskgraph.Runner { return runner }}

	graph, err := taskgraph.New(
		taskgraph.Task{Name: TaskClean, Description: "Remove everything under the destination root", Run: Clean},
		taskgraph.Task{Name: TaskStyles, Description: "Compile and post-process the stylesheet", Run: styleTask.Run},
		taskgraph.Task{Name: TaskScripts, Description: "Bundle and minify scripts", Run: scriptTask.Run},
		taskgraph.Task{Name: TaskTemplates, Description: "Render pages with the global data set", Run: pageTask.Run},
		taskgraph.Task{Name: TaskImages, Description: "Optimize images", Run: imageTask.Run},
		taskgraph.Task{
			Name:        TaskAssets,
			Description: "Run the four transforms concurrently",
			Steps:       []taskgraph.Step{taskgraph.Group(Transforms...)},
		},
		taskgraph.Task{
			Name:        TaskDefault,
			Description: "Clean, then build every asset",
			Steps:       []taskgraph.Step{taskgraph.Seq(TaskClean), taskgraph.Group(Transforms...)},
		},
		taskgraph.Task{Name: TaskWatch, Description: "Serve the site and rebuild on change", Run: session.run},
		taskgraph.Task{
			Name:        TaskDev,
			Description: "Full build, then watch",
			Steps:       []taskgraph.Step{taskgraph.Seq(TaskDefault), taskgraph.Seq(TaskWatch)},
		},
	)
	if err != nil {
		return nil, err
	}
	runner = taskgraph.NewRunner(graph, taskgraph.WithRecorder(opts.Recorder))
	return runner, nil
}

// IsLongRunning reports whether running name never returns on its own.
func IsLongRunning(name string) bool {
	return name == TaskWatch || name == TaskDev
}

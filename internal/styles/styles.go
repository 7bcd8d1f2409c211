// Package styles compiles the site stylesheet and runs the CSS post-processing chain.
package styles

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tdewolff/minify/v2"
	mincss "github.com/tdewolff/minify/v2/css"

	"git.home.luguber.info/inful/sitebuild/internal/config"
	"git.home.luguber.info/inful/sitebuild/internal/logfields"
	"git.home.luguber.info/inful/sitebuild/internal/pipeline"
)

const (
	// EntryFile is the stylesheet compiled from the source styles directory.
	EntryFile = "main.scss"
	// OutputFile is written to the destination styles directory.
	OutputFile = "main.css"
)

const emptySourceMap = `{"version":3,"sources":[],"names":[],"mappings":""}`

// Task builds the stylesheet.
type Task struct {
	compiler Compiler
	minifier *minify.M
}

// New returns a style task using compiler. A nil compiler means Dart Sass on PATH.
func New(compiler Compiler) *Task {
	if compiler == nil {
		compiler = &SassCompiler{}
	}
	m := minify.New()
	m.AddFunc("text/css", mincss.Minify)
	return &Task{compiler: compiler, minifier: m}
}

func (t *Task) postProcess() pipeline.Func {
	return pipeline.Chain(
		pipeline.NewStep("prefix", Prefix),
		pipeline.NewStep("comb", Comb),
		pipeline.NewStep("merge-media", MergeMediaQueries),
		pipeline.NewStep("lint", lintStep),
	)
}

func lintStep(_ context.Context, in []byte) ([]byte, error) {
	findings, err := Lint(in)
	if err != nil {
		return nil, err
	}
	for _, f := range findings {
		slog.Debug("Style lint", logfields.Area("styles"), slog.String("finding", f.String()))
	}
	if len(findings) > 0 {
		slog.Info("Style lint findings", logfields.Area("styles"), logfields.Count(len(findings)))
	}
	return in, nil
}

// Run compiles the entry stylesheet into the destination styles directory. Compilation and
// post-processing failures are logged and the task still succeeds; write failures are returned.
func (t *Task) Run(ctx context.Context, cfg config.Config) error {
	entry := cfg.Abs(filepath.Join(cfg.Paths.SrcStyles, EntryFile))
	if _, err := os.Stat(entry); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Info("No stylesheet entry, skipping", logfields.Path(entry))
			return nil
		}
		return fsError(err, "stat stylesheet entry", entry)
	}

	loadPaths := []string{cfg.Abs(cfg.Paths.SrcStyles)}
	if nm := cfg.Abs("node_modules"); isDir(nm) {
		loadPaths = append(loadPaths, nm)
	}

	res, err := t.compiler.Compile(ctx, entry, loadPaths)
	if err != nil {
		slog.Error("Stylesheet compile failed", logfields.Path(entry), logfields.Error(err))
		return nil
	}

	out, err := t.postProcess()(ctx, res.CSS)
	if err != nil {
		// Newer at-rules such as @layer and @container are outside the parser's grammar.
		slog.Warn("Stylesheet post-processing failed, writing compiled CSS as is",
			logfields.Path(entry), logfields.Error(err))
		out = res.CSS
	}

	dir := cfg.Abs(cfg.Paths.DistStyles)
	mapName := OutputFile + ".map"
	withMapRef := append(append([]byte{}, out...), []byte("\n/*# sourceMappingURL="+mapName+" */\n")...)
	if err := pipeline.WriteFile(filepath.Join(dir, OutputFile), withMapRef); err != nil {
		return err
	}
	sourceMap := res.SourceMap
	if len(sourceMap) == 0 {
		sourceMap = []byte(emptySourceMap)
	}
	if err := pipeline.WriteFile(filepath.Join(dir, mapName), sourceMap); err != nil {
		return err
	}

	if !cfg.Minify {
		return nil
	}
	minified, err := t.minifier.Bytes("text/css", out)
	if err != nil {
		slog.Error("Stylesheet minify failed", logfields.Path(entry), logfields.Error(err))
		return nil
	}
	return pipeline.WriteFile(filepath.Join(dir, pipeline.MinSuffix(OutputFile)), minified)
}

func isDir(p string) bool {
	st, err := os.Stat(p)
	return err == nil && st.IsDir()
}

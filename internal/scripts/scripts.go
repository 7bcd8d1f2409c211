// Package scripts concatenates, bundles and minifies the site JavaScript with esbuild.
package scripts

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"git.home.luguber.info/inful/sitebuild/internal/config"
	ferrors "git.home.luguber.info/inful/sitebuild/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuild/internal/logfields"
	"git.home.luguber.info/inful/sitebuild/internal/pipeline"
)

// OutputFile is the bundle name written to the destination scripts directory.
const OutputFile = "main.js"

// Task builds the script bundle.
type Task struct{}

// New returns a script task.
func New() *Task { return &Task{} }

// Run concatenates every script under the source scripts directory, bundles the result and
// writes both main.js and main.min.js. Minification is not gated on the minify flag.
func (t *Task) Run(ctx context.Context, cfg config.Config) error {
	srcDir := cfg.Abs(cfg.Paths.SrcScripts)
	files, err := pipeline.Glob(srcDir, "**/*.js")
	if err != nil {
		return err
	}
	if len(files) == 0 {
		slog.Info("No scripts found, skipping", logfields.Path(srcDir))
		return nil
	}

	source, err := concat(srcDir, files)
	if err != nil {
		return err
	}

	for _, m := range Lint(source) {
		slog.Warn("Script lint", logfields.Area("scripts"), slog.String("finding", m))
	}

	bundled, err := pipeline.Chain(
		pipeline.NewStep("bundle", bundleStep(srcDir)),
	)(ctx, source)
	if err != nil {
		slog.Error("Script bundle failed", logfields.Path(srcDir), logfields.Error(err))
		return nil
	}

	dist := cfg.Abs(cfg.Paths.DistScripts)
	if err := pipeline.WriteFile(filepath.Join(dist, OutputFile), bundled); err != nil {
		return err
	}

	minified, err := Minify(bundled)
	if err != nil {
		slog.Error("Script minify failed", logfields.Path(srcDir), logfields.Error(err))
		return nil
	}
	if err := pipeline.WriteFile(filepath.Join(dist, pipeline.MinSuffix(OutputFile)), minified); err != nil {
		return err
	}
	slog.Info("Scripts bundled", logfields.Count(len(files)), slog.Int("bytes", len(bundled)))
	return nil
}

// concat joins the files in order with a newline between each.
func concat(dir string, files []string) ([]byte, error) {
	var buf bytes.Buffer
	for i, rel := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "read script").
				WithPath(p).
				Build()
		}
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.Write(b)
	}
	return buf.Bytes(), nil
}

func bundleStep(resolveDir string) pipeline.Func {
	return func(_ context.Context, in []byte) ([]byte, error) {
		return Bundle(in, resolveDir)
	}
}

// Bundle resolves imports relative to resolveDir and emits one IIFE bundle.
func Bundle(source []byte, resolveDir string) ([]byte, error) {
	res := api.Build(api.BuildOptions{
		Stdin: &api.StdinOptions{
			Contents:   string(source),
			ResolveDir: resolveDir,
			Sourcefile: OutputFile,
			Loader:     api.LoaderJS,
		},
		Bundle:   true,
		Write:    false,
		Format:   api.FormatIIFE,
		LogLevel: api.LogLevelSilent,
	})
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("bundle: %s", formatMessages(res.Errors))
	}
	if len(res.OutputFiles) == 0 {
		return nil, fmt.Errorf("bundle: no output")
	}
	return res.OutputFiles[0].Contents, nil
}

// Minify strips whitespace, shortens identifiers and simplifies syntax.
func Minify(source []byte) ([]byte, error) {
	res := api.Transform(string(source), api.TransformOptions{
		Loader:            api.LoaderJS,
		MinifyWhitespace:  true,
		MinifyIdentifiers: true,
		MinifySyntax:      true,
		LogLevel:          api.LogLevelSilent,
	})
	if len(res.Errors) > 0 {
		return nil, fmt.Errorf("minify: %s", formatMessages(res.Errors))
	}
	return res.Code, nil
}

// Lint returns parser errors and warnings for source without transforming it.
func Lint(source []byte) []string {
	res := api.Transform(string(source), api.TransformOptions{
		Loader:     api.LoaderJS,
		Sourcefile: OutputFile,
		LogLevel:   api.LogLevelSilent,
	})
	msgs := make([]string, 0, len(res.Errors)+len(res.Warnings))
	for _, m := range res.Errors {
		msgs = append(msgs, "error: "+formatMessage(m))
	}
	for _, m := range res.Warnings {
		msgs = append(msgs, "warning: "+formatMessage(m))
	}
	return msgs
}

func formatMessage(m api.Message) string {
	if m.Location == nil {
		return m.Text
	}
	return fmt.Sprintf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column, m.Text)
}

func formatMessages(ms []api.Message) string {
	parts := make([]string, len(ms))
	for i, m := range ms {
		parts[i] = formatMessage(m)
	}
	return strings.Join(parts, "; ")
}

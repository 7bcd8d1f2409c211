// Package pipeline composes byte transformations into ordered chains and writes their results.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	ferrors "git.home.luguber.info/inful/sitebuild/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuild/internal/logfields"
)

// Func transforms one buffer into the next.
type Func func(ctx context.Context, in []byte) ([]byte, error)

// Step is a named transformation.
type Step struct {
	Name string
	Fn   Func
}

// NewStep is shorthand for Step{Name: name, Fn: fn}.
func NewStep(name string, fn Func) Step {
	return Step{Name: name, Fn: fn}
}

// Chain applies steps left to right. The first failing step aborts the chain and its
// error is returned wrapped with the step name.
func Chain(steps ...Step) Func {
	return func(ctx context.Context, in []byte) ([]byte, error) {
		buf := in
		for _, st := range steps {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			t0 := time.Now()
			out, err := st.Fn(ctx, buf)
			if err != nil {
				return nil, ferrors.WrapError(err, ferrors.CategoryTransform, "transform step failed").
					Warning().
					WithContext("step", st.Name).
					Build()
			}
			slog.Debug("Transform step complete",
				logfields.Step(st.Name),
				slog.Int("in_bytes", len(buf)),
				slog.Int("out_bytes", len(out)),
				logfields.DurationMS(float64(time.Since(t0).Microseconds())/1000))
			buf = out
		}
		return buf, nil
	}
}

// WriteFile writes data to path atomically, creating parent directories as needed.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "create output directory").
			WithPath(dir).
			Build()
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "create temp file").
			WithPath(path).
			Build()
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "write output file").
			WithPath(path).
			Build()
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "close output file").
			WithPath(path).
			Build()
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "chmod output file").
			WithPath(path).
			Build()
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "rename output file").
			WithPath(path).
			Build()
	}
	return nil
}

// MinSuffix inserts ".min" before the extension: main.css -> main.min.css.
func MinSuffix(name string) string {
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s.min%s", name[:len(name)-len(ext)], ext)
}

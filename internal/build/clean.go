package build

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/sitebuild/internal/config"
	ferrors "git.home.luguber.info/inful/sitebuild/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuild/internal/logfields"
)

// Clean removes the contents of the destination root, keeping the directory itself so a
// running server keeps a valid document root.
func Clean(_ context.Context, cfg config.Config) error {
	dist := cfg.Abs(cfg.Paths.Dist)
	entries, err := os.ReadDir(dist)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "read destination directory").
			WithPath(dist).
			Build()
	}
	for _, e := range entries {
		p := filepath.Join(dist, e.Name())
		if err := os.RemoveAll(p); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryFileSystem, "remove output").
				WithPath(p).
				Build()
		}
	}
	slog.Info("Cleaned destination", logfields.Path(dist), logfields.Count(len(entries)))
	return nil
}

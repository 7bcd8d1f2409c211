package pipeline

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	ferrors "git.home.luguber.info/inful/sitebuild/internal/foundation/errors"
)

// Glob returns the files under root whose slash-separated relative path matches pattern,
// sorted lexically. A missing root yields no files.
func Glob(root, pattern string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == root {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		ok, err := doublestar.Match(pattern, rel)
		if err != nil {
			return err
		}
		if ok {
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "walk source directory").
			WithPath(root).
			WithContext("pattern", pattern).
			Build()
	}
	sort.Strings(out)
	return out, nil
}

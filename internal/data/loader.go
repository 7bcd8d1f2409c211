// Package data loads the optional structured documents merged into template contexts.
package data

import (
	"errors"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/sitebuild/internal/foundation/errors"
)

// Set is a parsed content data document.
type Set map[string]any

// Loader reads data documents relative to BaseDir. It never caches: every Load re-reads storage.
type Loader struct {
	BaseDir string
}

// NewLoader creates a loader rooted at baseDir.
func NewLoader(baseDir string) *Loader {
	return &Loader{BaseDir: baseDir}
}

// Load parses the document at BaseDir + relativePath. A missing file yields an empty Set
// and no error; a malformed document is a data error.
func (l *Loader) Load(relativePath string) (Set, error) {
	path := filepath.Join(l.BaseDir, filepath.FromSlash(strings.TrimPrefix(relativePath, "/")))

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Set{}, nil
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "read data file").
			WithPath(path).
			Build()
	}

	set := Set{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(raw, &set)
	default:
		err = yaml.Unmarshal(raw, &set)
	}
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryData, "parse data file").
			WithPath(path).
			Build()
	}
	if set == nil {
		set = Set{}
	}
	return set, nil
}

// WithNextGig returns a copy of s where nextGig is the last entry of a non-empty gigs sequence.
// When gigs is missing, empty or not a sequence the copy has no nextGig key.
func WithNextGig(s Set) Set {
	out := make(Set, len(s)+1)
	maps.Copy(out, s)
	delete(out, "nextGig")

	gigs, ok := s["gigs"].([]any)
	if !ok || len(gigs) == 0 {
		return out
	}
	out["nextGig"] = gigs[len(gigs)-1]
	return out
}

// Merge returns base overlaid with over; keys in over take precedence.
func Merge(base, over map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(over))
	maps.Copy(out, base)
	maps.Copy(out, over)
	return out
}

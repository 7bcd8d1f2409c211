package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// envFiles are tried in order; earlier files win because godotenv never overrides.
var envFiles = []string{".env", ".env.local"}

// LoadEnvFiles loads KEY=VALUE files from dir into the process environment without
// overriding variables that are already set. It returns the files that were loaded.
func LoadEnvFiles(dir string) ([]string, error) {
	var loaded []string
	for _, name := range envFiles {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return loaded, err
		}
		if err := godotenv.Load(path); err != nil {
			return loaded, err
		}
		loaded = append(loaded, path)
	}
	return loaded, nil
}

// Package config resolves command-line flags and the fixed project layout into the
// immutable Config value handed to every task.
package config

import (
	"path/filepath"
	"strings"
)

const (
	DefaultEnvironment = "local"
	DefaultPort        = 3000
)

// Paths holds the fixed project layout, relative to the project root.
type Paths struct {
	Src         string
	Dist        string
	Data        string
	Templates   string
	SrcImages   string
	SrcStyles   string
	SrcScripts  string
	DistImages  string
	DistStyles  string
	DistScripts string
}

// DefaultPaths returns the directory layout every project uses.
func DefaultPaths() Paths {
	return Paths{
		Src:         "src",
		Dist:        "dist",
		Data:        "src/data",
		Templates:   "src/templates",
		SrcImages:   "src/assets/images",
		SrcStyles:   "src/assets/styles",
		SrcScripts:  "src/assets/scripts",
		DistImages:  "dist/assets/images",
		DistStyles:  "dist/assets/styles",
		DistScripts: "dist/assets/scripts",
	}
}

// Map returns the layout keyed by the names templates use.
func (p Paths) Map() map[string]string {
	return map[string]string{
		"src":         p.Src,
		"dist":        p.Dist,
		"data":        p.Data,
		"templates":   p.Templates,
		"srcImages":   p.SrcImages,
		"srcStyles":   p.SrcStyles,
		"srcScripts":  p.SrcScripts,
		"distImages":  p.DistImages,
		"distStyles":  p.DistStyles,
		"distScripts": p.DistScripts,
	}
}

// Flags are the user-controllable inputs to Resolve.
type Flags struct {
	Environment string
	Minify      bool
	Port        int
	Root        string
}

// Config is created once per process and passed by value; it is never mutated.
type Config struct {
	Environment string
	Minify      bool
	DefaultPort int
	Root        string
	Paths       Paths
}

// Resolve builds a Config from flags. It never fails: missing values fall back to defaults
// and the environment name is stored verbatim.
func Resolve(f Flags) Config {
	env := f.Environment
	if strings.TrimSpace(env) == "" {
		env = DefaultEnvironment
	}
	port := f.Port
	if port <= 0 {
		port = DefaultPort
	}
	root := f.Root
	if root == "" {
		root = "."
	}
	return Config{
		Environment: env,
		Minify:      f.Minify,
		DefaultPort: port,
		Root:        filepath.Clean(root),
		Paths:       DefaultPaths(),
	}
}

// Abs resolves a layout path against the project root.
func (c Config) Abs(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(c.Root, filepath.FromSlash(rel))
}

// Rel returns path relative to the project root using forward slashes.
func (c Config) Rel(path string) (string, error) {
	root, err := filepath.Abs(c.Root)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// TemplateData is the configuration view merged into every template context.
func (c Config) TemplateData() map[string]any {
	paths := make(map[string]any, 10)
	for k, v := range c.Paths.Map() {
		paths[k] = v
	}
	return map[string]any{
		"environment": c.Environment,
		"minify":      c.Minify,
		"defaultPort": c.DefaultPort,
		"paths":       paths,
	}
}

package watcher

import (
	"github.com/bmatcuk/doublestar/v4"

	"git.home.luguber.info/inful/sitebuild/internal/config"
	"git.home.luguber.info/inful/sitebuild/internal/livereload"
)

// Subscription binds source globs to the task that rebuilds them. Patterns are
// slash-separated and relative to the project root.
type Subscription struct {
	Name     string
	Patterns []string
	Task     string
	Reload   livereload.Kind
}

// Matches reports whether rel (slash-separated, relative to the root) is covered.
func (s Subscription) Matches(rel string) bool {
	for _, p := range s.Patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// DefaultSubscriptions returns the four source-area bindings.
func DefaultSubscriptions(p config.Paths) []Subscription {
	return []Subscription{
		{
			Name:     "scripts",
			Patterns: []string{p.SrcScripts + "/**/*.js"},
			Task:     "scripts",
			Reload:   livereload.KindReload,
		},
		{
			Name:     "styles",
			Patterns: []string{p.SrcStyles + "/**/*.scss"},
			Task:     "styles",
			Reload:   livereload.KindCSS,
		},
		{
			Name: "templates",
			Patterns: []string{
				p.Templates + "/**/*.html",
				p.Templates + "/**/*.md",
				p.Data + "/**/*.{yaml,yml,toml}",
			},
			Task:   "templates",
			Reload: livereload.KindReload,
		},
		{
			Name:     "images",
			Patterns: []string{p.SrcImages + "/**/*"},
			Task:     "images",
			Reload:   livereload.KindReload,
		},
	}
}

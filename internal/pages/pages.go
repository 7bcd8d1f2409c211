// Package pages renders the site's HTML and Markdown pages with the shared content data set.
package pages

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/Masterminds/sprig/v3"
	"github.com/tdewolff/minify/v2"
	minhtml "github.com/tdewolff/minify/v2/html"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"git.home.luguber.info/inful/sitebuild/internal/buildinfo"
	"git.home.luguber.info/inful/sitebuild/internal/config"
	"git.home.luguber.info/inful/sitebuild/internal/data"
	ferrors "git.home.luguber.info/inful/sitebuild/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuild/internal/logfields"
	"git.home.luguber.info/inful/sitebuild/internal/pipeline"
)

const (
	// GlobalDataFile is loaded from the data directory for every render.
	GlobalDataFile = "/global.yaml"
	// PagesDir holds the templates that produce output files.
	PagesDir = "pages"
	// LayoutTemplate wraps rendered Markdown pages when defined.
	LayoutTemplate = "layout.html"
)

// Task renders templates into the destination root.
type Task struct {
	markdown goldmark.Markdown
	minifier *minify.M
	title    cases.Caser
}

// New returns a template task.
func New() *Task {
	m := minify.New()
	m.Add("text/html", &minhtml.Minifier{
		KeepDocumentTags: true,
		KeepEndTags:      true,
		KeepQuotes:       true,
	})
	return &Task{
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
		),
		minifier: m,
		title:    cases.Title(language.English),
	}
}

// Context builds the shared template context: configuration and build info overlaid by the
// global data set, with nextGig derived from gigs.
func Context(cfg config.Config) (map[string]any, error) {
	set, err := data.NewLoader(cfg.Abs(cfg.Paths.Data)).Load(GlobalDataFile)
	if err != nil {
		return nil, err
	}
	info, err := buildinfo.Detect(cfg.Root)
	if err != nil {
		slog.Warn("Build info unavailable", logfields.Error(err))
	}
	base := cfg.TemplateData()
	base["build"] = info.Map()
	return data.Merge(base, data.WithNextGig(set)), nil
}

// Run renders every page. A malformed data file fails the task; render errors are logged
// per page and the task still succeeds.
func (t *Task) Run(ctx context.Context, cfg config.Config) error {
	tctx, err := Context(cfg)
	if err != nil {
		return err
	}

	tmplDir := cfg.Abs(cfg.Paths.Templates)
	all, err := pipeline.Glob(tmplDir, "**/*.{html,md}")
	if err != nil {
		return err
	}

	var shared, pages []string
	for _, rel := range all {
		if strings.HasPrefix(rel, PagesDir+"/") {
			pages = append(pages, rel)
		} else if path.Ext(rel) == ".html" {
			shared = append(shared, rel)
		}
	}

	base, err := t.parseShared(tmplDir, shared)
	if err != nil {
		slog.Error("Shared templates failed to parse", logfields.Path(tmplDir), logfields.Error(err))
		return nil
	}

	dist := cfg.Abs(cfg.Paths.Dist)
	var failed int
	for _, rel := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		out, err := t.renderPage(base, tmplDir, rel, tctx)
		if err != nil {
			failed++
			slog.Error("Page render failed", logfields.Path(rel), logfields.Error(err))
			continue
		}
		if cfg.Minify {
			minified, err := t.minifier.Bytes("text/html", out)
			if err != nil {
				slog.Warn("Page minify failed, writing unminified", logfields.Path(rel), logfields.Error(err))
			} else {
				out = minified
			}
		}
		if err := pipeline.WriteFile(filepath.Join(dist, filepath.FromSlash(outputPath(rel))), out); err != nil {
			return err
		}
	}
	slog.Info("Pages rendered", logfields.Count(len(pages)-failed), slog.Int("failed", failed))
	return nil
}

// outputPath maps pages/foo/bar.md to foo/bar.html.
func outputPath(rel string) string {
	out := strings.TrimPrefix(rel, PagesDir+"/")
	if path.Ext(out) == ".md" {
		out = strings.TrimSuffix(out, ".md") + ".html"
	}
	return out
}

func (t *Task) parseShared(dir string, files []string) (*template.Template, error) {
	root := template.New("").Funcs(sprig.FuncMap())
	for _, rel := range files {
		b, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "read template").
				WithPath(rel).
				Build()
		}
		if _, err := root.New(rel).Parse(string(b)); err != nil {
			return nil, fmt.Errorf("parse %s: %w", rel, err)
		}
	}
	return root, nil
}

func (t *Task) renderPage(base *template.Template, dir, rel string, tctx map[string]any) ([]byte, error) {
	src, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	if err != nil {
		return nil, err
	}
	tmpl, err := base.Clone()
	if err != nil {
		return nil, err
	}

	pageCtx := data.Merge(tctx, map[string]any{
		"page": map[string]any{"path": rel, "url": "/" + outputPath(rel)},
	})

	if path.Ext(rel) == ".md" {
		return t.renderMarkdown(tmpl, rel, src, pageCtx)
	}

	page, err := tmpl.New(rel).Parse(string(src))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := page.Execute(&buf, pageCtx); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (t *Task) renderMarkdown(tmpl *template.Template, rel string, src []byte, pageCtx map[string]any) ([]byte, error) {
	fm, body, err := splitFrontMatter(src)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := t.markdown.Convert(body, &buf); err != nil {
		return nil, err
	}

	title, _ := fm["title"].(string)
	if title == "" {
		name := strings.TrimSuffix(path.Base(rel), ".md")
		title = t.title.String(strings.NewReplacer("-", " ", "_", " ").Replace(name))
	}

	layout := tmpl.Lookup(LayoutTemplate)
	if layout == nil {
		return buf.Bytes(), nil
	}
	vars := data.Merge(pageCtx, map[string]any{
		// #nosec G203 -- markdown is authored in the project, not user input
		"content":     template.HTML(buf.String()),
		"title":       title,
		"frontMatter": fm,
	})
	var out bytes.Buffer
	if err := layout.Execute(&out, vars); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

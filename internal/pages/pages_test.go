package pages

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuild/internal/config"
	ferrors "git.home.luguber.info/inful/sitebuild/internal/foundation/errors"
)

type project struct {
	cfg config.Config
}

func newProject(t *testing.T, minify bool) project {
	t.Helper()
	return project{cfg: config.Resolve(config.Flags{Root: t.TempDir(), Minify: minify, Environment: "staging"})}
}

func (p project) write(t *testing.T, rel, body string) {
	t.Helper()
	full := p.cfg.Abs(rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(body), 0o600))
}

func (p project) read(t *testing.T, rel string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(p.cfg.Abs(p.cfg.Paths.Dist), filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(b)
}

const globalYAML = `title: Band Site
gigs:
  - venue: Old Hall
  - venue: Riverside
`

func TestRun_RendersWithDataAndConfig(t *testing.T) {
	p := newProject(t, false)
	p.write(t, "src/data/global.yaml", globalYAML)
	p.write(t, "src/templates/partials/head.html", `<title>{{ .title }}</title>`)
	p.write(t, "src/templates/pages/index.html", `<html><head>{{ template "partials/head.html" . }}</head>
<body>
  <p>{{ .nextGig.venue }}</p>
  <p>{{ .environment | upper }}</p>
  <p>{{ len .gigs }}</p>
</body></html>
`)

	require.NoError(t, New().Run(t.Context(), p.cfg))

	out := p.read(t, "index.html")
	assert.Contains(t, out, "<title>Band Site</title>")
	assert.Contains(t, out, "<p>Riverside</p>")
	assert.Contains(t, out, "<p>STAGING</p>")
	assert.Contains(t, out, "<p>2</p>")
	assert.Contains(t, out, "\n  <p>", "formatting preserved")
}

func TestRun_DataWinsOverConfig(t *testing.T) {
	p := newProject(t, false)
	p.write(t, "src/data/global.yaml", "environment: from-data\n")
	p.write(t, "src/templates/pages/env.html", `{{ .environment }}`)

	require.NoError(t, New().Run(t.Context(), p.cfg))
	assert.Equal(t, "from-data", p.read(t, "env.html"))
}

func TestRun_MissingDataFile(t *testing.T) {
	p := newProject(t, false)
	p.write(t, "src/templates/pages/index.html", `{{ .environment }}{{ if .nextGig }}gig{{ end }}`)

	require.NoError(t, New().Run(t.Context(), p.cfg))
	assert.Equal(t, "staging", p.read(t, "index.html"))
}

func TestRun_MalformedDataFails(t *testing.T) {
	p := newProject(t, false)
	p.write(t, "src/data/global.yaml", "gigs: [unclosed\n")
	p.write(t, "src/templates/pages/index.html", `x`)

	err := New().Run(t.Context(), p.cfg)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryData))
}

func TestRun_RenderErrorIsSoft(t *testing.T) {
	p := newProject(t, false)
	p.write(t, "src/templates/pages/broken.html", `{{ template "does-not-exist" . }}`)
	p.write(t, "src/templates/pages/blog/post.html", `<p>ok</p>`)

	require.NoError(t, New().Run(t.Context(), p.cfg))
	assert.Equal(t, "<p>ok</p>", p.read(t, "blog/post.html"))
	_, err := os.Stat(filepath.Join(p.cfg.Abs(p.cfg.Paths.Dist), "broken.html"))
	assert.True(t, os.IsNotExist(err))
}

func TestRun_MarkdownWithLayout(t *testing.T) {
	p := newProject(t, false)
	p.write(t, "src/templates/layout.html", `<html><head><title>{{ .title }}</title></head><body>{{ .content }}</body></html>`)
	p.write(t, "src/templates/pages/news.md", "---\ntitle: Latest News\n---\n# Hello\n\nSome *text*.\n")
	p.write(t, "src/templates/pages/about-us.md", "About page.\n")

	require.NoError(t, New().Run(t.Context(), p.cfg))

	news := p.read(t, "news.html")
	assert.Contains(t, news, "<title>Latest News</title>")
	assert.Contains(t, news, "<h1>Hello</h1>")
	assert.Contains(t, news, "<em>text</em>")

	about := p.read(t, "about-us.html")
	assert.Contains(t, about, "<title>About Us</title>")
}

func TestRun_MarkdownWithoutLayout(t *testing.T) {
	p := newProject(t, false)
	p.write(t, "src/templates/pages/plain.md", "plain *body*\n")

	require.NoError(t, New().Run(t.Context(), p.cfg))
	assert.Equal(t, "<p>plain <em>body</em></p>\n", p.read(t, "plain.html"))
}

func TestRun_Minify(t *testing.T) {
	body := "<html>\n  <body>\n    <div>\n      <p>hello</p>\n    </div>\n  </body>\n</html>\n"

	plain := newProject(t, false)
	plain.write(t, "src/templates/pages/index.html", body)
	require.NoError(t, New().Run(t.Context(), plain.cfg))

	min := newProject(t, true)
	min.write(t, "src/templates/pages/index.html", body)
	require.NoError(t, New().Run(t.Context(), min.cfg))

	full, small := plain.read(t, "index.html"), min.read(t, "index.html")
	assert.Less(t, len(small), len(full))
	assert.Contains(t, small, "<p>hello</p>")
	assert.NotContains(t, small, "\n    ")
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, "index.html", outputPath("pages/index.html"))
	assert.Equal(t, "blog/post.html", outputPath("pages/blog/post.md"))
}

func TestSplitFrontMatter(t *testing.T) {
	fm, body, err := splitFrontMatter([]byte("---\ntitle: T\n---\nbody\n"))
	require.NoError(t, err)
	assert.Equal(t, "T", fm["title"])
	assert.Equal(t, "body\n", string(body))

	fm, body, err = splitFrontMatter([]byte("no front matter"))
	require.NoError(t, err)
	assert.Empty(t, fm)
	assert.Equal(t, "no front matter", string(body))

	fm, body, err = splitFrontMatter([]byte("---\n---\nonly body"))
	require.NoError(t, err)
	assert.Empty(t, fm)
	assert.Equal(t, "only body", string(body))

	_, _, err = splitFrontMatter([]byte("---\ntitle: T\nbody"))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "never closed"))
}

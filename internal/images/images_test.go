package images

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuild/internal/config"
	"git.home.luguber.info/inful/sitebuild/internal/imagecache"
)

type countingOptimizer struct {
	mu    sync.Mutex
	calls map[string]int
}

func newCountingOptimizer() *countingOptimizer {
	return &countingOptimizer{calls: map[string]int{}}
}

func (c *countingOptimizer) Optimize(_ context.Context, name string, in []byte) ([]byte, error) {
	c.mu.Lock()
	c.calls[name]++
	c.mu.Unlock()
	return append([]byte("opt:"), in...), nil
}

func (c *countingOptimizer) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[name]
}

func setup(t *testing.T) (config.Config, *countingOptimizer, *Task) {
	t.Helper()
	cfg := config.Resolve(config.Flags{Root: t.TempDir()})
	store, err := imagecache.NewMemoryStore(0)
	require.NoError(t, err)
	opt := newCountingOptimizer()
	return cfg, opt, New(store, WithOptimizer(opt))
}

func writeImage(t *testing.T, cfg config.Config, rel string, body []byte) string {
	t.Helper()
	p := filepath.Join(cfg.Abs(cfg.Paths.SrcImages), filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, body, 0o600))
	return p
}

func readOutput(t *testing.T, cfg config.Config, rel string) []byte {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(cfg.Abs(cfg.Paths.DistImages), filepath.FromSlash(rel)))
	require.NoError(t, err)
	return b
}

func TestRun_UnchangedImageNotReprocessed(t *testing.T) {
	cfg, opt, task := setup(t)
	writeImage(t, cfg, "logo.png", []byte("png-bytes"))
	writeImage(t, cfg, "gallery/a.jpg", []byte("jpg-bytes"))

	require.NoError(t, task.Run(t.Context(), cfg))
	first := readOutput(t, cfg, "gallery/a.jpg")
	assert.Equal(t, "opt:jpg-bytes", string(first))

	require.NoError(t, task.Run(t.Context(), cfg))
	assert.Equal(t, first, readOutput(t, cfg, "gallery/a.jpg"))
	assert.Equal(t, 1, opt.count("logo.png"))
	assert.Equal(t, 1, opt.count("gallery/a.jpg"))
}

func TestRun_ContentChangeInvalidates(t *testing.T) {
	cfg, opt, task := setup(t)
	p := writeImage(t, cfg, "logo.png", []byte("v1"))
	require.NoError(t, task.Run(t.Context(), cfg))

	require.NoError(t, os.WriteFile(p, []byte("v2-longer"), 0o600))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(p, future, future))

	require.NoError(t, task.Run(t.Context(), cfg))
	assert.Equal(t, 2, opt.count("logo.png"))
	assert.Equal(t, "opt:v2-longer", string(readOutput(t, cfg, "logo.png")))
}

func TestRun_TouchedButIdenticalHitsDigest(t *testing.T) {
	cfg, opt, task := setup(t)
	p := writeImage(t, cfg, "logo.png", []byte("same"))
	require.NoError(t, task.Run(t.Context(), cfg))

	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(p, future, future))
	require.NoError(t, task.Run(t.Context(), cfg))
	assert.Equal(t, 1, opt.count("logo.png"))
}

func TestRun_RestoresDeletedOutputFromCache(t *testing.T) {
	cfg, opt, task := setup(t)
	writeImage(t, cfg, "logo.png", []byte("x"))
	require.NoError(t, task.Run(t.Context(), cfg))

	require.NoError(t, os.RemoveAll(cfg.Abs(cfg.Paths.Dist)))
	require.NoError(t, task.Run(t.Context(), cfg))
	assert.Equal(t, "opt:x", string(readOutput(t, cfg, "logo.png")))
	assert.Equal(t, 1, opt.count("logo.png"))
}

// extOptimizer tags its output with the extension it optimized for.
type extOptimizer struct{}

func (extOptimizer) Optimize(_ context.Context, name string, in []byte) ([]byte, error) {
	return append([]byte(filepath.Ext(name)+":"), in...), nil
}

func TestRun_IdenticalContentDifferentExtensions(t *testing.T) {
	cfg := config.Resolve(config.Flags{Root: t.TempDir()})
	store, err := imagecache.NewMemoryStore(0)
	require.NoError(t, err)
	task := New(store, WithOptimizer(extOptimizer{}))
	body := []byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`)
	writeImage(t, cfg, "icon.svg", body)
	writeImage(t, cfg, "icon.xml", body)

	for range 2 {
		require.NoError(t, task.Run(t.Context(), cfg))
		assert.Equal(t, ".svg:"+string(body), string(readOutput(t, cfg, "icon.svg")))
		assert.Equal(t, ".xml:"+string(body), string(readOutput(t, cfg, "icon.xml")))
	}
}

func TestRun_NoImages(t *testing.T) {
	cfg, _, task := setup(t)
	require.NoError(t, task.Run(t.Context(), cfg))
}

func encodePNG16(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA64(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.SetNRGBA64(x, y, color.NRGBA64{R: 0xffff, G: 0x8080, B: 0, A: 0xffff})
		}
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.NoCompression}
	require.NoError(t, enc.Encode(&buf, img))
	return buf.Bytes()
}

func TestDefaultOptimizer_PNG(t *testing.T) {
	in := encodePNG16(t)
	out, err := NewDefaultOptimizer().Optimize(t.Context(), "a.png", in)
	require.NoError(t, err)
	assert.Less(t, len(out), len(in))

	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	_, is16 := img.(*image.NRGBA64)
	assert.False(t, is16)
}

func TestDefaultOptimizer_JPEG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 8), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 100}))

	out, err := NewDefaultOptimizer().Optimize(t.Context(), "photo.JPG", buf.Bytes())
	require.NoError(t, err)
	assert.Less(t, len(out), buf.Len())
}

func TestDefaultOptimizer_SVG(t *testing.T) {
	in := []byte(`<?xml version="1.0"?>
<!-- comment -->
<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10">
    <rect x="0" y="0" width="10" height="10" fill="#ff0000" />
</svg>
`)
	out, err := NewDefaultOptimizer().Optimize(t.Context(), "icon.svg", in)
	require.NoError(t, err)
	assert.Less(t, len(out), len(in))
	assert.NotContains(t, string(out), "comment")
}

func TestDefaultOptimizer_PassThrough(t *testing.T) {
	in := []byte("GIF89a...")
	out, err := NewDefaultOptimizer().Optimize(t.Context(), "anim.gif", in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDefaultOptimizer_NeverGrows(t *testing.T) {
	var buf bytes.Buffer
	img := image.NewGray(image.Rect(0, 0, 1, 1))
	require.NoError(t, (&png.Encoder{CompressionLevel: png.BestCompression}).Encode(&buf, img))

	out, err := NewDefaultOptimizer().Optimize(t.Context(), "dot.png", buf.Bytes())
	require.NoError(t, err)
	assert.LessOrEqual(t, len(out), buf.Len())
}

package images

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/svg"
	"golang.org/x/image/draw"
)

// Optimizer reduces the size of one image. Implementations must be deterministic: the same
// input always yields the same output.
type Optimizer interface {
	Optimize(ctx context.Context, name string, in []byte) ([]byte, error)
}

// JPEGQuality is the re-encode quality for JPEG files.
const JPEGQuality = 85

// DefaultOptimizer re-encodes PNG and JPEG files and minifies SVG. Output is kept only when
// smaller than the input; other formats pass through unchanged.
type DefaultOptimizer struct {
	minifier *minify.M
}

// NewDefaultOptimizer returns the built-in optimizer.
func NewDefaultOptimizer() *DefaultOptimizer {
	m := minify.New()
	m.AddFunc("image/svg+xml", svg.Minify)
	return &DefaultOptimizer{minifier: m}
}

func (o *DefaultOptimizer) Optimize(_ context.Context, name string, in []byte) ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png":
		out, err = optimizePNG(in)
	case ".jpg", ".jpeg":
		out, err = optimizeJPEG(in)
	case ".svg":
		out, err = o.minifier.Bytes("image/svg+xml", in)
	default:
		return in, nil
	}
	if err != nil {
		return nil, err
	}
	if len(out) >= len(in) {
		return in, nil
	}
	return out, nil
}

func optimizePNG(in []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(in))
	if err != nil {
		return nil, err
	}
	img = reduceDepth(img)
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// reduceDepth converts 16-bit-per-channel images to 8 bits.
func reduceDepth(img image.Image) image.Image {
	switch src := img.(type) {
	case *image.RGBA64, *image.NRGBA64:
		dst := image.NewNRGBA(src.Bounds())
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
		return dst
	case *image.Gray16:
		dst := image.NewGray(src.Bounds())
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
		return dst
	default:
		return img
	}
}

func optimizeJPEG(in []byte) ([]byte, error) {
	img, err := jpeg.Decode(bytes.NewReader(in))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/sitebuild/internal/foundation/errors"
)

func upper(_ context.Context, in []byte) ([]byte, error) { return bytes.ToUpper(in), nil }

func suffix(s string) Func {
	return func(_ context.Context, in []byte) ([]byte, error) { return append(in, s...), nil }
}

func TestChain_LeftToRight(t *testing.T) {
	fn := Chain(NewStep("upper", upper), NewStep("bang", suffix("!")), NewStep("q", suffix("?")))
	out, err := fn(t.Context(), []byte("hi"))
	require.NoError(t, err)
	assert.Equal(t, "HI!?", string(out))
}

func TestChain_StopsAtFirstFailure(t *testing.T) {
	called := false
	fn := Chain(
		NewStep("fail", func(context.Context, []byte) ([]byte, error) { return nil, errors.New("boom") }),
		NewStep("after", func(_ context.Context, in []byte) ([]byte, error) { called = true; return in, nil }),
	)
	_, err := fn(t.Context(), []byte("x"))
	require.Error(t, err)
	assert.False(t, called)

	classified, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, ferrors.CategoryTransform, classified.Category())
	step, _ := classified.Context().GetString("step")
	assert.Equal(t, "fail", step)
}

func TestChain_Empty(t *testing.T) {
	out, err := Chain()(t.Context(), []byte("same"))
	require.NoError(t, err)
	assert.Equal(t, "same", string(out))
}

func TestWriteFile_CreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "c.txt")
	require.NoError(t, WriteFile(path, []byte("content")))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "content", string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestMinSuffix(t *testing.T) {
	assert.Equal(t, "main.min.css", MinSuffix("main.css"))
	assert.Equal(t, "main.min.js", MinSuffix("main.js"))
	assert.Equal(t, "noext.min", MinSuffix("noext"))
}

func TestGlob(t *testing.T) {
	root := t.TempDir()
	for _, p := range []string{"b.js", "a.js", "lib/c.js", "lib/readme.md"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, filepath.Dir(p)), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(root, p), []byte("x"), 0o600))
	}

	files, err := Glob(root, "**/*.js")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.js", "b.js", "lib/c.js"}, files)
}

func TestGlob_MissingRoot(t *testing.T) {
	files, err := Glob(filepath.Join(t.TempDir(), "missing"), "**/*")
	require.NoError(t, err)
	assert.Empty(t, files)
}

package imagecache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := t.Context()

	_, ok, err := s.Digest(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = s.Output(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	sig := Signature("logo.png", 10, time.Unix(100, 0))
	digest := Digest([]byte("raw"), "logo.png")
	require.NoError(t, s.Put(ctx, sig, digest, []byte("optimized")))
	// idempotent
	require.NoError(t, s.Put(ctx, sig, digest, []byte("optimized")))

	got, ok, err := s.Digest(ctx, sig)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, digest, got)

	out, ok, err := s.Output(ctx, digest)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "optimized", string(out))
}

func TestMemoryStore(t *testing.T) {
	s, err := NewMemoryStore(0)
	require.NoError(t, err)
	exerciseStore(t, s)
	require.NoError(t, s.Close())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s, err := NewMemoryStore(4)
	require.NoError(t, err)
	require.NoError(t, s.Put(t.Context(), "sig", "d", []byte("abc")))

	out, _, err := s.Output(t.Context(), "d")
	require.NoError(t, err)
	out[0] = 'X'

	again, _, err := s.Output(t.Context(), "d")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(again))
}

func TestSQLiteStore_InMemory(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	exerciseStore(t, s)
}

func TestSQLiteStore_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "images.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(t.Context(), "sig", "digest", []byte{1, 2, 3}))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	out, ok, err := reopened.Output(t.Context(), "digest")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, out)
}

func TestSignature(t *testing.T) {
	ts := time.Unix(5, 0)
	assert.Equal(t, Signature("a.png", 1, ts), Signature("a.png", 1, ts))
	assert.NotEqual(t, Signature("a.png", 1, ts), Signature("a.png", 2, ts))
	assert.NotEqual(t, Signature("a.png", 1, ts), Signature("a.png", 1, ts.Add(time.Second)))
	assert.NotEqual(t, Digest([]byte("a"), "x.png"), Digest([]byte("b"), "x.png"))
	assert.NotEqual(t, Digest([]byte("a"), "icon.svg"), Digest([]byte("a"), "icon.xml"))
	assert.Equal(t, Digest([]byte("a"), "a/ICON.SVG"), Digest([]byte("a"), "b/icon.svg"))
}

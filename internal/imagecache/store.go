// Package imagecache memoizes optimized image bytes across image task runs.
//
// Entries are keyed twice: a file signature (path, size, modification time) maps to a
// content digest, and the digest (contents plus extension) maps to the optimized output. An unchanged file hits on
// the signature without being read; a touched but identical file hits on the digest.
// Writes are idempotent per key.
package imagecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Store persists signature and output entries.
type Store interface {
	// Digest returns the content digest recorded for a signature.
	Digest(ctx context.Context, signature string) (string, bool, error)
	// Output returns the optimized bytes recorded for a digest.
	Output(ctx context.Context, digest string) ([]byte, bool, error)
	// Put records both mappings.
	Put(ctx context.Context, signature, digest string, output []byte) error
	Close() error
}

// Signature identifies a file version without reading its contents.
func Signature(relPath string, size int64, modTime time.Time) string {
	return fmt.Sprintf("%s|%d|%d", relPath, size, modTime.UnixNano())
}

// Digest keys optimized output by file contents and lowercased extension, since the
// optimizer picks its codec from the extension.
func Digest(content []byte, name string) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:]) + "|" + strings.ToLower(filepath.Ext(name))
}

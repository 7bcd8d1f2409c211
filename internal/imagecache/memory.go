package imagecache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemoryEntries bounds each of the two in-memory maps.
const DefaultMemoryEntries = 4096

// MemoryStore is a process-wide bounded store.
type MemoryStore struct {
	signatures *lru.Cache[string, string]
	outputs    *lru.Cache[string, []byte]
}

// NewMemoryStore creates a store holding up to size entries per map (DefaultMemoryEntries when size <= 0).
func NewMemoryStore(size int) (*MemoryStore, error) {
	if size <= 0 {
		size = DefaultMemoryEntries
	}
	sigs, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("create signature cache: %w", err)
	}
	outs, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("create output cache: %w", err)
	}
	return &MemoryStore{signatures: sigs, outputs: outs}, nil
}

func (m *MemoryStore) Digest(_ context.Context, signature string) (string, bool, error) {
	d, ok := m.signatures.Get(signature)
	return d, ok, nil
}

func (m *MemoryStore) Output(_ context.Context, digest string) ([]byte, bool, error) {
	b, ok := m.outputs.Get(digest)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), b...), true, nil
}

func (m *MemoryStore) Put(_ context.Context, signature, digest string, output []byte) error {
	m.outputs.Add(digest, append([]byte(nil), output...))
	m.signatures.Add(signature, digest)
	return nil
}

func (m *MemoryStore) Close() error {
	m.signatures.Purge()
	m.outputs.Purge()
	return nil
}

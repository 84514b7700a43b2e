package contexts

import (
	"context"
	"sync"

	"github.com/mahesh-hegde/explorer/app/common"
)

// Store is content-addressable storage for contexts. PersistContext is
// idempotent: storing structurally equal contexts yields the same hash.
// FetchContext returns *common.ContextNotFoundError for unknown hashes.
// Stored contexts are never negated.
type Store interface {
	PersistContext(ctx context.Context, c Context) (string, error)
	FetchContext(ctx context.Context, hash string) (Context, error)
}

// MemoryStore keeps context content in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	contents map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{contents: make(map[string][]byte)}
}

var _ Store = &MemoryStore{}

func (s *MemoryStore) PersistContext(ctx context.Context, c Context) (string, error) {
	hash, content, err := c.Content()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contents[hash]; !ok {
		s.contents[hash] = content
	}
	return hash, nil
}

func (s *MemoryStore) FetchContext(ctx context.Context, hash string) (Context, error) {
	s.mu.RLock()
	content, ok := s.contents[hash]
	s.mu.RUnlock()
	if !ok {
		return Context{}, &common.ContextNotFoundError{Hash: hash}
	}
	return decodeContent(hash, content)
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contents)
}

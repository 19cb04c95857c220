package secrets

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-process secret store for tests and local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	secrets map[string]map[string]string
	// Unreachable simulates the secret store being down; Ping fails while set.
	Unreachable bool
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{secrets: make(map[string]map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, path string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	secret, ok := s.secrets[path]
	if !ok {
		return nil, nil
	}
	copied := make(map[string]string, len(secret))
	for k, v := range secret {
		copied[k] = v
	}
	return copied, nil
}

func (s *MemoryStore) Set(_ context.Context, path string, secret map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[path] = secret
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.secrets, path)
	return nil
}

func (s *MemoryStore) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.Unreachable {
		return fmt.Errorf("secret store unreachable")
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }

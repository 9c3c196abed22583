package secrets

import (
	"context"
	"sync"
)

// MemoryStore is an in-process SecretStore used by tests.
type MemoryStore struct {
	mu      sync.RWMutex
	secrets map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{secrets: make(map[string]string)}
}

func (s *MemoryStore) GetSecret(ctx context.Context, name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.secrets[name]
	if !ok {
		return "", ErrSecretNotFound
	}
	return value, nil
}

func (s *MemoryStore) SetSecret(ctx context.Context, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.secrets[name] = value
	return nil
}

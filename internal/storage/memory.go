package storage

import (
	"context"
	"sync"
)

// MemoryBackend keeps every scope in process memory.
type MemoryBackend struct {
	mu     sync.RWMutex
	scopes map[string]map[string]string
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{scopes: make(map[string]map[string]string)}
}

// Scope returns the namespace for id.
func (b *MemoryBackend) Scope(id string) (Storage, error) {
	if err := ValidateScope(id); err != nil {
		return nil, err
	}
	return &memoryStorage{backend: b, scope: id}, nil
}

// Close drops all data.
func (b *MemoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scopes = make(map[string]map[string]string)
	return nil
}

type memoryStorage struct {
	backend *MemoryBackend
	scope   string
}

func (s *memoryStorage) GetItem(_ context.Context, key string) (string, bool, error) {
	s.backend.mu.RLock()
	defer s.backend.mu.RUnlock()

	value, ok := s.backend.scopes[s.scope][key]
	return value, ok, nil
}

func (s *memoryStorage) SetItem(_ context.Context, key, value string) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()

	items, ok := s.backend.scopes[s.scope]
	if !ok {
		items = make(map[string]string)
		s.backend.scopes[s.scope] = items
	}
	items[key] = value
	return nil
}

func (s *memoryStorage) RemoveItem(_ context.Context, key string) error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()

	delete(s.backend.scopes[s.scope], key)
	return nil
}

package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Ensure MemoryStore implements the TokenStore interface
var _ TokenStore = (*MemoryStore)(nil)

// MemoryStore keeps tokens in process memory. Suitable for development and
// tests; nothing survives a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]*StoredToken
}

// NewMemoryStore creates a new in-memory token store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]*StoredToken)}
}

// Put stores or replaces the token under key
func (s *MemoryStore) Put(ctx context.Context, key string, token *StoredToken) error {
	if token == nil {
		return fmt.Errorf("token cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *token
	stored.UpdatedAt = time.Now()
	s.tokens[key] = &stored
	return nil
}

// Get retrieves the token under key
func (s *MemoryStore) Get(ctx context.Context, key string) (*StoredToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, exists := s.tokens[key]
	if !exists {
		return nil, ErrTokenNotFound
	}
	stored := *token
	return &stored, nil
}

// Delete removes the token under key. Deleting an absent key is not an error.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tokens, key)
	return nil
}

// DeleteExpired removes every stored token past its expiry
func (s *MemoryStore) DeleteExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for key, token := range s.tokens {
		if token.Expired() {
			delete(s.tokens, key)
			deleted++
		}
	}
	return deleted, nil
}

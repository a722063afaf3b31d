package cookiesession

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps revocations in process memory. It suits single-instance
// deployments and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{revoked: make(map[string]time.Time)}
}

func (s *MemoryStore) Revoke(ctx context.Context, id string, expiresAt time.Time) error {
	if !expiresAt.After(time.Now()) {
		return nil
	}
	s.mu.Lock()
	s.revoked[id] = expiresAt
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) IsRevoked(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	expiresAt, ok := s.revoked[id]
	s.mu.RUnlock()
	return ok && expiresAt.After(time.Now()), nil
}

func (s *MemoryStore) Cleanup(ctx context.Context) error {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, expiresAt := range s.revoked {
		if !expiresAt.After(now) {
			delete(s.revoked, id)
		}
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// Len returns the number of recorded revocations, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.revoked)
}

package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps leases in process. It only serializes callers sharing the same instance.
type MemoryStore struct {
	mu     sync.Mutex
	leases map[string]memoryLease
}

type memoryLease struct {
	owner     string
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{leases: make(map[string]memoryLease)}
}

func (s *MemoryStore) Acquire(_ context.Context, key, owner string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if l, ok := s.leases[key]; ok && now.Before(l.expiresAt) {
		return false, nil
	}
	s.leases[key] = memoryLease{owner: owner, expiresAt: now.Add(ttl)}
	return true, nil
}

func (s *MemoryStore) Release(_ context.Context, key, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, ok := s.leases[key]; ok && l.owner == owner {
		delete(s.leases, key)
	}
	return nil
}

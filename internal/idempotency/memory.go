package idempotency

import (
	"context"
	"sync"
	"time"
)

// InMemory is a process-local Store for tests and single-instance deployments.
type InMemory struct {
	mu      sync.RWMutex
	entries map[string]*CachedResponse
	ttl     time.Duration
	now     func() time.Time
}

func NewInMemory(ttl time.Duration) *InMemory {
	return &InMemory{
		entries: make(map[string]*CachedResponse),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *InMemory) Get(_ context.Context, key string) (*CachedResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok || s.now().After(entry.ExpiresAt) {
		return nil, nil
	}
	cp := *entry
	return &cp, nil
}

func (s *InMemory) Set(_ context.Context, key string, response *CachedResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if existing, ok := s.entries[key]; ok && !now.After(existing.ExpiresAt) {
		return nil
	}
	cp := *response
	cp.ExpiresAt = now.Add(s.ttl)
	s.entries[key] = &cp
	return nil
}

// RunCleanup removes expired entries every interval until ctx is done.
func (s *InMemory) RunCleanup(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *InMemory) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, entry := range s.entries {
		if now.After(entry.ExpiresAt) {
			delete(s.entries, key)
		}
	}
}

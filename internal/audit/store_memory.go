package audit

import (
	"context"
	"slices"
	"sync"
)

// Store is the append-only audit log.
type Store interface {
	Append(ctx context.Context, event Event) error
	// ListBySubject returns one claim's events ordered by timestamp.
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
}

// InMemoryStore keeps events in arrival order. Listing sorts by timestamp with
// arrival order breaking ties, matching the postgres store.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	return nil
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subject string) ([]Event, error) {
	s.mu.RLock()
	var out []Event
	for _, e := range s.events {
		if e.Subject == subject {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b Event) int { return a.Timestamp.Compare(b.Timestamp) })
	return out, nil
}

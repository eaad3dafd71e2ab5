package store

import (
	"context"
	"fmt"
	"sync"

	"attesto/internal/claims/models"
	"attesto/pkg/platform/outbox"
	"attesto/pkg/platform/sentinel"
	"attesto/pkg/requestcontext"
)

// InMemoryStore is an in-memory implementation of the claim store for tests or local use.
// It is safe for concurrent access but does not persist across process restarts.
type InMemoryStore struct {
	mu     sync.RWMutex
	claims map[models.ClaimID]*models.Claim
	order  []models.ClaimID
	outbox outbox.Store
}

// MemoryOption configures an InMemoryStore.
type MemoryOption func(*InMemoryStore)

// WithOutbox makes every create and decision append a lifecycle event to ob inside
// the same critical section as the state change.
func WithOutbox(ob outbox.Store) MemoryOption {
	return func(s *InMemoryStore) {
		s.outbox = ob
	}
}

// NewInMemoryStore constructs an empty in-memory claim store.
func NewInMemoryStore(opts ...MemoryOption) *InMemoryStore {
	s := &InMemoryStore{claims: make(map[models.ClaimID]*models.Claim)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create assigns an ID, forces the claim to PENDING and stores a copy.
func (s *InMemoryStore) Create(ctx context.Context, claim *models.Claim) (models.ClaimID, error) {
	if claim == nil {
		return "", fmt.Errorf("claim is required: %w", sentinel.ErrInvalidInput)
	}
	record := newPendingRecord(ctx, claim)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.emit(ctx, models.EventClaimCreated, record); err != nil {
		return "", err
	}
	s.claims[record.ID] = record
	s.order = append(s.order, record.ID)
	return record.ID, nil
}

// ListByOwner returns every claim whose holder is did.
func (s *InMemoryStore) ListByOwner(_ context.Context, did string) ([]*models.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Claim, 0)
	for _, id := range s.order {
		if c := s.claims[id]; c.Owner == did {
			out = append(out, c.Clone())
		}
	}
	return out, nil
}

// ListByIssuer returns claims addressed to did, optionally restricted to one status.
func (s *InMemoryStore) ListByIssuer(_ context.Context, did string, status *models.Status) ([]*models.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Claim, 0)
	for _, id := range s.order {
		c := s.claims[id]
		if c.Issuer != did {
			continue
		}
		if status != nil && c.Status != *status {
			continue
		}
		out = append(out, c.Clone())
	}
	return out, nil
}

// FindByID returns the claim or sentinel.ErrNotFound.
func (s *InMemoryStore) FindByID(_ context.Context, id models.ClaimID) (*models.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.claims[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return c.Clone(), nil
}

// FindMatching returns the claim only if it currently satisfies pre.
func (s *InMemoryStore) FindMatching(_ context.Context, id models.ClaimID, pre models.Precondition) (*models.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.claims[id]
	if !ok || !pre.Matches(c) {
		return nil, sentinel.ErrNotFound
	}
	return c.Clone(), nil
}

// ConditionalUpdate applies patch only if the claim still satisfies pre. Check and
// write happen under one lock, so of two racing updates exactly one applies.
func (s *InMemoryStore) ConditionalUpdate(ctx context.Context, id models.ClaimID, pre models.Precondition, patch models.Patch) (*models.Claim, error) {
	if err := validatePatch(patch); err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx).UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.claims[id]
	if !ok || !pre.Matches(c) {
		return nil, sentinel.ErrNotFound
	}

	updated := c.Clone()
	applyPatch(updated, patch, now)
	if err := s.emit(ctx, models.EventForStatus(updated.Status), updated); err != nil {
		return nil, err
	}
	s.claims[id] = updated
	return updated.Clone(), nil
}

func (s *InMemoryStore) emit(ctx context.Context, t models.EventType, c *models.Claim) error {
	if s.outbox == nil {
		return nil
	}
	entry, err := newOutboxEntry(ctx, t, c)
	if err != nil {
		return err
	}
	if err := s.outbox.Append(ctx, entry); err != nil {
		return fmt.Errorf("append claim event: %w", err)
	}
	return nil
}

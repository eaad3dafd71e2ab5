// Package store persists claims. Every implementation offers the same compare-and-swap
// contract: ConditionalUpdate applies a patch only while the claim still matches the
// caller's precondition, and reports sentinel.ErrNotFound otherwise.
package store

import (
	"context"
	"fmt"
	"time"

	"attesto/internal/claims/models"
	"attesto/pkg/platform/outbox"
	"attesto/pkg/platform/sentinel"
	"attesto/pkg/requestcontext"
)

func newPendingRecord(ctx context.Context, claim *models.Claim) *models.Claim {
	record := claim.Clone()
	record.ID = models.NewClaimID()
	record.Status = models.StatusPending
	record.Career = nil
	record.DecidedAt = nil
	if record.CreatedAt.IsZero() {
		record.CreatedAt = requestcontext.Now(ctx).UTC()
	}
	return record
}

// validatePatch rejects patches that would break the lifecycle: only terminal
// statuses are written, and a career accompanies acceptance and nothing else.
func validatePatch(patch models.Patch) error {
	if !patch.Status.IsTerminal() {
		return fmt.Errorf("patch status %q is not terminal: %w", patch.Status, sentinel.ErrInvalidInput)
	}
	if (patch.Status == models.StatusAccepted) != (patch.Career != nil) {
		return fmt.Errorf("career must be set exactly when accepting: %w", sentinel.ErrInvalidInput)
	}
	return nil
}

func applyPatch(c *models.Claim, patch models.Patch, now time.Time) {
	c.Status = patch.Status
	c.Career = nil
	if patch.Career != nil {
		career := *patch.Career
		career.Record = patch.Career.Record.Clone()
		c.Career = &career
	}
	c.DecidedAt = &now
}

func newOutboxEntry(ctx context.Context, t models.EventType, c *models.Claim) (*outbox.Entry, error) {
	now := requestcontext.Now(ctx).UTC()
	payload, err := models.NewEvent(t, c, now).Payload()
	if err != nil {
		return nil, fmt.Errorf("marshal claim event: %w", err)
	}
	return outbox.NewEntry(models.AggregateType, c.ID.String(), string(t), payload, now), nil
}

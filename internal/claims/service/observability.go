package service

import (
	"context"

	"attesto/internal/audit"
	"attesto/internal/claims/models"
	"attesto/pkg/requestcontext"
)

// logAudit logs a lifecycle event and forwards it to the auditor. Audit is best
// effort: failures are logged, never returned.
func (s *Service) logAudit(ctx context.Context, action audit.Action, actor string, claim *models.Claim) {
	s.logger.InfoContext(ctx, string(action),
		"claim_id", claim.ID,
		"actor", actor,
		"status", claim.Status,
		"career_type", claim.CareerType,
		"request_id", requestcontext.RequestID(ctx),
		"log_type", "audit",
	)
	if s.auditor == nil {
		return
	}
	event := audit.Event{
		Actor:   actor,
		Subject: claim.ID.String(),
		Action:  string(action),
	}
	if claim.Status.IsTerminal() {
		event.Decision = string(claim.Status)
	}
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event", "error", err, "action", action, "claim_id", claim.ID)
	}
}

func (s *Service) countCreated() {
	if s.metrics != nil {
		s.metrics.IncClaimsCreated()
	}
}

func (s *Service) countDecided(claim *models.Claim) {
	if s.metrics != nil {
		s.metrics.IncClaimsDecided(string(claim.Status), string(claim.CareerType))
	}
}

func (s *Service) countConflict() {
	if s.metrics != nil {
		s.metrics.IncDecisionConflicts()
	}
}

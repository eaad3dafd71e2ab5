package service

import (
	"context"

	"attesto/internal/audit"
	"attesto/internal/claims/models"
	"attesto/internal/platform/tracer"
	dErrors "attesto/pkg/domain-errors"
)

// Create files a PENDING claim owned by the caller. The caller must be an EMPLOYEE
// and issuerDID must resolve to an EMPLOYER; otherwise nothing is persisted.
func (s *Service) Create(ctx context.Context, cred, issuerDID, title string, content models.Content, careerType models.CareerType) (id models.ClaimID, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanClaimCreate,
		tracer.String(tracer.AttrCareerType, string(careerType)),
	)
	defer func() { span.End(err) }()

	if careerType != models.CareerTypeVC && careerType != models.CareerTypePlain {
		return "", dErrors.New(dErrors.CodeInvalidInput, "career_type must be VC or PLAIN")
	}

	caller, err := s.authorize(ctx, cred, models.RoleEmployee)
	if err != nil {
		return "", err
	}
	issuer, err := s.identity.ResolveByDID(ctx, issuerDID, cred)
	if err != nil {
		return "", identityError(err)
	}
	if err := requireRole(issuer, models.RoleEmployer); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeForbidden, "issuer must be an employer")
	}

	claim := &models.Claim{
		Owner:      caller.DID,
		Issuer:     issuer.DID,
		Title:      title,
		Content:    content.Clone(),
		CareerType: careerType,
		Status:     models.StatusPending,
	}
	id, err = s.store.Create(ctx, claim)
	if err != nil {
		return "", storeError(err, "failed to create claim")
	}
	claim.ID = id
	span.SetAttributes(tracer.String(tracer.AttrClaimID, id.String()))

	s.countCreated()
	s.logAudit(ctx, audit.ActionClaimCreated, caller.DID, claim)
	return id, nil
}

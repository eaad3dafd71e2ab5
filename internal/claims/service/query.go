package service

import (
	"context"

	"attesto/internal/claims/models"
	dErrors "attesto/pkg/domain-errors"
)

// ListMine lists the caller's claims. Employers see the PENDING claims awaiting
// their decision; employees see every claim they filed. Any other role is refused.
func (s *Service) ListMine(ctx context.Context, cred string) (*models.ClaimList, error) {
	caller, err := s.authorize(ctx, cred, models.RoleEmployer, models.RoleEmployee)
	if err != nil {
		return nil, err
	}

	list := &models.ClaimList{Role: caller.Role}
	if caller.Role == models.RoleEmployer {
		pending := models.StatusPending
		claims, err := s.store.ListByIssuer(ctx, caller.DID, &pending)
		if err != nil {
			return nil, storeError(err, "failed to list claims")
		}
		list.Issuer = make([]models.IssuerSummary, 0, len(claims))
		for _, c := range claims {
			list.Issuer = append(list.Issuer, models.ToIssuerSummary(c))
		}
		return list, nil
	}

	claims, err := s.store.ListByOwner(ctx, caller.DID)
	if err != nil {
		return nil, storeError(err, "failed to list claims")
	}
	list.Holder = make([]models.HolderSummary, 0, len(claims))
	for _, c := range claims {
		list.Holder = append(list.Holder, models.ToHolderSummary(c))
	}
	return list, nil
}

// GetOne returns one claim projected for the caller. A missing claim is NotFound;
// an existing claim the caller is not party to is Forbidden.
func (s *Service) GetOne(ctx context.Context, cred string, id models.ClaimID) (*models.ClaimDetail, error) {
	caller, err := s.authorize(ctx, cred, models.RoleEmployer, models.RoleEmployee)
	if err != nil {
		return nil, err
	}
	claim, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "failed to load claim")
	}

	if caller.Role == models.RoleEmployer {
		if claim.Issuer != caller.DID {
			return nil, dErrors.New(dErrors.CodeForbidden, "claim is not addressed to caller")
		}
		return &models.ClaimDetail{Issuer: models.ToIssuerDetail(claim)}, nil
	}
	if claim.Owner != caller.DID {
		return nil, dErrors.New(dErrors.CodeForbidden, "claim is not owned by caller")
	}
	return &models.ClaimDetail{Holder: models.ToHolderDetail(claim)}, nil
}

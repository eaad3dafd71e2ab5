package handler

import "attesto/internal/claims/models"

type CreateClaimResponse struct {
	ID models.ClaimID `json:"id"`
}

// IssuerListResponse is what an employer gets from GET /claims.
type IssuerListResponse struct {
	Claims []models.IssuerSummary `json:"claims"`
}

// HolderListResponse is what an employee gets from GET /claims.
type HolderListResponse struct {
	Claims []models.HolderSummary `json:"claims"`
}

func toListResponse(list *models.ClaimList) any {
	if list.Role == models.RoleEmployer {
		return IssuerListResponse{Claims: list.Issuer}
	}
	return HolderListResponse{Claims: list.Holder}
}

func toDetailResponse(detail *models.ClaimDetail) any {
	if detail.Issuer != nil {
		return detail.Issuer
	}
	return detail.Holder
}

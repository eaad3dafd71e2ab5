package service

import (
	"errors"

	"go.uber.org/mock/gomock"

	"attesto/internal/claims/models"
	dErrors "attesto/pkg/domain-errors"
	"attesto/pkg/platform/sentinel"
)

func (s *ServiceSuite) TestListMine() {
	s.Run("employer sees pending claims addressed to them", func() {
		claim := newPendingClaim(models.CareerTypeVC)
		s.expectSelf(issuerCred, employer)
		pending := models.StatusPending
		s.mockStore.EXPECT().ListByIssuer(gomock.Any(), issuerDID, &pending).Return([]*models.Claim{claim}, nil)

		list, err := s.service.ListMine(s.ctx, issuerCred)
		s.Require().NoError(err)
		s.Equal(models.RoleEmployer, list.Role)
		s.Equal([]models.IssuerSummary{{ID: claim.ID, Holder: holderDID, Title: claim.Title}}, list.Issuer)
		s.Nil(list.Holder)
	})

	s.Run("employee sees every claim they own", func() {
		claim := newPendingClaim(models.CareerTypeVC)
		claim.Status = models.StatusRejected
		s.expectSelf(holderCred, holder)
		s.mockStore.EXPECT().ListByOwner(gomock.Any(), holderDID).Return([]*models.Claim{claim}, nil)

		list, err := s.service.ListMine(s.ctx, holderCred)
		s.Require().NoError(err)
		s.Equal([]models.HolderSummary{{ID: claim.ID, Issuer: issuerDID, Title: claim.Title, Status: models.StatusRejected}}, list.Holder)
	})

	s.Run("employee with no claims gets an empty list", func() {
		s.expectSelf(holderCred, holder)
		s.mockStore.EXPECT().ListByOwner(gomock.Any(), holderDID).Return(nil, nil)

		list, err := s.service.ListMine(s.ctx, holderCred)
		s.Require().NoError(err)
		s.NotNil(list.Holder)
		s.Empty(list.Holder)
	})

	s.Run("other roles are forbidden", func() {
		s.expectSelf("other-token", outsider)

		_, err := s.service.ListMine(s.ctx, "other-token")
		s.requireCode(err, dErrors.CodeForbidden)
	})

	s.Run("store failure is internal", func() {
		s.expectSelf(holderCred, holder)
		s.mockStore.EXPECT().ListByOwner(gomock.Any(), holderDID).Return(nil, errors.New("timeout"))

		_, err := s.service.ListMine(s.ctx, holderCred)
		s.requireCode(err, dErrors.CodeInternal)
	})
}

func (s *ServiceSuite) TestGetOne() {
	s.Run("issuer sees content without career", func() {
		claim := newPendingClaim(models.CareerTypeVC)
		claim.Content["_id"] = "internal"
		s.expectSelf(issuerCred, employer)
		s.mockStore.EXPECT().FindByID(gomock.Any(), claim.ID).Return(claim, nil)

		detail, err := s.service.GetOne(s.ctx, issuerCred, claim.ID)
		s.Require().NoError(err)
		s.Require().NotNil(detail.Issuer)
		s.Nil(detail.Holder)
		s.Equal(holderDID, detail.Issuer.Holder)
		s.Equal(models.Content{"employer": "Acme", "years": float64(3)}, detail.Issuer.Content)
	})

	s.Run("holder sees status and career", func() {
		claim := newPendingClaim(models.CareerTypeVC)
		claim.Status = models.StatusAccepted
		claim.Career = &models.Career{Credential: "c2VhbGVk"}
		s.expectSelf(holderCred, holder)
		s.mockStore.EXPECT().FindByID(gomock.Any(), claim.ID).Return(claim, nil)

		detail, err := s.service.GetOne(s.ctx, holderCred, claim.ID)
		s.Require().NoError(err)
		s.Require().NotNil(detail.Holder)
		s.Equal(models.StatusAccepted, detail.Holder.Status)
		s.Equal(models.CareerTypeVC, detail.Holder.CareerType)
		s.Equal("c2VhbGVk", detail.Holder.Career.Credential)
	})

	s.Run("employer that is not the issuer is forbidden", func() {
		claim := newPendingClaim(models.CareerTypeVC)
		s.expectSelf("other-employer", models.Identity{DID: otherDID, Role: models.RoleEmployer})
		s.mockStore.EXPECT().FindByID(gomock.Any(), claim.ID).Return(claim, nil)

		_, err := s.service.GetOne(s.ctx, "other-employer", claim.ID)
		s.requireCode(err, dErrors.CodeForbidden)
	})

	s.Run("employee that is not the owner is forbidden", func() {
		claim := newPendingClaim(models.CareerTypeVC)
		s.expectSelf("other-employee", models.Identity{DID: otherDID, Role: models.RoleEmployee})
		s.mockStore.EXPECT().FindByID(gomock.Any(), claim.ID).Return(claim, nil)

		_, err := s.service.GetOne(s.ctx, "other-employee", claim.ID)
		s.requireCode(err, dErrors.CodeForbidden)
	})

	s.Run("other roles are forbidden before loading", func() {
		s.expectSelf("other-token", outsider)

		_, err := s.service.GetOne(s.ctx, "other-token", models.NewClaimID())
		s.requireCode(err, dErrors.CodeForbidden)
	})

	s.Run("missing claim is not found", func() {
		id := models.NewClaimID()
		s.expectSelf(holderCred, holder)
		s.mockStore.EXPECT().FindByID(gomock.Any(), id).Return(nil, sentinel.ErrNotFound)

		_, err := s.service.GetOne(s.ctx, holderCred, id)
		s.requireCode(err, dErrors.CodeNotFound)
	})
}

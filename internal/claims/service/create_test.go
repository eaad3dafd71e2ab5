package service

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/mock/gomock"

	"attesto/internal/audit"
	"attesto/internal/claims/models"
	dErrors "attesto/pkg/domain-errors"
)

func (s *ServiceSuite) TestCreate() {
	content := models.Content{"employer": "Acme"}

	s.Run("persists a pending claim owned by the caller", func() {
		s.expectSelf(holderCred, holder)
		s.mockIdentity.EXPECT().ResolveByDID(gomock.Any(), issuerDID, holderCred).Return(employer, nil)
		s.mockStore.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, c *models.Claim) (models.ClaimID, error) {
				s.Equal(holderDID, c.Owner)
				s.Equal(issuerDID, c.Issuer)
				s.Equal("Engineer", c.Title)
				s.Equal(content, c.Content)
				s.Equal(models.CareerTypeVC, c.CareerType)
				s.Equal(models.StatusPending, c.Status)
				return "clm_new", nil
			})
		s.expectAudit(string(audit.ActionClaimCreated))

		id, err := s.service.Create(s.ctx, holderCred, issuerDID, "Engineer", content, models.CareerTypeVC)
		s.Require().NoError(err)
		s.Equal(models.ClaimID("clm_new"), id)
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.ClaimsCreated))
	})

	s.Run("caller that is not an employee is forbidden and nothing persists", func() {
		s.expectSelf(issuerCred, employer)

		_, err := s.service.Create(s.ctx, issuerCred, issuerDID, "Engineer", content, models.CareerTypeVC)
		s.requireCode(err, dErrors.CodeForbidden)
	})

	s.Run("issuer that is not an employer is forbidden and nothing persists", func() {
		s.expectSelf(holderCred, holder)
		s.mockIdentity.EXPECT().ResolveByDID(gomock.Any(), otherDID, holderCred).Return(outsider, nil)

		_, err := s.service.Create(s.ctx, holderCred, otherDID, "Engineer", content, models.CareerTypeVC)
		s.requireCode(err, dErrors.CodeForbidden)
	})

	s.Run("unknown issuer surfaces identity not found", func() {
		s.expectSelf(holderCred, holder)
		s.mockIdentity.EXPECT().ResolveByDID(gomock.Any(), otherDID, holderCred).
			Return(models.Identity{}, dErrors.New(dErrors.CodeIdentityNotFound, "identity not found"))

		_, err := s.service.Create(s.ctx, holderCred, otherDID, "Engineer", content, models.CareerTypeVC)
		s.requireCode(err, dErrors.CodeIdentityNotFound)
	})

	s.Run("directory outage surfaces unavailable", func() {
		s.mockIdentity.EXPECT().ResolveSelf(gomock.Any(), holderCred).Return(models.Identity{}, errors.New("dial tcp: refused"))

		_, err := s.service.Create(s.ctx, holderCred, issuerDID, "Engineer", content, models.CareerTypeVC)
		s.requireCode(err, dErrors.CodeUnavailable)
	})

	s.Run("store failure is internal", func() {
		s.expectSelf(holderCred, holder)
		s.mockIdentity.EXPECT().ResolveByDID(gomock.Any(), issuerDID, holderCred).Return(employer, nil)
		s.mockStore.EXPECT().Create(gomock.Any(), gomock.Any()).Return(models.ClaimID(""), errors.New("connection reset"))

		_, err := s.service.Create(s.ctx, holderCred, issuerDID, "Engineer", content, models.CareerTypePlain)
		s.requireCode(err, dErrors.CodeInternal)
	})

	s.Run("audit failure does not fail the create", func() {
		s.expectSelf(holderCred, holder)
		s.mockIdentity.EXPECT().ResolveByDID(gomock.Any(), issuerDID, holderCred).Return(employer, nil)
		s.mockStore.EXPECT().Create(gomock.Any(), gomock.Any()).Return(models.ClaimID("clm_new"), nil)
		s.mockAuditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("audit down"))

		_, err := s.service.Create(s.ctx, holderCred, issuerDID, "Engineer", content, models.CareerTypeVC)
		s.NoError(err)
	})

	s.Run("missing credential is unauthorized", func() {
		_, err := s.service.Create(s.ctx, "", issuerDID, "Engineer", content, models.CareerTypeVC)
		s.requireCode(err, dErrors.CodeUnauthorized)
	})

	s.Run("unknown career type is invalid input", func() {
		_, err := s.service.Create(s.ctx, holderCred, issuerDID, "Engineer", content, models.CareerType("PDF"))
		s.requireCode(err, dErrors.CodeInvalidInput)
	})
}

func (s *ServiceSuite) TestNewRequiresCollaborators() {
	_, err := New(nil, s.mockIdentity, s.mockSigner, s.mockEncryptor)
	s.Error(err)
}

package service

import (
	"context"
	"encoding/base64"
	"errors"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/mock/gomock"

	"attesto/internal/audit"
	"attesto/internal/claims/models"
	dErrors "attesto/pkg/domain-errors"
	"attesto/pkg/platform/sentinel"
)

var (
	anyCareerPending = models.Precondition{Issuer: issuerDID, Status: models.StatusPending}
	vcPending        = models.Precondition{Issuer: issuerDID, Status: models.StatusPending, CareerType: models.CareerTypeVC}
	plainPending     = models.Precondition{Issuer: issuerDID, Status: models.StatusPending, CareerType: models.CareerTypePlain}
	issuerKeystore   = models.Keystore{DID: issuerDID, PrivateKey: "00ff"}
)

func decided(c *models.Claim, patch models.Patch) *models.Claim {
	out := c.Clone()
	out.Status = patch.Status
	out.Career = patch.Career
	return out
}

func (s *ServiceSuite) TestDecideAccept() {
	s.Run("signs the submitted content and seals it to the holder", func() {
		claim := newPendingClaim(models.CareerTypeVC)
		claim.Content["_id"] = "storage-only"
		sealed := []byte("sealed-token")

		s.expectSelf(issuerCred, employer)
		gomock.InOrder(
			s.mockStore.EXPECT().FindMatching(gomock.Any(), claim.ID, vcPending).Return(claim, nil),
			s.mockSigner.EXPECT().
				Sign(gomock.Any(), holderDID, models.Content{"employer": "Acme", "years": float64(3)}, issuerDID, "00ff").
				Return([]byte("signed-token"), nil),
			s.mockEncryptor.EXPECT().Encrypt(gomock.Any(), s.holderKey, []byte("signed-token")).Return(sealed, nil),
			s.mockStore.EXPECT().ConditionalUpdate(gomock.Any(), claim.ID, vcPending, gomock.Any()).DoAndReturn(
				func(_ context.Context, _ models.ClaimID, _ models.Precondition, patch models.Patch) (*models.Claim, error) {
					s.Equal(models.StatusAccepted, patch.Status)
					s.Require().NotNil(patch.Career)
					s.Equal(base64.StdEncoding.EncodeToString(sealed), patch.Career.Credential)
					return decided(claim, patch), nil
				}),
		)
		s.expectAudit(string(audit.ActionClaimAccepted))

		err := s.service.Decide(s.ctx, issuerCred, claim.ID, models.StatusAccepted, issuerKeystore)
		s.Require().NoError(err)
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.ClaimsDecided.WithLabelValues("ACCEPTED", "VC")))
	})

	s.Run("keystore of another DID is forbidden before signing", func() {
		claim := newPendingClaim(models.CareerTypeVC)
		s.expectSelf(issuerCred, employer)
		s.mockStore.EXPECT().FindMatching(gomock.Any(), claim.ID, vcPending).Return(claim, nil)

		err := s.service.Decide(s.ctx, issuerCred, claim.ID, models.StatusAccepted, models.Keystore{DID: otherDID, PrivateKey: "00ff"})
		s.requireCode(err, dErrors.CodeForbidden)
	})

	s.Run("signing failure leaves the claim pending", func() {
		claim := newPendingClaim(models.CareerTypeVC)
		s.expectSelf(issuerCred, employer)
		s.mockStore.EXPECT().FindMatching(gomock.Any(), claim.ID, vcPending).Return(claim, nil)
		s.mockSigner.EXPECT().Sign(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, errors.New("bad key"))

		err := s.service.Decide(s.ctx, issuerCred, claim.ID, models.StatusAccepted, issuerKeystore)
		s.requireCode(err, dErrors.CodeSigningFailed)
	})

	s.Run("holder key extraction failure is an encryption failure", func() {
		claim := newPendingClaim(models.CareerTypeVC)
		claim.Owner = otherDID
		s.expectSelf(issuerCred, employer)
		s.mockStore.EXPECT().FindMatching(gomock.Any(), claim.ID, vcPending).Return(claim, nil)
		s.mockSigner.EXPECT().Sign(gomock.Any(), otherDID, gomock.Any(), issuerDID, "00ff").Return([]byte("signed"), nil)

		err := s.service.Decide(s.ctx, issuerCred, claim.ID, models.StatusAccepted, issuerKeystore)
		s.requireCode(err, dErrors.CodeEncryptionFailed)
	})

	s.Run("encryption failure leaves the claim pending", func() {
		claim := newPendingClaim(models.CareerTypeVC)
		s.expectSelf(issuerCred, employer)
		s.mockStore.EXPECT().FindMatching(gomock.Any(), claim.ID, vcPending).Return(claim, nil)
		s.mockSigner.EXPECT().Sign(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return([]byte("signed"), nil)
		s.mockEncryptor.EXPECT().Encrypt(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("entropy"))

		err := s.service.Decide(s.ctx, issuerCred, claim.ID, models.StatusAccepted, issuerKeystore)
		s.requireCode(err, dErrors.CodeEncryptionFailed)
	})

	s.Run("plain claims record the submitted content without signing when enabled", func() {
		svc := s.newService(WithPlainDecisions(true))
		claim := newPendingClaim(models.CareerTypePlain)
		s.expectSelf(issuerCred, employer)
		s.mockStore.EXPECT().FindMatching(gomock.Any(), claim.ID, anyCareerPending).Return(claim, nil)
		s.mockStore.EXPECT().ConditionalUpdate(gomock.Any(), claim.ID, plainPending, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ models.ClaimID, _ models.Precondition, patch models.Patch) (*models.Claim, error) {
				s.Require().NotNil(patch.Career)
				s.Empty(patch.Career.Credential)
				s.Equal(claim.Content.Submitted(), patch.Career.Record)
				return decided(claim, patch), nil
			})
		s.expectAudit(string(audit.ActionClaimAccepted))

		err := svc.Decide(s.ctx, issuerCred, claim.ID, models.StatusAccepted, models.Keystore{})
		s.NoError(err)
	})
}

func (s *ServiceSuite) TestDecideReject() {
	claim := newPendingClaim(models.CareerTypeVC)
	s.expectSelf(issuerCred, employer)
	s.mockStore.EXPECT().FindMatching(gomock.Any(), claim.ID, vcPending).Return(claim, nil)
	s.mockStore.EXPECT().ConditionalUpdate(gomock.Any(), claim.ID, vcPending, models.Patch{Status: models.StatusRejected}).
		DoAndReturn(func(_ context.Context, _ models.ClaimID, _ models.Precondition, patch models.Patch) (*models.Claim, error) {
			return decided(claim, patch), nil
		})
	s.expectAudit(string(audit.ActionClaimRejected))

	err := s.service.Decide(s.ctx, issuerCred, claim.ID, models.StatusRejected, models.Keystore{})
	s.Require().NoError(err)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.ClaimsDecided.WithLabelValues("REJECTED", "VC")))
}

func (s *ServiceSuite) TestDecideFailures() {
	s.Run("non-terminal target is a bad request", func() {
		err := s.service.Decide(s.ctx, issuerCred, models.NewClaimID(), models.StatusPending, issuerKeystore)
		s.requireCode(err, dErrors.CodeBadRequest)
	})

	s.Run("employees cannot decide", func() {
		s.expectSelf(holderCred, holder)

		err := s.service.Decide(s.ctx, holderCred, models.NewClaimID(), models.StatusRejected, models.Keystore{})
		s.requireCode(err, dErrors.CodeForbidden)
	})

	s.Run("claim not matching the precondition is not found", func() {
		id := models.NewClaimID()
		s.expectSelf(issuerCred, employer)
		s.mockStore.EXPECT().FindMatching(gomock.Any(), id, vcPending).Return(nil, sentinel.ErrNotFound)

		err := s.service.Decide(s.ctx, issuerCred, id, models.StatusAccepted, issuerKeystore)
		s.requireCode(err, dErrors.CodeNotFound)
	})

	s.Run("losing the conditional update is a decision conflict", func() {
		claim := newPendingClaim(models.CareerTypeVC)
		s.expectSelf(issuerCred, employer)
		s.mockStore.EXPECT().FindMatching(gomock.Any(), claim.ID, vcPending).Return(claim, nil)
		s.mockStore.EXPECT().ConditionalUpdate(gomock.Any(), claim.ID, vcPending, gomock.Any()).Return(nil, sentinel.ErrNotFound)

		err := s.service.Decide(s.ctx, issuerCred, claim.ID, models.StatusRejected, models.Keystore{})
		s.requireCode(err, dErrors.CodeDecisionConflict)
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.DecisionConflicts))
	})

	s.Run("store failure on update is internal", func() {
		claim := newPendingClaim(models.CareerTypeVC)
		s.expectSelf(issuerCred, employer)
		s.mockStore.EXPECT().FindMatching(gomock.Any(), claim.ID, vcPending).Return(claim, nil)
		s.mockStore.EXPECT().ConditionalUpdate(gomock.Any(), claim.ID, vcPending, gomock.Any()).Return(nil, errors.New("deadlock"))

		err := s.service.Decide(s.ctx, issuerCred, claim.ID, models.StatusRejected, models.Keystore{})
		s.requireCode(err, dErrors.CodeInternal)
	})
}

func (s *ServiceSuite) TestDecidePlainClaimByDefault() {
	s.Run("lookup pins the VC career type so plain claims are not found", func() {
		id := models.NewClaimID()
		s.expectSelf(issuerCred, employer)
		s.mockStore.EXPECT().FindMatching(gomock.Any(), id, vcPending).Return(nil, sentinel.ErrNotFound)

		err := s.service.Decide(s.ctx, issuerCred, id, models.StatusAccepted, models.Keystore{})
		s.requireCode(err, dErrors.CodeNotFound)
	})

	s.Run("enabled service drops the career type from the lookup", func() {
		svc := s.newService(WithPlainDecisions(true))
		id := models.NewClaimID()
		s.expectSelf(issuerCred, employer)
		s.mockStore.EXPECT().FindMatching(gomock.Any(), id, anyCareerPending).Return(nil, sentinel.ErrNotFound)

		err := svc.Decide(s.ctx, issuerCred, id, models.StatusRejected, models.Keystore{})
		s.requireCode(err, dErrors.CodeNotFound)
	})
}

package service

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"attesto/internal/audit"
	"attesto/internal/claims/models"
	"attesto/internal/platform/tracer"
	dErrors "attesto/pkg/domain-errors"
	"attesto/pkg/platform/sentinel"
)

// Decide moves a PENDING claim addressed to the caller to ACCEPTED or REJECTED.
//
// The claim is read under the decision precondition, any credential is produced
// outside the store, and the result is written with a conditional update on the
// same precondition. Whoever's conditional update lands first wins; the loser gets
// CodeDecisionConflict and its signing work is discarded. A claim that fails the
// precondition on the first read is reported as not found, so callers cannot tell
// a decided claim from a missing one.
func (s *Service) Decide(ctx context.Context, cred string, id models.ClaimID, target models.Status, keystore models.Keystore) (err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanClaimDecide,
		tracer.String(tracer.AttrClaimID, id.String()),
		tracer.String(tracer.AttrTargetStatus, string(target)),
	)
	defer func() { span.End(err) }()

	if !target.IsTerminal() {
		return dErrors.New(dErrors.CodeBadRequest, "status must be ACCEPTED or REJECTED")
	}
	caller, err := s.authorize(ctx, cred, models.RoleEmployer)
	if err != nil {
		return err
	}

	pre := models.Precondition{Issuer: caller.DID, Status: models.StatusPending, CareerType: models.CareerTypeVC}
	if s.plainDecisions {
		pre.CareerType = ""
	}
	claim, err := s.store.FindMatching(ctx, id, pre)
	if err != nil {
		return storeError(err, "failed to load claim")
	}
	// The final write must see the same career type that decided how the career
	// was built.
	pre.CareerType = claim.CareerType
	span.AddEvent(tracer.EventPreconditionMatched, tracer.String(tracer.AttrCareerType, string(claim.CareerType)))

	patch := models.Patch{Status: target}
	if target == models.StatusAccepted {
		patch.Career, err = s.buildCareer(ctx, caller, claim, keystore)
		if err != nil {
			return err
		}
	}

	decided, err := s.store.ConditionalUpdate(ctx, id, pre, patch)
	if errors.Is(err, sentinel.ErrNotFound) {
		s.countConflict()
		span.AddEvent(tracer.EventDecisionConflict)
		s.logger.WarnContext(ctx, "claim decision lost a concurrent race",
			"claim_id", id,
			"target_status", target,
		)
		return dErrors.Wrap(err, dErrors.CodeDecisionConflict, "claim was decided concurrently")
	}
	if err != nil {
		return storeError(err, "failed to record decision")
	}

	s.countDecided(decided)
	action := audit.ActionClaimRejected
	if decided.Status == models.StatusAccepted {
		action = audit.ActionClaimAccepted
	}
	s.logAudit(ctx, action, caller.DID, decided)
	return nil
}

// buildCareer produces what an accepted claim carries. PLAIN claims keep the
// submitted content. VC claims require the caller's own keystore, then the
// submitted content is signed by the issuer and sealed to the holder.
func (s *Service) buildCareer(ctx context.Context, caller models.Identity, claim *models.Claim, keystore models.Keystore) (*models.Career, error) {
	if claim.CareerType == models.CareerTypePlain {
		return &models.Career{Record: claim.Content.Submitted()}, nil
	}
	if keystore.DID != caller.DID {
		return nil, dErrors.New(dErrors.CodeForbidden, "keystore does not belong to the issuer")
	}

	start := time.Now()
	token, err := s.signer.Sign(ctx, claim.Owner, claim.Content.Submitted(), caller.DID, keystore.PrivateKey)
	s.observeCrypto("sign", start)
	if err != nil {
		return nil, collaboratorError(err, dErrors.CodeSigningFailed, "failed to sign credential")
	}

	publicKey, err := s.extractKey(claim.Owner)
	if err != nil {
		return nil, collaboratorError(err, dErrors.CodeEncryptionFailed, "failed to derive holder key")
	}
	start = time.Now()
	sealed, err := s.encryptor.Encrypt(ctx, publicKey, token)
	s.observeCrypto("encrypt", start)
	if err != nil {
		return nil, collaboratorError(err, dErrors.CodeEncryptionFailed, "failed to encrypt credential")
	}
	return &models.Career{Credential: base64.StdEncoding.EncodeToString(sealed)}, nil
}

func (s *Service) observeCrypto(operation string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveCrypto(operation, time.Since(start))
	}
}

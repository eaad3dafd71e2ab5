// Package service implements the claim lifecycle: holders file claims against an
// issuer, issuers accept or reject them exactly once, and acceptance of a VC claim
// produces a credential signed by the issuer and sealed to the holder.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"attesto/internal/claims/metrics"
	"attesto/internal/claims/models"
	"attesto/internal/credential/sealer"
	"attesto/internal/platform/tracer"
	dErrors "attesto/pkg/domain-errors"
)

// Service holds no per-request state. Every operation re-resolves the caller's role.
type Service struct {
	store          Store
	identity       IdentityGateway
	signer         Signer
	encryptor      Encryptor
	extractKey     sealer.KeyExtractor
	auditor        AuditPublisher
	metrics        *metrics.Metrics
	tracer         tracer.Tracer
	logger         *slog.Logger
	plainDecisions bool
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithAuditor records lifecycle events. Audit failures are logged and never fail
// the operation.
func WithAuditor(a AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = a
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithPlainDecisions controls whether PLAIN claims can be decided. When enabled they
// follow the same state machine as VC claims but acceptance stores the submitted
// content as the career record instead of a credential. Disabled by default, so a
// PLAIN claim fails the decision precondition and is reported as not found.
func WithPlainDecisions(enabled bool) Option {
	return func(s *Service) {
		s.plainDecisions = enabled
	}
}

// WithKeyExtractor replaces the rule that derives a holder's public key from its DID.
func WithKeyExtractor(fn sealer.KeyExtractor) Option {
	return func(s *Service) {
		if fn != nil {
			s.extractKey = fn
		}
	}
}

func New(store Store, identity IdentityGateway, signer Signer, encryptor Encryptor, opts ...Option) (*Service, error) {
	if store == nil || identity == nil || signer == nil || encryptor == nil {
		return nil, errors.New("claims service requires a store, identity gateway, signer and encryptor")
	}
	svc := &Service{
		store:          store,
		identity:       identity,
		signer:         signer,
		encryptor:      encryptor,
		extractKey:     sealer.FourthSegmentKey,
		tracer:         tracer.NewNoop(),
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// authorize resolves the caller and requires one of roles. It is the only place a
// caller's role is checked.
func (s *Service) authorize(ctx context.Context, cred string, roles ...models.Role) (models.Identity, error) {
	if cred == "" {
		return models.Identity{}, dErrors.New(dErrors.CodeUnauthorized, "missing caller credential")
	}
	caller, err := s.identity.ResolveSelf(ctx, cred)
	if err != nil {
		return models.Identity{}, identityError(err)
	}
	if err := requireRole(caller, roles...); err != nil {
		return models.Identity{}, err
	}
	return caller, nil
}

// requireRole is shared by authorize and the issuer check in Create.
func requireRole(identity models.Identity, roles ...models.Role) error {
	if slices.Contains(roles, identity.Role) {
		return nil
	}
	return dErrors.New(dErrors.CodeForbidden, fmt.Sprintf("role %s is not permitted", identity.Role))
}

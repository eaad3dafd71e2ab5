package service

import (
	"context"

	"attesto/internal/audit"
	"attesto/internal/claims/models"
)

// Store persists claims.
// Error Contract: FindByID, FindMatching and ConditionalUpdate return
// sentinel.ErrNotFound when no claim satisfies the lookup.
type Store interface {
	Create(ctx context.Context, claim *models.Claim) (models.ClaimID, error)
	ListByOwner(ctx context.Context, did string) ([]*models.Claim, error)
	ListByIssuer(ctx context.Context, did string, status *models.Status) ([]*models.Claim, error)
	FindByID(ctx context.Context, id models.ClaimID) (*models.Claim, error)
	FindMatching(ctx context.Context, id models.ClaimID, pre models.Precondition) (*models.Claim, error)
	ConditionalUpdate(ctx context.Context, id models.ClaimID, pre models.Precondition, patch models.Patch) (*models.Claim, error)
}

// IdentityGateway resolves roles from the user directory. Errors carry domain codes.
type IdentityGateway interface {
	ResolveSelf(ctx context.Context, cred string) (models.Identity, error)
	ResolveByDID(ctx context.Context, did, cred string) (models.Identity, error)
}

// Signer produces a signed credential token for the holder.
type Signer interface {
	Sign(ctx context.Context, holderDID string, content models.Content, issuerDID, privateKey string) ([]byte, error)
}

// Encryptor seals a token to a recipient public key.
type Encryptor interface {
	Encrypt(ctx context.Context, recipientPublicKey []byte, plaintext []byte) ([]byte, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

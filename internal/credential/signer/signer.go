// Package signer issues career credentials as JWT-encoded W3C verifiable credentials
// signed with the issuer's Ed25519 key.
package signer

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"attesto/internal/claims/models"
	"attesto/internal/platform/tracer"
	dErrors "attesto/pkg/domain-errors"
	"attesto/pkg/requestcontext"
)

var (
	credentialContext = []string{"https://www.w3.org/2018/credentials/v1"}
	credentialType    = []string{"VerifiableCredential", "CareerCredential"}
)

// VerifiableCredential is the "vc" claim of a JWT-VC.
type VerifiableCredential struct {
	Context           []string       `json:"@context"`
	Type              []string       `json:"type"`
	CredentialSubject map[string]any `json:"credentialSubject"`
}

// CredentialClaims is the full JWT payload. ContentDigest is the hex SHA-256 of the
// canonical (JCS) content, letting verifiers compare against a stored claim without
// re-serializing the subject.
type CredentialClaims struct {
	VC            VerifiableCredential `json:"vc"`
	ContentDigest string               `json:"content_digest"`
	jwt.RegisteredClaims
}

// Signer produces signed credential tokens. It holds no keys: the issuer presents
// its private key with every acceptance.
type Signer struct {
	tracer tracer.Tracer
}

type Option func(*Signer)

func WithTracer(t tracer.Tracer) Option {
	return func(s *Signer) {
		s.tracer = t
	}
}

func New(opts ...Option) *Signer {
	s := &Signer{tracer: tracer.NewNoop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sign encodes holder, issuer and the exact submitted content into a compact JWT
// signed with privateKeyHex. The subject "id" always names the holder.
func (s *Signer) Sign(ctx context.Context, holderDID string, content models.Content, issuerDID, privateKeyHex string) (token []byte, err error) {
	_, span := s.tracer.Start(ctx, tracer.SpanCredentialSign)
	defer func() { span.End(err) }()

	if holderDID == "" || issuerDID == "" {
		return nil, dErrors.New(dErrors.CodeSigningFailed, "holder and issuer are required")
	}
	key, err := ParsePrivateKey(privateKeyHex)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeSigningFailed, "invalid issuer private key")
	}

	submitted := content.Submitted()
	canonical, err := submitted.Canonical()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeSigningFailed, "failed to canonicalize content")
	}
	digest := sha256.Sum256(canonical)

	subject := make(map[string]any, len(submitted)+1)
	for k, v := range submitted {
		subject[k] = v
	}
	subject["id"] = holderDID

	now := requestcontext.Now(ctx)
	claims := CredentialClaims{
		VC: VerifiableCredential{
			Context:           credentialContext,
			Type:              credentialType,
			CredentialSubject: subject,
		},
		ContentDigest: hex.EncodeToString(digest[:]),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuerDID,
			Subject:   holderDID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        "urn:uuid:" + uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(key)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeSigningFailed, "failed to sign credential")
	}
	return []byte(signed), nil
}

// ParsePrivateKey decodes a hex Ed25519 key, with or without a 0x prefix. A 32-byte
// value is a seed; a 64-byte value is a full private key whose public half must
// match the seed.
func ParsePrivateKey(value string) (ed25519.PrivateKey, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(value), "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		derived := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
		if !derived.Equal(ed25519.PrivateKey(raw)) {
			return nil, errors.New("private key public half does not match its seed")
		}
		return derived, nil
	default:
		return nil, fmt.Errorf("private key must be %d or %d bytes, got %d", ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
	}
}

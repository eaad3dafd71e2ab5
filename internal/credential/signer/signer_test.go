package signer

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attesto/internal/claims/models"
	dErrors "attesto/pkg/domain-errors"
	"attesto/pkg/requestcontext"
)

const (
	holderDID = "did:ethr:0xholder"
	issuerDID = "did:ethr:0xissuer"
)

var seed = strings.Repeat("0a", ed25519.SeedSize)

func parse(t *testing.T, token []byte, pub ed25519.PublicKey) *CredentialClaims {
	t.Helper()
	claims := &CredentialClaims{}
	parsed, err := jwt.ParseWithClaims(string(token), claims, func(*jwt.Token) (any, error) {
		return pub, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}))
	require.NoError(t, err)
	require.True(t, parsed.Valid)
	return claims
}

func TestSignEncodesHolderIssuerAndSubmittedContent(t *testing.T) {
	key, err := ParsePrivateKey(seed)
	require.NoError(t, err)
	now := time.Now().Truncate(time.Second)
	ctx := requestcontext.WithTime(context.Background(), now)
	content := models.Content{"employer": "Acme", "years": float64(3), "_id": "internal"}

	token, err := New().Sign(ctx, holderDID, content, issuerDID, seed)
	require.NoError(t, err)

	claims := parse(t, token, key.Public().(ed25519.PublicKey))
	assert.Equal(t, issuerDID, claims.Issuer)
	assert.Equal(t, holderDID, claims.Subject)
	assert.True(t, claims.IssuedAt.Time.Equal(now))
	assert.NotEmpty(t, claims.ID)
	assert.Equal(t, map[string]any{"id": holderDID, "employer": "Acme", "years": float64(3)}, claims.VC.CredentialSubject)
	assert.Contains(t, claims.VC.Type, "VerifiableCredential")

	canonical, err := content.Submitted().Canonical()
	require.NoError(t, err)
	digest := sha256.Sum256(canonical)
	assert.Equal(t, hex.EncodeToString(digest[:]), claims.ContentDigest)
}

func TestSignAcceptsPrefixedFullKey(t *testing.T) {
	key, err := ParsePrivateKey(seed)
	require.NoError(t, err)

	token, err := New().Sign(context.Background(), holderDID, models.Content{"a": "b"}, issuerDID, "0x"+hex.EncodeToString(key))
	require.NoError(t, err)
	parse(t, token, key.Public().(ed25519.PublicKey))
}

func TestSignFailures(t *testing.T) {
	tests := []struct {
		name   string
		holder string
		key    string
	}{
		{name: "not hex", holder: holderDID, key: "zz"},
		{name: "wrong length", holder: holderDID, key: "abcd"},
		{name: "mismatched full key", holder: holderDID, key: seed + strings.Repeat("ff", ed25519.PublicKeySize)},
		{name: "missing holder", holder: "", key: seed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Sign(context.Background(), tt.holder, models.Content{"a": "b"}, issuerDID, tt.key)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeSigningFailed))
		})
	}
}

// Package sealer encrypts signed credentials to the holder's public key with a NaCl
// sealed box (X25519 and XSalsa20-Poly1305). Only the holder can open the result.
package sealer

import (
	"context"
	"crypto/rand"
	"io"

	"golang.org/x/crypto/nacl/box"

	"attesto/internal/platform/tracer"
	dErrors "attesto/pkg/domain-errors"
)

// KeySize is the length of a Curve25519 public key.
const KeySize = 32

// Sealer performs anonymous public-key encryption.
type Sealer struct {
	rand   io.Reader
	tracer tracer.Tracer
}

type Option func(*Sealer)

// WithRandom replaces crypto/rand as the ephemeral key source (for testing).
func WithRandom(r io.Reader) Option {
	return func(s *Sealer) {
		s.rand = r
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Sealer) {
		s.tracer = t
	}
}

func New(opts ...Option) *Sealer {
	s := &Sealer{rand: rand.Reader, tracer: tracer.NewNoop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Encrypt seals plaintext to recipientPublicKey. Failures are never retried.
func (s *Sealer) Encrypt(ctx context.Context, recipientPublicKey []byte, plaintext []byte) (sealed []byte, err error) {
	_, span := s.tracer.Start(ctx, tracer.SpanCredentialEncrypt,
		tracer.Int64("plaintext.bytes", int64(len(plaintext))),
	)
	defer func() { span.End(err) }()

	if len(recipientPublicKey) != KeySize {
		return nil, dErrors.New(dErrors.CodeEncryptionFailed, "recipient public key must be 32 bytes")
	}
	if len(plaintext) == 0 {
		return nil, dErrors.New(dErrors.CodeEncryptionFailed, "nothing to encrypt")
	}
	var recipient [KeySize]byte
	copy(recipient[:], recipientPublicKey)

	out, err := box.SealAnonymous(nil, plaintext, &recipient, s.rand)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeEncryptionFailed, "failed to seal credential")
	}
	return out, nil
}

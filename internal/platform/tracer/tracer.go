// Package tracer is a small tracing abstraction so claim, identity and credential code
// can emit spans without importing OpenTelemetry directly.
//
// Implementations:
//   - NoopTracer: for tests
//   - OTelTracer: OpenTelemetry adapter for production
package tracer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span. A non-nil err marks the span as failed.
	// End must be called exactly once, typically via defer.
	End(err error)

	SetAttributes(attrs ...Attribute)

	// AddEvent records a timestamped event within the span.
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	// Start creates a new span. The returned context carries the span and should be
	// passed to child operations.
	//
	//   ctx, span := t.Start(ctx, tracer.SpanClaimDecide,
	//       tracer.String(tracer.AttrClaimID, id.String()),
	//   )
	//   defer func() { span.End(err) }()
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute is a key-value pair attached to a span.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

func Float64(key string, value float64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// HashDID shortens a DID to a stable hash so traces can be correlated without
// carrying the identifier itself.
func HashDID(did string) string {
	if did == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(did))
	return hex.EncodeToString(sum[:8])
}

// Span names.
const (
	SpanIdentityResolveSelf  = "identity.resolve_self"
	SpanIdentityResolveByDID = "identity.resolve_by_did"
	SpanClaimCreate          = "claims.create"
	SpanClaimDecide          = "claims.decide"
	SpanCredentialSign       = "credential.sign"
	SpanCredentialEncrypt    = "credential.encrypt"
)

// Attribute keys.
const (
	AttrDIDHash      = "did.hash"
	AttrRole         = "identity.role"
	AttrHTTPStatus   = "http.status_code"
	AttrClaimID      = "claim.id"
	AttrCareerType   = "claim.career_type"
	AttrTargetStatus = "claim.target_status"
)

// Event names.
const (
	EventPreconditionMatched = "claim.precondition_matched"
	EventDecisionConflict    = "claim.decision_conflict"
)

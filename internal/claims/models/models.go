package models

import (
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "attesto/pkg/domain-errors"
)

const claimIDPrefix = "clm_"

// ClaimID is the prefixed identifier assigned to a claim by the store.
type ClaimID string

// NewClaimID generates a new claim ID with a stable prefix.
func NewClaimID() ClaimID {
	return ClaimID(claimIDPrefix + uuid.NewString())
}

// ParseClaimID validates and parses a claim ID string.
func ParseClaimID(value string) (ClaimID, error) {
	if strings.TrimSpace(value) == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "claim id is required")
	}
	if !strings.HasPrefix(value, claimIDPrefix) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "claim id must start with clm_")
	}
	if _, err := uuid.Parse(strings.TrimPrefix(value, claimIDPrefix)); err != nil {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid claim id format")
	}
	return ClaimID(value), nil
}

func (id ClaimID) String() string {
	return string(id)
}

// CareerType decides what acceptance produces: a signed and encrypted credential
// (VC) or a plain career record (PLAIN).
type CareerType string

const (
	CareerTypeVC    CareerType = "VC"
	CareerTypePlain CareerType = "PLAIN"
)

// ParseCareerType validates a career type string.
func ParseCareerType(value string) (CareerType, error) {
	switch CareerType(strings.ToUpper(strings.TrimSpace(value))) {
	case CareerTypeVC:
		return CareerTypeVC, nil
	case CareerTypePlain:
		return CareerTypePlain, nil
	case "":
		return "", dErrors.New(dErrors.CodeInvalidInput, "career_type is required")
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "career_type must be VC or PLAIN")
	}
}

// Status is a claim's position in its lifecycle. PENDING is the only non-terminal state.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusAccepted Status = "ACCEPTED"
	StatusRejected Status = "REJECTED"
)

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// ParseDecision validates a decision target. Only terminal statuses are decisions.
func ParseDecision(value string) (Status, error) {
	switch Status(strings.ToUpper(strings.TrimSpace(value))) {
	case StatusAccepted:
		return StatusAccepted, nil
	case StatusRejected:
		return StatusRejected, nil
	default:
		return "", dErrors.New(dErrors.CodeBadRequest, "status must be ACCEPTED or REJECTED")
	}
}

// Career is the outcome attached to an accepted claim. Exactly one field is set:
// Credential for VC claims, Record for PLAIN claims.
type Career struct {
	// Credential is the base64 (standard encoding) ciphertext of the signed token,
	// sealed to the holder's public key.
	Credential string  `json:"credential,omitempty"`
	Record     Content `json:"record,omitempty"`
}

// Claim is a request by a holder for an issuer to attest the facts in Content.
type Claim struct {
	ID         ClaimID
	Owner      string // holder DID
	Issuer     string // issuer DID
	Title      string
	Content    Content
	CareerType CareerType
	Status     Status
	Career     *Career
	CreatedAt  time.Time
	DecidedAt  *time.Time
}

// IsPending reports whether the claim still awaits a decision.
func (c *Claim) IsPending() bool {
	return c.Status == StatusPending
}

// Clone returns a deep copy so stores never hand out references to their state.
func (c *Claim) Clone() *Claim {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Content = c.Content.Clone()
	if c.Career != nil {
		career := Career{Credential: c.Career.Credential, Record: c.Career.Record.Clone()}
		cp.Career = &career
	}
	if c.DecidedAt != nil {
		t := *c.DecidedAt
		cp.DecidedAt = &t
	}
	return &cp
}

// Role is the directory role of a DID at the moment it was resolved.
type Role string

const (
	RoleEmployer Role = "EMPLOYER"
	RoleEmployee Role = "EMPLOYEE"
	RoleOther    Role = "OTHER"
)

// ParseRole maps a directory user type onto a Role. Unknown types are RoleOther.
func ParseRole(userType string) Role {
	switch Role(strings.ToUpper(strings.TrimSpace(userType))) {
	case RoleEmployer:
		return RoleEmployer
	case RoleEmployee:
		return RoleEmployee
	default:
		return RoleOther
	}
}

// Identity is a resolved directory entry. It is valid only for the call that produced it.
type Identity struct {
	DID  string
	Role Role
}

// Keystore is the issuer's proof of identity presented with an acceptance.
// PrivateKey is hex encoded.
type Keystore struct {
	DID        string
	PrivateKey string
}

// LogValue keeps the private key out of logs.
func (k Keystore) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("did", k.DID),
		slog.String("private_key", "[REDACTED]"),
	)
}

// Precondition is the set of fields a claim must still hold for a conditional read
// or update to apply. An empty CareerType matches any career type.
type Precondition struct {
	Issuer     string
	Status     Status
	CareerType CareerType
}

// Matches reports whether c satisfies the precondition.
func (p Precondition) Matches(c *Claim) bool {
	if c == nil {
		return false
	}
	if c.Issuer != p.Issuer || c.Status != p.Status {
		return false
	}
	return p.CareerType == "" || c.CareerType == p.CareerType
}

// Patch is the mutation a conditional update applies.
type Patch struct {
	Status Status
	Career *Career
}

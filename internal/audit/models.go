package audit

import "time"

// Event records who did what to which claim. Keep it transport-agnostic so stores
// and sinks can fan out.
type Event struct {
	Timestamp time.Time
	Actor     string // DID of the caller
	Subject   string // claim ID
	Action    string
	Decision  string
	Reason    string
	RequestID string
}

type Action string

const (
	ActionClaimCreated  Action = "claim_created"
	ActionClaimAccepted Action = "claim_accepted"
	ActionClaimRejected Action = "claim_rejected"
)

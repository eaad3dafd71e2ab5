package models

import (
	"encoding/json"
	"time"
)

// AggregateType is the outbox aggregate name for claim events.
const AggregateType = "claim"

// EventType names a lifecycle transition.
type EventType string

const (
	EventClaimCreated  EventType = "claim_created"
	EventClaimAccepted EventType = "claim_accepted"
	EventClaimRejected EventType = "claim_rejected"
)

// EventForStatus maps a decision onto its event type.
func EventForStatus(s Status) EventType {
	if s == StatusAccepted {
		return EventClaimAccepted
	}
	return EventClaimRejected
}

// Event is the payload published for every lifecycle transition. It carries no
// content and no career: consumers fetch the claim if they are entitled to it.
type Event struct {
	Type       EventType  `json:"event_type"`
	ClaimID    ClaimID    `json:"claim_id"`
	Owner      string     `json:"owner"`
	Issuer     string     `json:"issuer"`
	CareerType CareerType `json:"career_type"`
	Status     Status     `json:"status"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// NewEvent snapshots a claim into an event.
func NewEvent(t EventType, c *Claim, at time.Time) Event {
	return Event{
		Type:       t,
		ClaimID:    c.ID,
		Owner:      c.Owner,
		Issuer:     c.Issuer,
		CareerType: c.CareerType,
		Status:     c.Status,
		OccurredAt: at.UTC(),
	}
}

// Payload is the JSON body written to the outbox.
func (e Event) Payload() ([]byte, error) {
	return json.Marshal(e)
}

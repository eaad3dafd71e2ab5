// Package outbox holds claim lifecycle events written in the same transaction as
// the claim change they describe, until the relay has published them to Kafka.
package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Header names carried on every published record.
const (
	HeaderOutboxID      = "outbox_id"
	HeaderAggregateType = "aggregate_type"
	HeaderAggregateID   = "aggregate_id"
	HeaderEventType     = "event_type"
)

// Entry is one event row. ProcessedAt stays nil until the relay publishes it.
type Entry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
	ProcessedAt   *time.Time
}

func NewEntry(aggregateType, aggregateID, eventType string, payload []byte, now time.Time) *Entry {
	return &Entry{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     now,
	}
}

func (e *Entry) IsPending() bool {
	return e.ProcessedAt == nil
}

// Key partitions records by aggregate, which keeps one claim's events in order.
func (e *Entry) Key() []byte {
	return []byte(e.AggregateID)
}

// Headers lets consumers route a record without decoding the payload.
func (e *Entry) Headers() map[string]string {
	return map[string]string{
		HeaderOutboxID:      e.ID.String(),
		HeaderAggregateType: e.AggregateType,
		HeaderAggregateID:   e.AggregateID,
		HeaderEventType:     e.EventType,
	}
}

// Store persists entries. Implementations are safe for concurrent use.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
	// FetchUnprocessed returns at most limit pending entries, oldest first.
	FetchUnprocessed(ctx context.Context, limit int) ([]*Entry, error)
	// MarkProcessed fails for an unknown or already processed entry.
	MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error
	CountPending(ctx context.Context) (int64, error)
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}

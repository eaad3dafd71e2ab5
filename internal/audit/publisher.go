package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"attesto/internal/audit/metrics"
	"attesto/pkg/requestcontext"
)

const persistTimeout = 5 * time.Second

// Publisher captures structured audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store   Store
	events  chan Event
	wg      sync.WaitGroup
	logger  *slog.Logger
	metrics *metrics.Metrics
	async   bool
}

type PublisherOption func(*Publisher)

// WithAsyncBuffer queues events and persists them in a background goroutine.
// Emit never blocks: events that do not fit in the buffer are dropped and logged.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.events = make(chan Event, size)
			p.async = true
		}
	}
}

func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithPublisherMetrics(m *metrics.Metrics) PublisherOption {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.async {
		p.wg.Add(1)
		go p.processEvents()
	}
	return p
}

func (p *Publisher) processEvents() {
	defer p.wg.Done()
	for event := range p.events {
		if p.metrics != nil {
			p.metrics.QueueDepth.Dec()
		}
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		err := p.persist(ctx, event)
		cancel()
		if err != nil && p.logger != nil {
			p.logger.Error("failed to persist audit event",
				"error", err,
				"action", event.Action,
				"subject", event.Subject,
				"request_id", event.RequestID,
			)
		}
	}
}

func (p *Publisher) persist(ctx context.Context, event Event) error {
	start := time.Now()
	err := p.store.Append(ctx, event)
	if p.metrics != nil {
		p.metrics.PersistDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			p.metrics.PersistFailures.Inc()
		}
	}
	return err
}

// Close stops the async worker after the queued events are persisted.
func (p *Publisher) Close() {
	if p.async && p.events != nil {
		close(p.events)
		p.wg.Wait()
	}
}

// Emit records an event. Timestamp and RequestID default to the request's values.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx).UTC()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if !p.async {
		return p.persist(ctx, event)
	}

	if p.metrics != nil {
		p.metrics.QueueDepth.Inc()
	}
	select {
	case p.events <- event:
		if p.metrics != nil {
			p.metrics.EventsEnqueued.Inc()
		}
	default:
		if p.metrics != nil {
			p.metrics.QueueDepth.Dec()
			p.metrics.EventsDropped.Inc()
		}
		if p.logger != nil {
			p.logger.WarnContext(ctx, "audit buffer full, event dropped",
				"action", event.Action,
				"subject", event.Subject,
			)
		}
	}
	return nil
}

// List returns the events recorded for one claim.
func (p *Publisher) List(ctx context.Context, subject string) ([]Event, error) {
	return p.store.ListBySubject(ctx, subject)
}

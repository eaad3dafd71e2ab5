package worker

import (
	"context"
	"log/slog"
	"time"

	"attesto/internal/platform/kafka/producer"
	"attesto/pkg/platform/outbox"
	"attesto/pkg/platform/outbox/metrics"
)

// Publisher delivers one message and returns once the broker has acknowledged it.
type Publisher interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// Worker polls the outbox table and publishes events to Kafka.
type Worker struct {
	store        outbox.Store
	publisher    Publisher
	topic        string
	batchSize    int
	pollInterval time.Duration
	retention    time.Duration
	drainTimeout time.Duration
	metrics      *metrics.Metrics
	logger       *slog.Logger
	now          func() time.Time
}

// Option configures the Worker.
type Option func(*Worker)

// WithTopic sets the Kafka topic for publishing.
func WithTopic(topic string) Option {
	return func(w *Worker) {
		w.topic = topic
	}
}

// WithBatchSize sets the maximum number of entries to fetch per poll.
func WithBatchSize(size int) Option {
	return func(w *Worker) {
		if size > 0 {
			w.batchSize = size
		}
	}
}

// WithPollInterval sets the interval between polls.
func WithPollInterval(interval time.Duration) Option {
	return func(w *Worker) {
		if interval > 0 {
			w.pollInterval = interval
		}
	}
}

// WithRetention removes processed entries older than d after each poll. Zero keeps them.
func WithRetention(d time.Duration) Option {
	return func(w *Worker) {
		w.retention = d
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// New creates a new outbox worker.
func New(store outbox.Store, publisher Publisher, opts ...Option) *Worker {
	w := &Worker{
		store:        store,
		publisher:    publisher,
		topic:        "claim-events",
		batchSize:    100,
		pollInterval: time.Second,
		drainTimeout: 10 * time.Second,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls until ctx is cancelled, then drains what is left with a bounded timeout.
// It always returns nil so it can sit in an errgroup next to the HTTP server.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.drain()
			return nil
		case <-ticker.C:
			w.Poll(ctx)
		}
	}
}

// Poll fetches one batch and publishes it. It returns the number of entries published.
func (w *Worker) Poll(ctx context.Context) int {
	start := w.now()
	defer func() {
		if w.metrics != nil {
			w.metrics.ObservePollDuration(time.Since(start).Seconds())
		}
	}()

	published := w.processBatch(ctx)
	w.updatePending(ctx)
	w.purge(ctx)
	return published
}

func (w *Worker) processBatch(ctx context.Context) int {
	entries, err := w.store.FetchUnprocessed(ctx, w.batchSize)
	if err != nil {
		w.logger.ErrorContext(ctx, "failed to fetch outbox entries", "error", err)
		if w.metrics != nil {
			w.metrics.IncPublishFailures()
		}
		return 0
	}
	if len(entries) == 0 {
		return 0
	}
	if w.metrics != nil {
		w.metrics.ObserveBatchSize(len(entries))
	}

	published := 0
	for _, entry := range entries {
		if err := w.publishEntry(ctx, entry); err != nil {
			w.logger.ErrorContext(ctx, "failed to publish outbox entry",
				"id", entry.ID,
				"event_type", entry.EventType,
				"error", err,
			)
			if w.metrics != nil {
				w.metrics.IncPublishFailures()
			}
			// Left pending; retried on the next poll.
			continue
		}

		if err := w.store.MarkProcessed(ctx, entry.ID, w.now()); err != nil {
			// Published but not marked: it will be re-published and consumers dedupe.
			w.logger.ErrorContext(ctx, "failed to mark entry as processed",
				"id", entry.ID,
				"error", err,
			)
			continue
		}

		published++
		if w.metrics != nil {
			w.metrics.IncPublished(entry.EventType)
		}
	}
	return published
}

func (w *Worker) publishEntry(ctx context.Context, entry *outbox.Entry) error {
	start := w.now()

	msg := &producer.Message{
		Topic:   w.topic,
		Key:     entry.Key(),
		Value:   entry.Payload,
		Headers: entry.Headers(),
	}

	if err := w.publisher.Produce(ctx, msg); err != nil {
		return err
	}

	if w.metrics != nil {
		w.metrics.ObservePublishDuration(time.Since(start).Seconds())
	}
	return nil
}

func (w *Worker) updatePending(ctx context.Context) {
	if w.metrics == nil {
		return
	}
	count, err := w.store.CountPending(ctx)
	if err != nil {
		w.logger.WarnContext(ctx, "failed to count pending outbox entries", "error", err)
		return
	}
	w.metrics.SetPendingDepth(count)
}

func (w *Worker) purge(ctx context.Context) {
	if w.retention <= 0 {
		return
	}
	n, err := w.store.DeleteProcessedBefore(ctx, w.now().Add(-w.retention))
	if err != nil {
		w.logger.WarnContext(ctx, "failed to purge processed outbox entries", "error", err)
		return
	}
	if n > 0 && w.metrics != nil {
		w.metrics.AddPurged(n)
	}
}

// drain publishes remaining entries during shutdown until the outbox is empty, a
// batch makes no progress, or the drain timeout expires.
func (w *Worker) drain() {
	w.logger.Info("draining outbox worker")

	ctx, cancel := context.WithTimeout(context.Background(), w.drainTimeout)
	defer cancel()

	for ctx.Err() == nil {
		if w.processBatch(ctx) == 0 {
			return
		}
	}
}

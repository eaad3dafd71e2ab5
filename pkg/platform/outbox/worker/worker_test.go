package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"attesto/internal/platform/kafka/producer"
	"attesto/pkg/platform/outbox"
	"attesto/pkg/platform/outbox/metrics"
	"attesto/pkg/platform/outbox/store/memory"
)

type fakePublisher struct {
	mu       sync.Mutex
	messages []*producer.Message
	failFor  map[string]bool
}

func (p *fakePublisher) Produce(_ context.Context, msg *producer.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failFor[msg.Headers["event_type"]] {
		return errors.New("broker unavailable")
	}
	p.messages = append(p.messages, msg)
	return nil
}

func (p *fakePublisher) sent() []*producer.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*producer.Message(nil), p.messages...)
}

type WorkerSuite struct {
	suite.Suite
	store     *memory.Store
	publisher *fakePublisher
	metrics   *metrics.Metrics
	worker    *Worker
	base      time.Time
}

func TestWorkerSuite(t *testing.T) {
	suite.Run(t, new(WorkerSuite))
}

func (s *WorkerSuite) SetupTest() {
	s.store = memory.New()
	s.publisher = &fakePublisher{failFor: map[string]bool{}}
	s.metrics = metrics.NewWith(prometheus.NewRegistry())
	s.base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.worker = New(s.store, s.publisher,
		WithTopic("claim-events-test"),
		WithBatchSize(10),
		WithMetrics(s.metrics),
	)
}

func (s *WorkerSuite) appendEntry(aggregateID, eventType string, offset time.Duration) *outbox.Entry {
	e := outbox.NewEntry("claim", aggregateID, eventType, []byte(`{}`), s.base.Add(offset))
	s.Require().NoError(s.store.Append(context.Background(), e))
	return e
}

// TestPollPublishesInOrderAndMarks verifies entries are relayed oldest first and
// are not published twice.
func (s *WorkerSuite) TestPollPublishesInOrderAndMarks() {
	s.appendEntry("clm_b", "claim_accepted", time.Second)
	s.appendEntry("clm_a", "claim_created", 0)

	n := s.worker.Poll(context.Background())

	s.Equal(2, n)
	sent := s.publisher.sent()
	s.Require().Len(sent, 2)
	s.Equal("clm_a", string(sent[0].Key))
	s.Equal("claim_created", sent[0].Headers["event_type"])
	s.Equal("claim-events-test", sent[0].Topic)
	s.Equal("clm_b", string(sent[1].Key))

	s.Equal(0, s.worker.Poll(context.Background()), "processed entries are not re-published")
	s.InDelta(2, testutil.ToFloat64(s.metrics.PublishedTotal.WithLabelValues("claim_created"))+
		testutil.ToFloat64(s.metrics.PublishedTotal.WithLabelValues("claim_accepted")), 0)
}

// TestFailedPublishStaysPending verifies a broker failure leaves the entry for retry.
func (s *WorkerSuite) TestFailedPublishStaysPending() {
	s.appendEntry("clm_a", "claim_rejected", 0)
	s.publisher.failFor["claim_rejected"] = true

	s.Equal(0, s.worker.Poll(context.Background()))
	pending, err := s.store.CountPending(context.Background())
	s.Require().NoError(err)
	s.EqualValues(1, pending)
	s.InDelta(1, testutil.ToFloat64(s.metrics.PendingDepth), 0)

	s.publisher.failFor["claim_rejected"] = false
	s.Equal(1, s.worker.Poll(context.Background()))
}

// TestRetentionPurgesProcessed verifies processed entries age out.
func (s *WorkerSuite) TestRetentionPurgesProcessed() {
	e := s.appendEntry("clm_a", "claim_created", 0)
	s.Require().NoError(s.store.MarkProcessed(context.Background(), e.ID, s.base))

	w := New(s.store, s.publisher, WithRetention(time.Hour), WithMetrics(s.metrics))
	w.now = func() time.Time { return s.base.Add(2 * time.Hour) }
	w.Poll(context.Background())

	s.Empty(s.store.All())
}

func TestRunDrainsOnShutdown(t *testing.T) {
	store := memory.New()
	pub := &fakePublisher{failFor: map[string]bool{}}
	w := New(store, pub, WithPollInterval(time.Hour))

	require.NoError(t, store.Append(context.Background(), outbox.NewEntry("claim", "clm_1", "claim_created", []byte(`{}`), time.Now())))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, w.Run(ctx))

	assert.Len(t, pub.sent(), 1, "pending entries are flushed on shutdown")
}

//go:build integration

package containers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go/modules/redpanda"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

const redpandaImage = "docker.redpanda.com/redpandadata/redpanda:v24.2.4"

// KafkaContainer is a single-node Redpanda broker.
type KafkaContainer struct {
	Container *redpanda.Container
	Brokers   string
}

func startKafka(ctx context.Context) (_ *KafkaContainer, err error) {
	c, err := redpanda.Run(ctx, redpandaImage, redpanda.WithAutoCreateTopics())
	if err != nil {
		return nil, err
	}
	defer terminateOnError(c, &err)

	broker, err := c.KafkaSeedBroker(ctx)
	if err != nil {
		return nil, fmt.Errorf("seed broker: %w", err)
	}
	return &KafkaContainer{Container: c, Brokers: broker}, nil
}

// CreateTopic creates topic unless an earlier suite already did.
func (k *KafkaContainer) CreateTopic(ctx context.Context, topic string, partitions int32, replication int16) error {
	cl, err := kgo.NewClient(kgo.SeedBrokers(k.Brokers))
	if err != nil {
		return err
	}
	defer cl.Close()

	resp, err := kadm.NewClient(cl).CreateTopic(ctx, partitions, replication, nil, topic)
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		return err
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return resp.Err
	}
	return nil
}

// NewConsumer reads topics from the earliest offset without joining a group.
func (k *KafkaContainer) NewConsumer(topics ...string) (*kgo.Client, error) {
	return kgo.NewClient(
		kgo.SeedBrokers(k.Brokers),
		kgo.ConsumeTopics(topics...),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
}

// WaitForMessage polls until a record satisfies match. It returns nil once
// timeout passes or the client is closed.
func (k *KafkaContainer) WaitForMessage(ctx context.Context, cl *kgo.Client, timeout time.Duration, match func(*kgo.Record) bool) *kgo.Record {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for ctx.Err() == nil {
		fetches := cl.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		for it := fetches.RecordIter(); !it.Done(); {
			if r := it.Next(); match(r) {
				return r
			}
		}
	}
	return nil
}

//go:build integration

// Package containers starts the Postgres, Redis and Redpanda backends used by
// integration suites. Each backend is started at most once per test binary and
// shared; the testcontainers reaper removes them when the process exits.
package containers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
)

const startTimeout = 2 * time.Minute

// shared starts a backend on first use and hands the same instance (or the
// same startup error) to every later caller.
type shared[T any] struct {
	once sync.Once
	v    T
	err  error
}

func (s *shared[T]) get(t *testing.T, name string, start func(context.Context) (T, error)) T {
	t.Helper()
	s.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), startTimeout)
		defer cancel()
		s.v, s.err = start(ctx)
	})
	if s.err != nil {
		t.Fatalf("start %s container: %v", name, s.err)
	}
	return s.v
}

// Manager hands out the shared backends.
type Manager struct {
	postgres shared[*PostgresContainer]
	redis    shared[*RedisContainer]
	kafka    shared[*KafkaContainer]
}

var manager Manager

func GetManager() *Manager {
	return &manager
}

// GetPostgres returns a migrated Postgres database.
func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	return m.postgres.get(t, "postgres", startPostgres)
}

func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	return m.redis.get(t, "redis", startRedis)
}

// GetKafka returns a Redpanda broker speaking the Kafka protocol.
func (m *Manager) GetKafka(t *testing.T) *KafkaContainer {
	t.Helper()
	return m.kafka.get(t, "kafka", startKafka)
}

// terminateOnError tears a half-started container down when setup fails later on.
func terminateOnError(c testcontainers.Container, err *error) {
	if *err != nil {
		_ = testcontainers.TerminateContainer(c)
	}
}

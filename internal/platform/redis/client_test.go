package redis

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attesto/internal/platform/config"
)

func TestNewWithoutURLReturnsNilClient(t *testing.T) {
	c, err := New(config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestNewRejectsMalformedURL(t *testing.T) {
	_, err := New(config.RedisConfig{URL: "http://not-redis"})
	assert.ErrorContains(t, err, "parse REDIS_URL")
}

func TestRecordAddsOnlyGrowth(t *testing.T) {
	c := &Client{metrics: newPoolMetrics(prometheus.NewRegistry())}
	hits := c.metrics.events.WithLabelValues("hit")

	c.record(&redis.PoolStats{Hits: 5, Misses: 1, TotalConns: 4, IdleConns: 3})
	assert.Equal(t, 5.0, testutil.ToFloat64(hits))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.metrics.conns.WithLabelValues("total")))

	c.record(&redis.PoolStats{Hits: 9, Misses: 1, TotalConns: 2, IdleConns: 2})
	assert.Equal(t, 9.0, testutil.ToFloat64(hits))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.events.WithLabelValues("miss")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.metrics.conns.WithLabelValues("idle")))
}

func TestGrowthAfterReset(t *testing.T) {
	assert.Equal(t, 3.0, growth(10, 7))
	assert.Equal(t, 2.0, growth(2, 7))
	assert.Zero(t, growth(7, 7))
}

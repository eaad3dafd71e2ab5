// Package redis connects the idempotency key store to Redis and exports pool usage.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"attesto/internal/platform/config"
)

const checkName = "redis"

type poolMetrics struct {
	conns  *prometheus.GaugeVec
	events *prometheus.CounterVec
}

func newPoolMetrics(reg prometheus.Registerer) *poolMetrics {
	f := promauto.With(reg)
	return &poolMetrics{
		conns: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "attesto_redis_pool_conns",
			Help: "Connections held by the idempotency Redis pool, by state",
		}, []string{"state"}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attesto_redis_pool_events_total",
			Help: "Idempotency Redis pool events: hit, miss, wait, timeout, stale",
		}, []string{"event"}),
	}
}

// Client is the go-redis client behind the idempotency store.
type Client struct {
	*redis.Client
	metrics *poolMetrics
	last    redis.PoolStats
}

type Option func(*options)

type options struct {
	registerer prometheus.Registerer
}

// WithRegisterer registers the pool collectors on reg instead of the default registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// New connects using cfg and pings once. It returns a nil client when no URL
// is configured, leaving the caller on process-local idempotency keys.
func New(cfg config.RedisConfig, opts ...Option) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	o := options{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&o)
	}

	ro, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	ro.PoolSize = cfg.PoolSize
	ro.MinIdleConns = cfg.MinIdleConns
	ro.DialTimeout = cfg.DialTimeout
	ro.ReadTimeout = cfg.ReadTimeout
	ro.WriteTimeout = cfg.WriteTimeout

	rdb := redis.NewClient(ro)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{Client: rdb, metrics: newPoolMetrics(o.registerer)}, nil
}

// Health pings the server; it is registered as a required readiness check.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

func (c *Client) Name() string {
	return checkName
}

// RunPoolStats samples the pool every interval until ctx is cancelled.
func (c *Client) RunPoolStats(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.record(c.PoolStats())
		}
	}
}

// record exports one sample. go-redis reports cumulative counts, so only the
// growth since the previous sample is added to the counters.
func (c *Client) record(s *redis.PoolStats) {
	c.metrics.conns.WithLabelValues("total").Set(float64(s.TotalConns))
	c.metrics.conns.WithLabelValues("idle").Set(float64(s.IdleConns))

	c.metrics.events.WithLabelValues("hit").Add(growth(s.Hits, c.last.Hits))
	c.metrics.events.WithLabelValues("miss").Add(growth(s.Misses, c.last.Misses))
	c.metrics.events.WithLabelValues("wait").Add(growth(s.WaitCount, c.last.WaitCount))
	c.metrics.events.WithLabelValues("timeout").Add(growth(s.Timeouts, c.last.Timeouts))
	c.metrics.events.WithLabelValues("stale").Add(growth(s.StaleConns, c.last.StaleConns))

	c.last = *s
}

// growth treats a count that went backwards as a pool reset.
func growth(cur, prev uint32) float64 {
	if cur < prev {
		return float64(cur)
	}
	return float64(cur - prev)
}

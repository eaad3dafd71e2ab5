// Package database opens the Postgres pool shared by the claim, outbox and audit stores.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"attesto/internal/platform/config"
)

const connectTimeout = 5 * time.Second

var errNotConfigured = errors.New("database not configured")

type poolMetrics struct {
	conns     *prometheus.GaugeVec
	waits     prometheus.Counter
	waitTotal prometheus.Counter
}

func newPoolMetrics(reg prometheus.Registerer) *poolMetrics {
	f := promauto.With(reg)
	return &poolMetrics{
		conns: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "attesto_db_pool_conns",
			Help: "Postgres pool connections, by state",
		}, []string{"state"}),
		waits: f.NewCounter(prometheus.CounterOpts{
			Name: "attesto_db_pool_waits_total",
			Help: "Queries that waited for a free Postgres connection",
		}),
		waitTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "attesto_db_pool_wait_seconds_total",
			Help: "Time spent waiting for a free Postgres connection",
		}),
	}
}

// Pool is the process-wide *sql.DB on the pgx driver.
type Pool struct {
	db      *sql.DB
	metrics *poolMetrics
	last    sql.DBStats
}

type Option func(*options)

type options struct {
	registerer prometheus.Registerer
}

// WithRegisterer registers the pool collectors on reg instead of the default registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// New opens the pool and pings it once, so a bad DATABASE_URL fails startup.
// It returns a nil pool when no URL is configured.
func New(cfg config.DatabaseConfig, opts ...Option) (*Pool, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	o := options{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{db: db, metrics: newPoolMetrics(o.registerer)}, nil
}

func (p *Pool) DB() *sql.DB {
	return p.db
}

// Health pings Postgres; it is registered as a required readiness check.
func (p *Pool) Health(ctx context.Context) error {
	if p == nil || p.db == nil {
		return errNotConfigured
	}
	return p.db.PingContext(ctx)
}

func (p *Pool) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

// RunPoolStats samples the pool every interval until ctx is cancelled.
func (p *Pool) RunPoolStats(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.record(p.db.Stats())
		}
	}
}

func (p *Pool) record(s sql.DBStats) {
	p.metrics.conns.WithLabelValues("open").Set(float64(s.OpenConnections))
	p.metrics.conns.WithLabelValues("in_use").Set(float64(s.InUse))
	p.metrics.conns.WithLabelValues("idle").Set(float64(s.Idle))
	if s.WaitCount >= p.last.WaitCount {
		p.metrics.waits.Add(float64(s.WaitCount - p.last.WaitCount))
	}
	if s.WaitDuration >= p.last.WaitDuration {
		p.metrics.waitTotal.Add((s.WaitDuration - p.last.WaitDuration).Seconds())
	}
	p.last = s
}

// WithTx runs fn inside a transaction on db. It commits only when fn returns
// nil; any error or panic rolls back.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

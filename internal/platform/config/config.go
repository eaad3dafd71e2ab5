package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-wide configuration assembled from the environment.
type Server struct {
	Addr            string
	Environment     string
	ShutdownTimeout time.Duration
	Database        DatabaseConfig
	Redis           RedisConfig
	Kafka           KafkaConfig
	Identity        IdentityConfig
	Claims          ClaimsConfig
	Tracing         TracingConfig
}

// TracingConfig configures span export. Spans are dropped when Endpoint is empty.
type TracingConfig struct {
	Endpoint    string
	Insecure    bool
	SampleRatio float64
}

// DatabaseConfig configures the Postgres pool. Stores fall back to memory when URL is empty.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// Migrate applies the embedded schema at startup.
	Migrate bool
}

// RedisConfig configures the optional Redis connection used for idempotency keys.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the outbox relay. Publication is disabled when Brokers is empty.
type KafkaConfig struct {
	Brokers      string
	Topic        string
	PollInterval time.Duration
	BatchSize    int
}

// IdentityConfig points at the user directory that resolves access tokens and DIDs.
type IdentityConfig struct {
	BaseURL string
	Timeout time.Duration
}

// ClaimsConfig holds claim lifecycle knobs.
type ClaimsConfig struct {
	// PlainDecisions allows issuers to decide PLAIN claims, which are accepted
	// without signing or encryption. Off unless CLAIMS_PLAIN_DECISIONS is set.
	PlainDecisions bool
	IdempotencyTTL time.Duration
	// AuditBuffer is the number of audit events queued for background persistence.
	// Zero persists each event inside the request.
	AuditBuffer int
}

// IsProduction reports whether the process runs with production safeguards.
func (s Server) IsProduction() bool {
	return s.Environment == "production"
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:            envString("ATTESTO_ADDR", ":8080"),
		Environment:     envString("ATTESTO_ENV", "development"),
		ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			Migrate:         envBool("DB_MIGRATE", false),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:      os.Getenv("KAFKA_BROKERS"),
			Topic:        envString("KAFKA_CLAIM_EVENTS_TOPIC", "claim-events"),
			PollInterval: envDuration("OUTBOX_POLL_INTERVAL", time.Second),
			BatchSize:    envInt("OUTBOX_BATCH_SIZE", 100),
		},
		Identity: IdentityConfig{
			BaseURL: strings.TrimRight(envString("IDENTITY_BASE_URL", "http://localhost:3000"), "/"),
			Timeout: envDuration("IDENTITY_TIMEOUT", 5*time.Second),
		},
		Claims: ClaimsConfig{
			PlainDecisions: envBool("CLAIMS_PLAIN_DECISIONS", false),
			IdempotencyTTL: envDuration("IDEMPOTENCY_TTL", 24*time.Hour),
			AuditBuffer:    envInt("AUDIT_BUFFER_SIZE", 1024),
		},
		Tracing: TracingConfig{
			Endpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			Insecure:    envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
			SampleRatio: envFloat("TRACE_SAMPLE_RATIO", 0.1),
		},
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"attesto/internal/audit"
	auditmetrics "attesto/internal/audit/metrics"
	claimsHandler "attesto/internal/claims/handler"
	claimsmetrics "attesto/internal/claims/metrics"
	"attesto/internal/claims/service"
	claimstore "attesto/internal/claims/store"
	"attesto/internal/credential/sealer"
	"attesto/internal/credential/signer"
	"attesto/internal/idempotency"
	"attesto/internal/identity"
	"attesto/internal/platform/config"
	"attesto/internal/platform/database"
	"attesto/internal/platform/health"
	"attesto/internal/platform/kafka/producer"
	"attesto/internal/platform/logger"
	"attesto/internal/platform/redis"
	"attesto/internal/platform/tracer"
	httptransport "attesto/internal/transport/http"
	"attesto/migrations"
	"attesto/pkg/platform/circuit"
	"attesto/pkg/platform/middleware/request"
	"attesto/pkg/platform/outbox"
	outboxmetrics "attesto/pkg/platform/outbox/metrics"
	outboxmem "attesto/pkg/platform/outbox/store/memory"
	outboxpg "attesto/pkg/platform/outbox/store/postgres"
	"attesto/pkg/platform/outbox/worker"
)

// infra holds the optional backends. Nil members fall back to in-memory
// implementations.
type infra struct {
	db       *database.Pool
	redis    *redis.Client
	producer *producer.Producer
}

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Environment)

	log.Info("initializing attesto",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"identity_base_url", cfg.Identity.BaseURL,
		"plain_decisions", cfg.Claims.PlainDecisions,
		"audit_buffer", cfg.Claims.AuditBuffer,
	)

	deps, err := connect(cfg, log)
	if err != nil {
		log.Error("failed to initialize infrastructure", "error", err)
		os.Exit(1)
	}
	defer deps.close(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, deps, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func connect(cfg config.Server, log *slog.Logger) (*infra, error) {
	deps := &infra{}

	db, err := database.New(cfg.Database)
	if err != nil {
		return nil, err
	}
	deps.db = db
	if db == nil {
		log.Warn("DATABASE_URL not set, using in-memory stores")
	} else if cfg.Database.Migrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := migrations.Up(ctx, db.DB())
		cancel()
		if err != nil {
			deps.close(log)
			return nil, err
		}
		log.Info("database schema applied")
	}

	rdb, err := redis.New(cfg.Redis)
	if err != nil {
		deps.close(log)
		return nil, err
	}
	deps.redis = rdb
	if rdb == nil {
		log.Warn("REDIS_URL not set, idempotency keys are process-local")
	}

	if cfg.Kafka.Brokers != "" {
		p, err := producer.New(producer.DefaultConfig(cfg.Kafka.Brokers), log)
		if err != nil {
			deps.close(log)
			return nil, err
		}
		deps.producer = p
	} else {
		log.Warn("KAFKA_BROKERS not set, claim events are discarded after commit")
	}
	return deps, nil
}

func (d *infra) close(log *slog.Logger) {
	if d.producer != nil {
		_ = d.producer.Close()
	}
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			log.Warn("failed to close redis", "error", err)
		}
	}
	if d.db != nil {
		if err := d.db.Close(); err != nil {
			log.Warn("failed to close database", "error", err)
		}
	}
}

func run(ctx context.Context, cfg config.Server, deps *infra, log *slog.Logger) error {
	var (
		claims      service.Store
		outboxStore outbox.Store
		auditStore  audit.Store
	)
	if deps.db != nil {
		claims = claimstore.NewPostgres(deps.db.DB())
		outboxStore = outboxpg.New(deps.db.DB())
		auditStore = audit.NewPostgresStore(deps.db.DB())
	} else {
		mem := outboxmem.New()
		claims = claimstore.NewInMemoryStore(claimstore.WithOutbox(mem))
		outboxStore = mem
		auditStore = audit.NewInMemoryStore()
	}

	var idem idempotency.Store
	if deps.redis != nil {
		idem = idempotency.NewRedis(deps.redis.Client, cfg.Claims.IdempotencyTTL)
	} else {
		idem = idempotency.NewInMemory(cfg.Claims.IdempotencyTTL)
	}

	var publisher worker.Publisher = producer.NewNoopProducer()
	if deps.producer != nil {
		publisher = deps.producer
	}

	auditor := audit.NewPublisher(auditStore,
		audit.WithPublisherLogger(log),
		audit.WithPublisherMetrics(auditmetrics.New()),
		audit.WithAsyncBuffer(cfg.Claims.AuditBuffer),
	)
	// Deferred after the errgroup is waited on, so queued events drain once the
	// server has stopped taking requests.
	defer auditor.Close()

	shutdownTracing, err := tracer.Setup(ctx, tracer.ProviderConfig{
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
		Service:     "attesto",
		Version:     health.Version,
		Environment: cfg.Environment,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("failed to flush spans", "error", err)
		}
	}()
	trace := tracer.NewOTel()
	directory := identity.NewClient(cfg.Identity.BaseURL, cfg.Identity.Timeout,
		identity.WithTracer(trace),
		identity.WithLogger(log),
		identity.WithBreaker(circuit.New("identity-directory")),
	)
	svc, err := service.New(claims, directory,
		signer.New(signer.WithTracer(trace)),
		sealer.New(sealer.WithTracer(trace)),
		service.WithLogger(log),
		service.WithAuditor(auditor),
		service.WithMetrics(claimsmetrics.New()),
		service.WithTracer(trace),
		service.WithPlainDecisions(cfg.Claims.PlainDecisions),
	)
	if err != nil {
		return err
	}

	healthHandler := health.New(cfg.Environment)
	if deps.db != nil {
		healthHandler.RegisterCheck("database", deps.db.Health)
	}
	if deps.redis != nil {
		healthHandler.RegisterCheck(deps.redis.Name(), deps.redis.Health)
	}
	if deps.producer != nil {
		healthHandler.RegisterCheck("kafka", deps.producer.Check)
	}
	healthHandler.RegisterAdvisory("identity-directory", directory.Check)

	router := httptransport.NewRouter(httptransport.Routes{
		Claims:  claimsHandler.New(svc, idem, log),
		Health:  healthHandler,
		Metrics: promhttp.Handler(),
		Latency: request.NewMetrics(),
	}, log)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	relay := worker.New(outboxStore, publisher,
		worker.WithTopic(cfg.Kafka.Topic),
		worker.WithBatchSize(cfg.Kafka.BatchSize),
		worker.WithPollInterval(cfg.Kafka.PollInterval),
		worker.WithMetrics(outboxmetrics.New()),
		worker.WithLogger(log),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return relay.Run(gctx)
	})
	if deps.db != nil {
		g.Go(func() error {
			return deps.db.RunPoolStats(gctx, 15*time.Second)
		})
	}
	if deps.redis != nil {
		g.Go(func() error {
			return deps.redis.RunPoolStats(gctx, 15*time.Second)
		})
	}
	if mem, ok := idem.(*idempotency.InMemory); ok {
		g.Go(func() error {
			return mem.RunCleanup(gctx, time.Minute)
		})
	}

	return g.Wait()
}

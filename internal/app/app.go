package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/myseetara-source/erp-seetara-sub004/internal/cache"
	"github.com/myseetara-source/erp-seetara-sub004/internal/config"
	"github.com/myseetara-source/erp-seetara-sub004/internal/event"
	handler "github.com/myseetara-source/erp-seetara-sub004/internal/handler/http"
	"github.com/myseetara-source/erp-seetara-sub004/internal/lock"
	"github.com/myseetara-source/erp-seetara-sub004/internal/repository"
	"github.com/myseetara-source/erp-seetara-sub004/internal/repository/memory"
	"github.com/myseetara-source/erp-seetara-sub004/internal/repository/postgres"
	"github.com/myseetara-source/erp-seetara-sub004/internal/service"
	"github.com/myseetara-source/erp-seetara-sub004/migrations"
	"github.com/myseetara-source/erp-seetara-sub004/pkg/database"
	"github.com/myseetara-source/erp-seetara-sub004/pkg/health"
	pkgkafka "github.com/myseetara-source/erp-seetara-sub004/pkg/kafka"
	"github.com/myseetara-source/erp-seetara-sub004/pkg/tracing"
)

// Version is reported to the tracing backend.
const Version = "0.1.0"

type store interface {
	repository.Store
	Ping(ctx context.Context) error
}

// App wires together all dependencies and runs the inventory engine.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *redis.Client
	producer       *pkgkafka.Producer
	dlq            *pkgkafka.DLQProducer
	consumers      []*pkgkafka.Consumer
	httpServer     *http.Server
	services       handler.Services
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    handler.ServiceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.tracerShutdown = tracerShutdown

	st, err := a.openStore(ctx)
	if err != nil {
		a.closeResources()
		return nil, err
	}

	var (
		readCache service.ReadCache
		locker    service.Locker
		idemStore pkgkafka.IdempotencyStore = pkgkafka.NewMemoryIdempotencyStore(time.Duration(cfg.Redis.IdempotencyTTLHours) * time.Hour)
	)
	if cfg.Redis.Enabled {
		client, err := database.NewRedisClient(ctx, cfg.DatabaseRedisConfig())
		if err != nil {
			a.closeResources()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.redis = client
		logger.Info("connected to Redis", slog.String("addr", cfg.Redis.Addr))

		readCache = cache.NewRedisCache(client, time.Duration(cfg.Redis.CacheTTLSeconds)*time.Second, logger)
		if cfg.Redis.ApprovalLock {
			lockCfg := lock.DefaultConfig()
			lockCfg.TTL = time.Duration(cfg.Redis.ApprovalLockTTLSecs) * time.Second
			locker = lock.NewRedisLocker(client, lockCfg, logger)
		}
		idemStore = pkgkafka.NewRedisIdempotencyStore(client, "inventory-engine:events:",
			time.Duration(cfg.Redis.IdempotencyTTLHours)*time.Hour)
	}

	var events service.EventPublisher
	if cfg.Kafka.Enabled {
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.Kafka.Brokers), logger)
		if err := pingKafkaWithRetry(ctx, a.producer, logger); err != nil {
			logger.Warn("kafka producer ping failed after retries, continuing in degraded mode",
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("kafka producer initialized", slog.Any("brokers", cfg.Kafka.Brokers))
		}
		events = event.NewProducer(a.producer, logger)
	}

	opts := service.Options{
		DefaultLowStockThreshold: cfg.DefaultLowStockThreshold,
		RequireDistinctChecker:   cfg.RequireDistinctChecker,
		AllowStraightThrough:     cfg.AllowStraightThrough,
	}
	stock := service.NewStockService(st, events, readCache, logger, opts)
	ledger := service.NewLedgerService(st, events, readCache, logger)
	txs := service.NewTransactionService(st, stock, ledger, locker, events, logger, opts)
	a.services = handler.Services{Stock: stock, Transactions: txs, Ledger: ledger}

	if cfg.Kafka.Enabled {
		a.dlq = pkgkafka.NewDLQProducer(cfg.Kafka.Brokers, logger)
		for topic, h := range event.NewConsumer(stock, logger).Handlers() {
			c := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
				Brokers:      cfg.Kafka.Brokers,
				GroupID:      cfg.Kafka.ConsumerGroup + "." + topic,
				Topic:        topic,
				MinBytes:     1,
				MaxBytes:     10e6,
				MaxRetries:   cfg.Kafka.MaxRetries,
				RetryBackoff: time.Duration(cfg.Kafka.RetryBackoffMs) * time.Millisecond,
				IsRetryable:  event.IsRetryable,
			}, pkgkafka.IdempotentHandler(idemStore, h, logger), logger).WithDLQ(a.dlq)
			a.consumers = append(a.consumers, c)
		}
	}

	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("store", st.Ping)
	if a.redis != nil {
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		})
	}
	if a.producer != nil {
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
	}

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler.NewRouter(a.services, healthHandler, logger),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// openStore selects the persistence backend. The postgres backend migrates the
// schema before returning.
func (a *App) openStore(ctx context.Context) (store, error) {
	cfg := a.cfg
	if cfg.StoreBackend == config.BackendMemory {
		a.logger.Warn("using in-memory store, state is lost on restart")
		return memory.NewStore(cfg.LockTimeout()), nil
	}

	pgCfg := cfg.DatabaseConfig()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.pool = pool
	a.logger.Info("connected to PostgreSQL",
		slog.String("host", pgCfg.Host),
		slog.Int("port", pgCfg.Port),
		slog.String("database", pgCfg.DBName),
	)
	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, handler.ServiceName); err != nil {
		a.logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}

	if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	a.logger.Info("database migrations completed")

	if threshold := cfg.SlowQueryThreshold(); threshold > 0 {
		database.SetSlowQueryLogging(threshold, a.logger)
	}

	return postgres.NewStore(pool, cfg.LockTimeout()), nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server and the order event consumers, then blocks until
// the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1+len(a.consumers))

	go func() {
		a.logger.Info("starting HTTP server", slog.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	for _, c := range a.consumers {
		go func() {
			if err := c.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("order consumer: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush spans from drained requests)
// 3. Kafka consumers, DLQ and producer
// 4. Redis client and PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	errs = append(errs, a.closeResources()...)

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

func (a *App) closeResources() []error {
	var errs []error
	record := func(what string, err error) {
		if err != nil {
			a.logger.Error(what+" close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		record("tracer", a.tracerShutdown(tracerCtx))
	}
	for _, c := range a.consumers {
		record("kafka consumer", c.Close())
	}
	if a.dlq != nil {
		record("kafka dlq producer", a.dlq.Close())
	}
	if a.producer != nil {
		record("kafka producer", a.producer.Close())
	}
	if a.redis != nil {
		record("redis", a.redis.Close())
	}
	if a.pool != nil {
		a.pool.Close()
	}
	return errs
}

// pingKafkaWithRetry attempts to ping the Kafka producer with exponential
// backoff (3 attempts, 1s/2s/4s with ±25% jitter).
func pingKafkaWithRetry(ctx context.Context, producer *pkgkafka.Producer, logger *slog.Logger) error {
	const attempts = 3
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		lastErr = producer.Ping(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}
		base := time.Duration(1<<uint(attempt)) * time.Second
		jitter := time.Duration(float64(base) * 0.25 * (2*rand.Float64() - 1)) // #nosec G404 -- retry jitter
		wait := base + jitter
		logger.Warn("kafka producer ping failed, retrying",
			slog.Int("attempt", attempt+1),
			slog.Int("max_attempts", attempts),
			slog.Duration("backoff", wait),
			slog.String("error", lastErr.Error()),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("kafka ping: context canceled during retry: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("kafka producer ping failed after %d attempts: %w", attempts, lastErr)
}

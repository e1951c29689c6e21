package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/pystore/catalog/internal/cache"
	"github.com/pystore/catalog/internal/config"
	"github.com/pystore/catalog/internal/event"
	handler "github.com/pystore/catalog/internal/handler/http"
	"github.com/pystore/catalog/internal/image"
	"github.com/pystore/catalog/internal/repository/postgres"
	"github.com/pystore/catalog/internal/service"
	"github.com/pystore/catalog/migrations"
	"github.com/pystore/catalog/pkg/database"
	"github.com/pystore/catalog/pkg/health"
	pkgkafka "github.com/pystore/catalog/pkg/kafka"
	"github.com/pystore/catalog/pkg/tracing"
)

// App wires together all dependencies and runs the catalog service.
type App struct {
	cfg             *config.Config
	logger          *slog.Logger
	db              *database.Manager
	redisClient     *redis.Client
	producer        *pkgkafka.Producer
	productService  *service.ProductService
	httpServer      *http.Server
	tracingShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
// An unreachable store does not fail startup: the service comes up degraded
// and reconnects on the first request that needs the store.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	// Optional OpenTelemetry tracing.
	if cfg.OTELEnabled {
		tracingCfg := tracing.DefaultConfig("catalog")
		tracingCfg.Enabled = true
		tracingCfg.Environment = cfg.Environment
		tracingCfg.OTLPEndpoint = cfg.OTELEndpoint
		tracingCfg.SampleRate = cfg.OTELSampleRate
		shutdown, err := tracing.InitTracer(ctx, tracingCfg)
		if err != nil {
			return nil, fmt.Errorf("init tracer: %w", err)
		}
		a.tracingShutdown = shutdown
		logger.Info("opentelemetry tracing initialized", slog.String("endpoint", cfg.OTELEndpoint))
	}

	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	// PostgreSQL connection manager.
	pgCfg := database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
	}
	a.db = database.NewManager(pgCfg, logger)

	if err := a.db.Connect(ctx); err != nil {
		logger.Warn("store unreachable at startup, continuing degraded",
			slog.String("host", cfg.PostgresHost),
			slog.Int("port", cfg.PostgresPort),
			slog.String("error", err.Error()),
		)
	} else {
		logger.Info("connected to PostgreSQL",
			slog.String("host", cfg.PostgresHost),
			slog.Int("port", cfg.PostgresPort),
			slog.String("database", cfg.PostgresDB),
		)

		db, err := a.db.Handle(ctx)
		if err == nil {
			if err := database.RunMigrations(ctx, db, migrations.FS, logger); err != nil {
				a.db.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
			logger.Info("database migrations completed")
		}

		if pool := a.db.Pool(); pool != nil {
			prometheus.MustRegister(database.NewPoolStatsCollector(pool, "catalog"))
		}
	}

	// Optional Kafka producer for domain events.
	var eventProducer *event.Producer
	if cfg.KafkaEnabled {
		kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
		a.producer = pkgkafka.NewProducer(kafkaCfg, logger)
		eventProducer = event.NewProducer(a.producer, logger)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}

	// Optional Redis read cache.
	var readCache *cache.Cache
	if cfg.RedisEnabled {
		redisCfg := database.RedisConfig{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}
		client, err := database.NewRedisClient(ctx, redisCfg)
		if err != nil {
			logger.Warn("redis unreachable, continuing without read cache",
				slog.String("error", err.Error()),
			)
		} else {
			a.redisClient = client
			readCache = cache.New(client, time.Duration(cfg.CacheTTLSecs)*time.Second, logger)
			logger.Info("redis read cache initialized",
				slog.String("addr", redisCfg.Addr()),
			)
		}
	}

	// Build the dependency graph.
	repo := postgres.NewProductRepository(a.db)
	resolver := image.NewResolver(image.ParseMode(cfg.DeploymentMode), cfg.BaseURL())
	a.productService = service.NewProductService(repo, eventProducer, resolver, readCache, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return a.db.Ping(ctx)
	})
	if a.producer != nil {
		healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
			return a.producer.Ping(ctx)
		})
	}
	if a.redisClient != nil {
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return a.redisClient.Ping(ctx).Err()
		})
	}

	// HTTP router.
	router := handler.NewRouter(a.productService, healthHandler, handler.RouterConfig{
		PprofAllowedCIDRs: cfg.PprofAllowedCIDRs,
		CacheMaxAge:       cfg.CacheTTLSecs,
	}, logger)

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return a, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	a.scheduleIndexes(ctx)

	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// scheduleIndexes creates the store indexes in the background after a short
// delay so index creation never blocks startup or competes with the first
// requests. Failures are logged and dropped: the indexes only speed queries
// up, and the next restart retries.
func (a *App) scheduleIndexes(ctx context.Context) {
	delay := time.Duration(a.cfg.IndexDelaySeconds) * time.Second

	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		indexCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := a.productService.EnsureIndexes(indexCtx); err != nil {
			a.logger.Warn("failed to ensure store indexes",
				slog.String("error", err.Error()),
			)
			return
		}
		a.logger.Info("store indexes ensured")
	}()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	// Graceful HTTP server shutdown with a 10-second deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}

	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}

	a.db.Close()

	if a.tracingShutdown != nil {
		if err := a.tracingShutdown(shutdownCtx); err != nil {
			a.logger.Error("tracing shutdown error", slog.String("error", err.Error()))
		}
	}

	a.logger.Info("application shutdown complete")
	return nil
}

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/spokeworks/bikeshop/internal/auth"
	"github.com/spokeworks/bikeshop/internal/config"
	"github.com/spokeworks/bikeshop/internal/event"
	handler "github.com/spokeworks/bikeshop/internal/handler/http"
	"github.com/spokeworks/bikeshop/internal/provider"
	"github.com/spokeworks/bikeshop/internal/provider/card"
	mockprovider "github.com/spokeworks/bikeshop/internal/provider/mock"
	"github.com/spokeworks/bikeshop/internal/repository/postgres"
	redisrepo "github.com/spokeworks/bikeshop/internal/repository/redis"
	"github.com/spokeworks/bikeshop/internal/service"
	"github.com/spokeworks/bikeshop/migrations"
	"github.com/spokeworks/bikeshop/pkg/database"
	"github.com/spokeworks/bikeshop/pkg/health"
	"github.com/spokeworks/bikeshop/pkg/httpclient"
	pkgkafka "github.com/spokeworks/bikeshop/pkg/kafka"
	"github.com/spokeworks/bikeshop/pkg/middleware"
	"github.com/spokeworks/bikeshop/pkg/tracing"
)

// App wires together all dependencies and runs the shop backend.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redisClient    *redis.Client
	producer       *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "bikeshop",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.TracingEndpoint,
		SampleRate:     cfg.TracingSample,
		Enabled:        cfg.TracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize PostgreSQL connection pool.
	pgCfg := cfg.Postgres()
	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", pgCfg.Host),
		slog.Int("port", pgCfg.Port),
		slog.String("database", pgCfg.DBName),
	)

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Initialize Redis (carts and checkout snapshots).
	redisClient, err := database.NewRedisClient(ctx, cfg.Redis())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis",
		slog.String("host", cfg.RedisHost),
		slog.Int("port", cfg.RedisPort),
	)

	// Initialize Kafka producer.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Build the dependency graph.
	cartRepo := redisrepo.NewCartRepository(redisClient, cfg.CartTTL)
	snapshotRepo := redisrepo.NewSnapshotRepository(redisClient, cfg.CheckoutSnapshotTTL)
	couponRepo := postgres.NewCouponRepository(pool)
	shippingRepo := postgres.NewShippingSettingsRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	paymentRepo := postgres.NewPaymentRepository(pool)

	eventProducer := event.NewProducer(producer, logger)

	paymentProvider, err := newPaymentProvider(cfg, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("payment provider initialized", slog.String("provider", cfg.PaymentProvider))

	cartService := service.NewCartService(cartRepo, eventProducer, logger, cfg.CartTTL)
	couponService := service.NewCouponService(couponRepo, cartRepo, eventProducer, logger)
	shippingService := service.NewShippingService(shippingRepo, logger, cfg.ShippingCacheTTL)
	checkoutService := service.NewCheckoutService(
		snapshotRepo,
		cartRepo,
		couponRepo,
		shippingService,
		eventProducer,
		logger,
		cfg.CheckoutSnapshotTTL,
	)
	orderService := service.NewOrderService(
		orderRepo,
		paymentRepo,
		couponRepo,
		checkoutService,
		cartService,
		paymentProvider,
		eventProducer,
		logger,
	)

	verifier := auth.NewVerifier(cfg.JWTSecret)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.Register("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthHandler.Register("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})

	// HTTP router.
	router := handler.NewRouter(handler.RouterDeps{
		Cart:          cartService,
		Coupons:       couponService,
		Shipping:      shippingService,
		Checkout:      checkoutService,
		Orders:        orderService,
		Health:        healthHandler,
		TokenValidate: verifier.Validate,
		Logger:        logger,
		PprofCIDRs:    cfg.PprofCIDRs,
		CORS:          middleware.DefaultCORSConfig(),
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redisClient:    redisClient,
		producer:       producer,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// newPaymentProvider selects the payment provider implementation. The card
// provider runs its calls through a circuit breaker so a struggling provider
// degrades checkout gracefully instead of piling up timeouts.
func newPaymentProvider(cfg *config.Config, logger *slog.Logger) (provider.Provider, error) {
	switch cfg.PaymentProvider {
	case "card":
		baseClient := httpclient.New(httpclient.Config{
			Timeout:         10 * time.Second,
			MaxRetries:      3,
			RetryWaitMin:    500 * time.Millisecond,
			RetryWaitMax:    5 * time.Second,
			MaxConnsPerHost: 100,
		})
		cbClient := httpclient.NewCircuitBreakerClient(baseClient, httpclient.CircuitBreakerConfig{
			Name:         "card-provider",
			MaxRequests:  3,
			Interval:     60 * time.Second,
			Timeout:      30 * time.Second,
			FailureRatio: 0.6,
			MinRequests:  5,
		}, logger)
		return card.New(card.Config{
			BaseURL: cfg.CardAPIBaseURL,
			APIKey:  cfg.CardAPIKey,
		}, cbClient, logger), nil
	case "mock":
		return mockprovider.NewProvider(), nil
	default:
		return nil, fmt.Errorf("unknown payment provider: %q", cfg.PaymentProvider)
	}
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
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

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka producer
// 4. Redis client and PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if err := a.redisClient.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/chygoz/storefront/internal/backend"
	"github.com/chygoz/storefront/internal/config"
	"github.com/chygoz/storefront/internal/event"
	handler "github.com/chygoz/storefront/internal/handler/http"
	"github.com/chygoz/storefront/internal/service"
	"github.com/chygoz/storefront/internal/storage"
	"github.com/chygoz/storefront/internal/storage/memory"
	pgstorage "github.com/chygoz/storefront/internal/storage/postgres"
	"github.com/chygoz/storefront/internal/storage/postgres/migrations"
	redisstorage "github.com/chygoz/storefront/internal/storage/redis"
	"github.com/chygoz/storefront/pkg/database"
	"github.com/chygoz/storefront/pkg/health"
	"github.com/chygoz/storefront/pkg/httpclient"
	pkgkafka "github.com/chygoz/storefront/pkg/kafka"
	"github.com/chygoz/storefront/pkg/middleware"
	"github.com/chygoz/storefront/pkg/tracing"
)

const serviceName = "cart-service"

// App wires together all dependencies and runs the cart service.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	rdb       *redis.Client
	pool      *pgxpool.Pool
	janitor   staleDeleter
	publisher *event.CartPublisher

	tracerShutdown tracing.ShutdownFunc
	httpServer     *http.Server

	// bgCtx bounds goroutines started on behalf of the router and janitor.
	bgCtx    context.Context
	bgCancel context.CancelFunc
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	bgCtx, bgCancel := context.WithCancel(context.Background())
	a := &App{cfg: cfg, logger: logger, bgCtx: bgCtx, bgCancel: bgCancel}

	if err := a.init(ctx); err != nil {
		a.closeResources()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	shutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:  serviceName,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTELEndpoint,
		SampleRate:   cfg.OTELSampleRate,
		Enabled:      cfg.OTELEnabled,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	a.tracerShutdown = shutdown

	healthHandler := health.NewHandler()

	st, err := a.newStorage(ctx, healthHandler)
	if err != nil {
		return err
	}

	transport, err := a.newTransport(healthHandler)
	if err != nil {
		return err
	}
	a.publisher = event.NewCartPublisher(transport, logger)

	orders := a.newOrderClient()

	limits := service.DefaultLimits()
	limits.MaxQuantityPerItem = cfg.MaxQuantityPerItem
	limits.MaxItemsPerCart = cfg.MaxItemsPerCart
	cartService := service.NewCartService(st, a.publisher, orders, limits, logger)

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins
	corsCfg.Environment = cfg.Environment

	router := handler.NewRouter(a.bgCtx, cartService, healthHandler, logger, handler.RouterConfig{
		ServiceName:    "cart",
		BaseDomain:     cfg.BaseDomain,
		CORS:           corsCfg,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		RequestTimeout: cfg.RequestTimeout,
		PprofCIDRs:     cfg.PprofAllowedCIDRs,
	})

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return nil
}

// newStorage connects the configured storage backend and registers its
// readiness check.
func (a *App) newStorage(ctx context.Context, h *health.Handler) (storage.Storage, error) {
	cfg, logger := a.cfg, a.logger

	switch cfg.StorageBackend {
	case config.StorageRedis:
		rdb, err := database.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.rdb = rdb
		h.Register("redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
		logger.Info("connected to Redis",
			slog.String("addr", cfg.Redis.Addr),
			slog.Int("db", cfg.Redis.DB),
		)
		return redisstorage.New(rdb, cfg.CartTTLDuration()), nil

	case config.StoragePostgres:
		pool, err := database.NewPostgresPool(ctx, &cfg.Postgres, logger)
		if err != nil {
			return nil, err
		}
		a.pool = pool
		logger.Info("connected to PostgreSQL",
			slog.String("host", cfg.Postgres.Host),
			slog.Int("port", cfg.Postgres.Port),
			slog.String("database", cfg.Postgres.DBName),
		)

		if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
			return nil, err
		}
		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, serviceName); err != nil {
			logger.Warn("failed to register pool metrics", slog.String("error", err.Error()))
		}
		database.SetSlowQueryLogging(200*time.Millisecond, logger)

		h.Register("postgres", func(ctx context.Context) error {
			return pool.Ping(ctx)
		})
		st := pgstorage.New(pool)
		a.janitor = st
		return st, nil

	default:
		logger.Warn("using in-memory cart storage; carts are lost on restart")
		return memory.New(), nil
	}
}

// newTransport connects the configured event broker and registers its
// readiness check.
func (a *App) newTransport(h *health.Handler) (event.Transport, error) {
	cfg, logger := a.cfg, a.logger

	switch cfg.EventBroker {
	case config.BrokerKafka:
		producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		h.Register("kafka", producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
		return producer, nil

	case config.BrokerRabbitMQ:
		rmq, err := event.DialRabbitMQ(cfg.RabbitMQURL)
		if err != nil {
			return nil, err
		}
		h.Register("rabbitmq", rmq.Ping)
		logger.Info("rabbitmq transport initialized", slog.String("exchange", event.EventsExchange))
		return rmq, nil

	default:
		logger.Warn("event publishing disabled")
		return event.NoopTransport{}, nil
	}
}

// newOrderClient builds the breaker-wrapped order API client. Without
// ORDER_API_URL checkout is disabled and reports the order service as
// unavailable.
func (a *App) newOrderClient() service.OrderSubmitter {
	cfg := a.cfg
	if cfg.OrderAPIURL == "" {
		a.logger.Warn("ORDER_API_URL not set, checkout disabled")
		return nil
	}

	baseClient := httpclient.New(httpclient.Config{
		Timeout:         cfg.OrderAPITimeout,
		MaxRetries:      2,
		RetryWaitMin:    200 * time.Millisecond,
		RetryWaitMax:    2 * time.Second,
		MaxConnsPerHost: 50,
	})
	cbCfg := httpclient.DefaultCircuitBreakerConfig("order-api")
	cbCfg.MaxRequests = cfg.CBMaxRequests
	cbCfg.Timeout = cfg.CBTimeout
	cbCfg.FailureRatio = cfg.CBFailureRatio
	cbCfg.MinRequests = cfg.CBMinRequests
	cbClient := httpclient.NewCircuitBreakerClient(baseClient, cbCfg, a.logger)

	a.logger.Info("order client initialized",
		slog.String("url", cfg.OrderAPIURL),
		slog.Uint64("cb_min_requests", uint64(cbCfg.MinRequests)),
	)
	return backend.NewOrderClient(cbClient, cfg.OrderAPIURL, a.logger)
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	if a.janitor != nil {
		go runStaleCartJanitor(a.bgCtx, a.janitor, a.cfg.CartTTLDuration(), a.cfg.StaleCartSweep, a.logger)
	}

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		a.closeResources()
		return err
	}

	return a.Shutdown()
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

	a.closeResources()

	a.logger.Info("application shutdown complete")
	return nil
}

// closeResources releases everything init may have opened, in reverse order.
func (a *App) closeResources() {
	a.bgCancel()

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Error("event transport close error", slog.String("error", err.Error()))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}
	if a.tracerShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		}
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/cimillas/seat-inventory/internal/app"
	"github.com/cimillas/seat-inventory/internal/clock"
	"github.com/cimillas/seat-inventory/internal/config"
	"github.com/cimillas/seat-inventory/internal/storage/memory"
	"github.com/cimillas/seat-inventory/internal/storage/postgres"
	"github.com/cimillas/seat-inventory/internal/storage/redisstore"
	"github.com/cimillas/seat-inventory/internal/storage/sqlite"
	transporthttp "github.com/cimillas/seat-inventory/internal/transport/http"
	"github.com/cimillas/seat-inventory/migrations"
)

const (
	startupTimeout  = 5 * time.Second
	shutdownTimeout = 10 * time.Second
	redisKeyPrefix  = "seat-inventory"
)

// inventoryBackend is what every inventory store provides.
type inventoryBackend interface {
	app.InventoryStore
	app.EventRepository
	app.InventorySource
}

func main() {
	addr := pflag.String("addr", "", "listen address, overrides PORT (e.g. :8080)")
	reconcileOnce := pflag.Bool("reconcile-once", false, "run one reconciliation sweep and exit")
	pflag.Parse()

	bootLogger, _ := zap.NewDevelopment()
	config.LoadDotEnv(bootLogger)

	cfg, err := config.Load()
	if err != nil {
		bootLogger.Fatal("load config", zap.Error(err))
	}

	logger, err := newLogger(cfg.LogDevelopment)
	if err != nil {
		bootLogger.Fatal("build logger", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, *addr, *reconcileOnce, logger); err != nil {
		logger.Fatal("inventory service failed", zap.Error(err))
	}
}

func newLogger(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg config.Config, addr string, reconcileOnce bool, logger *zap.Logger) error {
	startupCtx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	inventory, checks, closeInventory, err := openInventory(startupCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeInventory()

	analyticsStore, closeAnalytics, err := openAnalytics(cfg)
	if err != nil {
		return err
	}
	defer closeAnalytics()

	metrics, err := app.NewMetrics(otel.Meter(app.MeterName))
	if err != nil {
		return err
	}

	clk := clock.NewSystem()
	analyticsSvc := app.NewAnalyticsService(analyticsStore, clk, logger.Named("analytics"))
	syncer := app.NewSynchronizer(analyticsSvc, inventory,
		app.WithSyncAttempts(cfg.SyncMaxAttempts),
		app.WithSyncRetryDelay(cfg.SyncRetryDelay),
		app.WithSyncQueueSize(cfg.SyncQueueSize),
		app.WithSyncLogger(logger.Named("sync")),
		app.WithSyncMetrics(metrics),
	)

	if reconcileOnce {
		fixed, err := syncer.Reconcile(context.Background())
		if err != nil {
			return fmt.Errorf("reconcile: %w", err)
		}
		logger.Info("reconciliation finished", zap.Int("corrected", fixed))
		return nil
	}

	bookingSvc := app.NewBookingService(inventory, syncer, clk,
		app.WithMaxAttempts(cfg.BookingMaxAttempts),
		app.WithBackoff(cfg.BookingBackoff),
		app.WithBookingLogger(logger.Named("booking")),
		app.WithBookingMetrics(metrics),
	)
	eventSvc := app.NewEventService(inventory, syncer, clk, logger.Named("events"))

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	syncDone := make(chan struct{})
	go func() {
		defer close(syncDone)
		_ = syncer.Run(stopCtx, cfg.ReconcileInterval)
	}()

	var handler http.Handler = transporthttp.NewMux(transporthttp.Services{
		Events:       eventSvc,
		Booking:      bookingSvc,
		Analytics:    analyticsSvc,
		Reconciler:   syncer,
		HealthChecks: checks,
		Logger:       logger.Named("http"),
	})
	if cfg.RateLimitRPS > 0 {
		handler = transporthttp.NewRateLimiter(stopCtx, cfg.RateLimitRPS, cfg.RateLimitBurst).Middleware(handler)
	}
	handler = transporthttp.RequestLogger(transporthttp.CORS(cfg.CORSOrigins, handler), logger.Named("http"))

	if addr == "" {
		addr = ":" + cfg.Port
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("inventory service listening",
		zap.String("addr", addr),
		zap.String("inventory_backend", cfg.InventoryBackend),
		zap.String("analytics_backend", cfg.AnalyticsBackend),
	)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
		}
		stop()
	case <-stopCtx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server shutdown error", zap.Error(err))
	}
	<-syncDone
	if n := syncer.Pending(); n > 0 {
		logger.Warn("analytics updates left for the next reconciliation", zap.Int("pending", n))
	}
	logger.Info("server stopped")
	return nil
}

func openInventory(ctx context.Context, cfg config.Config, logger *zap.Logger) (inventoryBackend, map[string]transporthttp.HealthCheck, func(), error) {
	switch cfg.InventoryBackend {
	case config.BackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect to db: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("db ping: %w", err)
		}
		applied, err := migrations.Apply(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("apply migrations: %w", err)
		}
		if len(applied) > 0 {
			logger.Info("migrations applied", zap.Strings("files", applied))
		}
		checks := map[string]transporthttp.HealthCheck{"postgres": pool.Ping}
		return postgres.NewInventoryRepository(pool), checks, pool.Close, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store := redisstore.NewInventoryStore(client, redisKeyPrefix)
		if err := store.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		checks := map[string]transporthttp.HealthCheck{"redis": store.Ping}
		return store, checks, func() { _ = client.Close() }, nil

	default:
		logger.Warn("using in-memory inventory, data is lost on restart")
		return memory.NewInventoryStore(), nil, func() {}, nil
	}
}

func openAnalytics(cfg config.Config) (app.AnalyticsStore, func(), error) {
	if cfg.AnalyticsBackend == config.BackendSQLite {
		store, err := sqlite.Open(cfg.AnalyticsSQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open analytics store: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	}
	return memory.NewAnalyticsStore(), func() {}, nil
}

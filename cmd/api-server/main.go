package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/NaByeonggil/clinic-care-coordination/internal/api"
	"github.com/NaByeonggil/clinic-care-coordination/internal/appointment"
	"github.com/NaByeonggil/clinic-care-coordination/internal/catalog"
	"github.com/NaByeonggil/clinic-care-coordination/internal/config"
	"github.com/NaByeonggil/clinic-care-coordination/internal/db"
	"github.com/NaByeonggil/clinic-care-coordination/internal/inventory"
	"github.com/NaByeonggil/clinic-care-coordination/internal/notification"
	"github.com/NaByeonggil/clinic-care-coordination/internal/observability/metrics"
	"github.com/NaByeonggil/clinic-care-coordination/internal/prescription"
	redisclient "github.com/NaByeonggil/clinic-care-coordination/internal/redis"
	"github.com/NaByeonggil/clinic-care-coordination/internal/workflow"
)

const version = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("version", version),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	logger.Info("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("error closing redis", zap.Error(err))
		}
	}()
	logger.Info("connected to Redis")

	m := metrics.New(nil)

	apptRepo := appointment.NewPgRepository(pgPool)
	rxRepo := prescription.NewPgRepository(pgPool)
	notifRepo := notification.NewPgRepository(pgPool)
	dir := catalog.NewPgCatalog(pgPool)
	oracle := inventory.NewPgOracle(pgPool)
	locker := redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)

	apptSvc := appointment.NewService(apptRepo, dir, locker, logger)
	rxSvc := prescription.NewService(rxRepo, apptRepo, dir, cfg.DefaultValidityDays, logger)

	dispatcher := notification.NewDispatcher(notifRepo, notification.DispatcherConfig{
		RetryInterval: cfg.NotifyRetryInterval,
		MaxRetries:    cfg.NotifyMaxRetries,
		QueueSize:     cfg.NotifyQueueSize,
	}, logger, m)
	dispatcher.Start()
	defer dispatcher.Stop()

	wf := workflow.New(apptSvc, rxSvc, dispatcher, notifRepo, oracle, m, logger)

	router := api.NewRouter(api.RouterConfig{
		Workflow: wf,
		PgPool:   pgPool,
		Redis:    rdb,
		Metrics:  m,
		Logger:   logger,
		Env:      cfg.Env,
		Version:  version,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("http server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	logger.Info("api-server stopped")
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "prod" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

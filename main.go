package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"factory-monitor/internal/activity/application"
	activity "factory-monitor/internal/activity/domain"
	"factory-monitor/internal/activity/infrastructure/memory"
	"factory-monitor/internal/activity/infrastructure/redisguard"
	"factory-monitor/internal/activity/infrastructure/sqlstore"
	activityhttp "factory-monitor/internal/activity/interfaces/http"
	analyticsapp "factory-monitor/internal/analytics/application"
	"factory-monitor/internal/analytics/domain/reconstruction"
	analyticshttp "factory-monitor/internal/analytics/interfaces/http"
	apihttp "factory-monitor/internal/api/http"
	"factory-monitor/internal/api/httpx"
	"factory-monitor/internal/config"
	"factory-monitor/internal/eventing"
	"factory-monitor/internal/observability/logging"
	"factory-monitor/internal/observability/metrics"
	"factory-monitor/internal/seed"
)

const shutdownTimeout = 10 * time.Second

type store interface {
	activity.EventStore
	activity.EntityRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, "factory-monitor")
	if err != nil {
		_, _ = os.Stderr.WriteString("logger init error: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal("store init error", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer closeStore()

	metrics.Init(st, logger)

	bus := eventing.NewInMemoryBus()
	application.WireIngestObservers(bus, logger)

	ingestOpts := []application.IngestOption{
		application.WithPublisher(bus),
		application.WithDedupTolerance(cfg.DedupTolerance),
		application.WithStoreTimeout(cfg.StoreTimeout),
	}
	if cfg.RedisAddr != "" {
		client := redisguard.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer func() { _ = client.Close() }()
		guard, err := redisguard.New(client, redisguard.WithTTL(cfg.FingerprintTTL))
		if err != nil {
			logger.Fatal("fingerprint guard error", zap.Error(err))
		}
		ingestOpts = append(ingestOpts, application.WithFingerprintGuard(guard))
		logger.Info("fingerprint guard enabled", zap.String("redis_addr", cfg.RedisAddr))
	}
	ingestService, err := application.NewIngestService(st, systemClock{}, logger, ingestOpts...)
	if err != nil {
		logger.Fatal("ingest service error", zap.Error(err))
	}

	mode, err := reconstruction.ParseMode(cfg.ProductCountMode)
	if err != nil {
		logger.Fatal("reconstruction mode error", zap.Error(err))
	}
	engine, err := reconstruction.NewEngine(mode)
	if err != nil {
		logger.Fatal("reconstruction engine error", zap.Error(err))
	}
	metricsOpts := []analyticsapp.Option{
		analyticsapp.WithQueryTimeout(cfg.StoreTimeout),
		analyticsapp.WithReconstructionObserver(metrics.AddReconstructedEvents),
	}
	if cfg.MaxParallelism > 0 {
		metricsOpts = append(metricsOpts, analyticsapp.WithParallelism(cfg.MaxParallelism))
	}
	metricsService, err := analyticsapp.NewMetricsService(st, st, engine, systemClock{}, logger, metricsOpts...)
	if err != nil {
		logger.Fatal("metrics service error", zap.Error(err))
	}

	resp := httpx.NewResponder(logger, !cfg.IsProduction())
	routes := apihttp.Routes{
		Ingest:      activityhttp.NewIngestHandler(ingestService, resp),
		IngestBatch: activityhttp.NewBatchIngestHandler(ingestService, resp),
		Events: activityhttp.NewListEventsHandler(st, resp,
			activityhttp.WithLimits(cfg.EventsDefaultLimit, cfg.EventsMaxLimit),
			activityhttp.WithTimeout(cfg.StoreTimeout),
		),
		Metrics: analyticshttp.NewHandlers(metricsService, resp),
	}
	if cfg.SeedEnabled {
		seeder, err := seed.NewService(st, st, seed.NewGenerator(uint64(time.Now().UnixNano())), systemClock{}, logger)
		if err != nil {
			logger.Fatal("seed service error", zap.Error(err))
		}
		routes.Seed = seed.NewHandler(seeder, resp)
		logger.Warn("seed endpoints enabled")
	}
	router, err := apihttp.NewRouter(routes, st, cfg.StoreDriver, logger)
	if err != nil {
		logger.Fatal("router error", zap.Error(err))
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown error", zap.Error(err))
		}
	}()

	logger.Info("http listening",
		zap.String("addr", cfg.HTTPAddr),
		zap.String("store_driver", cfg.StoreDriver),
		zap.String("product_count_mode", string(engine.Mode())),
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("http server error", zap.Error(err))
	}
	logger.Info("http server stopped")
}

func openStore(ctx context.Context, cfg config.Config) (store, func(), error) {
	var (
		dialect sqlstore.Dialect
		dsn     string
	)
	switch cfg.StoreDriver {
	case config.DriverMemory:
		return memory.NewStore(), func() {}, nil
	case config.DriverSQLite:
		dialect, dsn = sqlstore.SQLite, sqlstore.SQLiteDSN(cfg.SQLitePath)
	default:
		dialect, dsn = sqlstore.Postgres, cfg.DatabaseURL
	}

	openCtx, cancel := ctx, context.CancelFunc(func() {})
	if cfg.StoreTimeout > 0 {
		openCtx, cancel = context.WithTimeout(ctx, cfg.StoreTimeout)
	}
	defer cancel()
	db, err := sqlstore.Open(openCtx, dialect, dsn)
	if err != nil {
		return nil, nil, err
	}
	st := sqlstore.New(db, dialect)
	if err := st.EnsureSchema(openCtx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return st, func() { _ = db.Close() }, nil
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

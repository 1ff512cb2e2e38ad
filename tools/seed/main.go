// Command seed pushes generated activity to a running server through the batch ingest
// endpoint. Events reference the demo roster (W1..W6, S1..S6), which must already exist on
// the server: POST /seed/init creates it when the server runs with SEED_ENABLED=true.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"factory-monitor/internal/observability/logging"
	"factory-monitor/internal/seed"
)

type config struct {
	baseURL   string
	hours     int
	workers   int
	batchSize int
	seed      uint64
	timeout   time.Duration
	logLevel  string
}

func main() {
	cfg := parseConfig()

	logger, err := logging.New(cfg.logLevel, "console", "factory-seed")
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.hours <= 0 {
		logger.Fatal("hours must be > 0")
	}
	if cfg.workers <= 0 || cfg.workers > len(seed.DefaultWorkers) {
		logger.Fatal("workers out of range", zap.Int("max", len(seed.DefaultWorkers)))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := seed.NewClient(cfg.baseURL, cfg.timeout, logger)
	if err != nil {
		logger.Fatal("client error", zap.Error(err))
	}

	if err := client.CheckRoster(ctx); err != nil {
		logger.Fatal("roster check failed, start the server with SEED_ENABLED=true and POST /seed/init", zap.Error(err))
	}

	end := time.Now().UTC()
	start := end.Add(-time.Duration(cfg.hours) * time.Hour)
	events := seed.NewGenerator(cfg.seed).Generate(seed.DefaultWorkers[:cfg.workers], seed.DefaultWorkstations, start, end)
	logger.Info("pushing events",
		zap.String("base_url", cfg.baseURL),
		zap.Int("events", len(events)),
		zap.Time("start", start),
		zap.Time("end", end),
	)

	result, err := client.Push(ctx, events, cfg.batchSize)
	if err != nil {
		logger.Fatal("push failed", zap.Error(err), zap.Int("success", result.Success))
	}
	logger.Info("push complete",
		zap.Int("success", result.Success),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("errors", result.Errors),
	)
	for _, item := range result.ErrorsList {
		logger.Warn("rejected event", zap.Int("index", item.Index), zap.String("error", item.Error))
	}
	if result.Errors > 0 {
		os.Exit(1)
	}
}

func parseConfig() config {
	var cfg config
	flag.StringVar(&cfg.baseURL, "base-url", envOr("FACTORY_BASE_URL", "http://localhost:8080"), "server base url")
	flag.IntVar(&cfg.hours, "hours", 8, "hours of history to generate, ending now")
	flag.IntVar(&cfg.workers, "workers", len(seed.DefaultWorkers), "number of demo workers to simulate")
	flag.IntVar(&cfg.batchSize, "batch-size", seed.BatchSize, "events per batch request")
	flag.Uint64Var(&cfg.seed, "seed", uint64(time.Now().UnixNano()), "random seed for reproducibility")
	flag.DurationVar(&cfg.timeout, "timeout", 30*time.Second, "per request timeout")
	flag.StringVar(&cfg.logLevel, "log-level", "info", "log level")
	flag.Parse()
	return cfg
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

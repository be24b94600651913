package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carga-pendencia/cnpj-queue/config"
	"github.com/carga-pendencia/cnpj-queue/internal/adapters/batchworker"
	"github.com/carga-pendencia/cnpj-queue/internal/adapters/reaper"
	"github.com/carga-pendencia/cnpj-queue/internal/adapters/streamworker"
	"github.com/carga-pendencia/cnpj-queue/internal/collector"
	"github.com/carga-pendencia/cnpj-queue/internal/data/redisqueue"
	"github.com/carga-pendencia/cnpj-queue/internal/observability/statsd"
)

// NewBroker builds the Redis-backed dispatch queue and cancellation
// registry. Both ports share one adapter because they share the broker
// connection.
func NewBroker(client redis.UniversalClient, cfg config.RedisConfig) (*redisqueue.Queue, error) {
	return redisqueue.New(redisqueue.Options{
		Client:        client,
		DispatchKey:   cfg.DispatchKey,
		SuppressedKey: cfg.SuppressedKey,
	})
}

// NewCollector builds the chromedp portal collector. Development mode runs
// the browser headful for debugging.
func NewCollector(cfg config.CollectorConfig, isDev bool) (*collector.PortalCollector, error) {
	return collector.NewPortalCollector(collector.PortalConfig{
		URL:         cfg.PortalURL,
		UserAgent:   cfg.UserAgent,
		Headless:    cfg.Headless && !isDev,
		MaxParallel: cfg.MaxParallel,
	})
}

// StreamWorkerConfig contains configuration for the streaming worker.
type StreamWorkerConfig struct {
	DB         *sql.DB
	Logger     *slog.Logger
	Broker     *redisqueue.Queue
	Collector  collector.Collector
	Config     config.StreamWorkerConfig
	JobTimeout time.Duration
	Metrics    statsd.Sink
}

// RunStreamWorker starts the streaming worker service.
func RunStreamWorker(ctx context.Context, cfg StreamWorkerConfig) error {
	runner, err := streamworker.NewRunner(streamworker.RunnerOptions{
		DB:          cfg.DB,
		Logger:      cfg.Logger,
		Queue:       cfg.Broker,
		Registry:    cfg.Broker,
		Collector:   cfg.Collector,
		Concurrency: cfg.Config.Concurrency,
		JobTimeout:  cfg.JobTimeout,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create stream worker: %w", err)
	}

	return runner.Run(ctx)
}

// BatchWorkerConfig contains configuration for the batch worker.
type BatchWorkerConfig struct {
	DB         *sql.DB
	Logger     *slog.Logger
	Broker     *redisqueue.Queue
	Collector  collector.Collector
	Config     config.BatchWorkerConfig
	JobTimeout time.Duration
	Metrics    statsd.Sink
}

// RunBatchWorker starts the batch worker service.
func RunBatchWorker(ctx context.Context, cfg BatchWorkerConfig) error {
	runner, err := batchworker.NewRunner(batchworker.RunnerOptions{
		DB:         cfg.DB,
		Logger:     cfg.Logger,
		Config:     cfg.Config,
		Queue:      cfg.Broker,
		Registry:   cfg.Broker,
		Collector:  cfg.Collector,
		JobTimeout: cfg.JobTimeout,
		Metrics:    cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create batch worker: %w", err)
	}

	return runner.Run(ctx)
}

// ReaperConfig contains configuration for reaper.
type ReaperConfig struct {
	DB      *sql.DB
	Logger  *slog.Logger
	Config  config.ReaperConfig
	Metrics statsd.Sink
}

// RunReaper starts the reaper service.
func RunReaper(ctx context.Context, cfg ReaperConfig) error {
	runner, err := reaper.NewRunner(reaper.RunnerOptions{
		DB:      cfg.DB,
		Config:  cfg.Config,
		Logger:  cfg.Logger,
		Metrics: cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create reaper runner: %w", err)
	}

	return runner.Run(ctx)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ulroy-ai/ulroy-go"
	"github.com/ulroy-ai/ulroy-go/internal/cache"
	"github.com/ulroy-ai/ulroy-go/internal/config"
	"github.com/ulroy-ai/ulroy-go/internal/database/postgresql"
	"github.com/ulroy-ai/ulroy-go/internal/events"
	"github.com/ulroy-ai/ulroy-go/internal/indexing"
	"github.com/ulroy-ai/ulroy-go/internal/storage"
	"github.com/ulroy-ai/ulroy-go/internal/taskstore"
	"github.com/ulroy-ai/ulroy-go/internal/telemetry"
)

const serviceName = "indexer-worker"

func main() {
	logger := telemetry.NewLogger(os.Stdout, os.Getenv("INDEX_WORKER_DEBUG") == "true")
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("Application terminated with error", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadWorker(os.Getenv)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger.Info("Starting indexer worker", "env", cfg.Env, "mirror", cfg.IndexMirror)

	if cfg.OTELCollectorURL != "" {
		shutdown, err := telemetry.InitTracer(ctx, serviceName, cfg.OTELCollectorURL)
		if err != nil {
			return fmt.Errorf("failed to init tracer: %w", err)
		}
		defer func() {
			flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer flushCancel()
			if err := shutdown(flushCtx); err != nil {
				logger.Error("Tracer shutdown error", "error", err)
			}
		}()
	}

	logger.Info("Connecting to database")
	dbPool, err := postgresql.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	logger.Info("Connecting to event bus", "endpoint", cfg.NatsURL)
	bus, err := events.NewNATSBus(cfg.NatsURL, serviceName, cfg.HandlerTimeout(), logger)
	if err != nil {
		return fmt.Errorf("failed to connect to nats: %w", err)
	}

	var (
		tasks taskstore.Store
		rdb   *cache.RedisClient
	)
	if cfg.RedisAddr != "" {
		logger.Info("Connecting to Redis cache", "addr", cfg.RedisAddr)
		rdb, err = cache.NewRedisClient(ctx, cache.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer rdb.Close()
		tasks = taskstore.NewRedisStore(rdb, cfg.TaskTTL)
	} else {
		logger.Warn("REDIS_ADDR not set, task ids are kept in memory and lost on restart")
		tasks = taskstore.NewMemoryStore(cfg.TaskTTL)
	}

	client, err := ulroy.New(cfg.UlroyAPIKey,
		ulroy.WithBaseURL(cfg.UlroyBaseURL),
		ulroy.WithTimeout(cfg.RequestTimeout),
		ulroy.WithLogger(logger.With("component", "ulroy")),
		ulroy.WithUserAgent(ulroy.DefaultUserAgent+" "+serviceName),
	)
	if err != nil {
		return err
	}
	primary := indexing.NewUlroyIndexer(client.Async(), tasks, cfg.WaitOptions(), logger)
	defer primary.Close()

	var opts []indexing.ServiceOption
	if cfg.S3Endpoint != "" {
		logger.Info("Connecting to object storage", "endpoint", cfg.S3Endpoint, "bucket", cfg.S3Bucket)
		blobs, err := storage.NewMinioProvider(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3UseSSL)
		if err != nil {
			return fmt.Errorf("failed to initialize MinIO provider: %w", err)
		}
		opts = append(opts, indexing.WithBlobStore(blobs, cfg.S3Bucket, 0))
	}
	if cfg.IndexMirror == config.MirrorTypesense {
		logger.Info("Mirroring documents to Typesense", "url", cfg.TypesenseURL)
		opts = append(opts, indexing.WithMirror(
			indexing.NewTypesenseIndexer(cfg.TypesenseKey, cfg.TypesenseURL, cfg.TypesensePrefix, logger),
		))
	}

	metrics := telemetry.NewMetrics()
	publisher := events.NewPublisher(bus, cfg.Events, logger)
	svc := indexing.NewService(primary, postgresql.New(dbPool), publisher, metrics, logger, opts...)

	reader := events.NewEventReader(bus, cfg.Events, logger)
	if err := reader.SubscribeToIndexDocumentEvents(svc.IndexDocument); err != nil {
		return fmt.Errorf("failed to subscribe to index events: %w", err)
	}
	if err := reader.SubscribeToDeleteDocumentEvents(svc.DeleteDocument); err != nil {
		return fmt.Errorf("failed to subscribe to delete events: %w", err)
	}

	logger.Info("Worker is running and listening for events...")

	app := &application{
		db:      dbPool,
		bus:     bus,
		indexer: svc,
		metrics: metrics,
		logger:  logger,
	}
	if rdb != nil {
		app.cache = rdb
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.mount(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Health server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("Shutting down worker...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Health server shutdown error", "error", err)
	}

	// Close blocks until the drain is over, so the deferred closes never
	// pull the database or task store from under a running handler.
	if err := bus.Close(); err != nil {
		logger.Error("NATS drain error", "error", err)
	}

	logger.Info("Shutdown complete.")
	return nil
}

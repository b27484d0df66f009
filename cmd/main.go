package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mansoorceksport/upload-server/internal/config"
	"github.com/mansoorceksport/upload-server/internal/domain"
	"github.com/mansoorceksport/upload-server/internal/logging"
	"github.com/mansoorceksport/upload-server/internal/metrics"
	"github.com/mansoorceksport/upload-server/internal/repository"
	"github.com/mansoorceksport/upload-server/internal/server"
	"github.com/mansoorceksport/upload-server/internal/service"
	"github.com/mansoorceksport/upload-server/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(cfg.Log.Level, cfg.Server.Environment)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("server stopped")
	_ = logger.Sync()
}

// run owns every resource it opens, so its deferred cleanups finish before main exits
func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelProvider, err := telemetry.Initialize(ctx, telemetry.Config{
		ServiceName:    cfg.OTEL.ServiceName,
		ServiceVersion: cfg.OTEL.ServiceVersion,
		Environment:    cfg.Server.Environment,
		OTLPEndpoint:   cfg.OTEL.Endpoint,
		URLPathPrefix:  cfg.OTEL.URLPath,
		OTLPHeaders:    cfg.OTEL.Headers,
		Enabled:        cfg.OTEL.Enabled,
	}, logger)
	if err != nil {
		logger.Warn("failed to initialize OpenTelemetry", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to flush telemetry", zap.Error(err))
		}
	}()

	metrics.Init()

	storage, err := repository.NewR2Repository(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize object storage: %w", err)
	}
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := storage.CheckBucket(checkCtx, cfg.Storage.Bucket); err != nil {
		// Not fatal: readiness keeps reporting until the bucket becomes reachable
		logger.Warn("object storage not reachable at startup", zap.Error(err))
	} else {
		logger.Info("object storage reachable", zap.String("bucket", cfg.Storage.Bucket))
	}
	cancel()

	uploadService, err := service.NewUploadService(storage, service.StorageConfig{
		Bucket:    cfg.Storage.Bucket,
		PublicURL: cfg.Storage.PublicURL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize upload service: %w", err)
	}

	var idempotencyStore domain.IdempotencyStore
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       0,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		idempotencyStore = repository.NewRedisIdempotencyStore(redisClient)
		logger.Info("redis connected", zap.String("addr", cfg.Redis.Addr))
	} else {
		logger.Info("REDIS_ADDR not set, idempotent replays disabled")
	}

	app := server.NewApp(server.AppDependencies{
		Config:           cfg,
		Logger:           logger,
		UploadService:    uploadService,
		BucketChecker:    storage,
		IdempotencyStore: idempotencyStore,
	})

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("env", cfg.Server.Environment))
		return app.Listen(":" + cfg.Server.Port)
	})
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down gracefully")
		return app.ShutdownWithTimeout(30 * time.Second)
	})

	return g.Wait()
}

package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/mansoorceksport/upload-server/internal/config"
	"github.com/mansoorceksport/upload-server/internal/domain"
	"github.com/mansoorceksport/upload-server/internal/handler"
	"github.com/mansoorceksport/upload-server/internal/metrics"
	"github.com/mansoorceksport/upload-server/internal/middleware"
	"github.com/mansoorceksport/upload-server/internal/telemetry"
	"go.uber.org/zap"
)

// AppDependencies holds the dependencies required to start the application
type AppDependencies struct {
	Config        *config.Config
	Logger        *zap.Logger
	UploadService domain.UploadService
	BucketChecker domain.BucketChecker
	// IdempotencyStore is optional; nil disables correlation ID replays
	IdempotencyStore domain.IdempotencyStore
}

// NewApp creates and configures the Fiber application with the given dependencies
func NewApp(deps AppDependencies) *fiber.App {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	uploadHandler := handler.NewUploadHandler(deps.UploadService, cfg.Server.MaxUploadSizeMB, logger)

	app := fiber.New(fiber.Config{
		AppName:               "Upload Server",
		BodyLimit:             int(cfg.Server.MaxUploadSizeMB*1024*1024) + 1024*1024, // room for multipart framing
		DisableStartupMessage: true,
		ErrorHandler:          newErrorHandler(logger, cfg.IsProduction()),
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if cfg.OTEL.Enabled {
		app.Use(telemetry.FiberMiddleware())
	}
	app.Use(middleware.RequestLogger(logger))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Correlation-ID, X-Request-ID",
		AllowMethods: "GET, POST, OPTIONS",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "upload-server",
		})
	})
	app.Get("/health/ready", readinessHandler(deps.BucketChecker, cfg.Storage.Bucket, logger))
	app.Get("/metrics", metrics.Handler())

	v1 := app.Group("/v1")

	uploads := v1.Group("/uploads")
	if cfg.JWT.Secret != "" {
		uploads.Use(middleware.VerifyToken(cfg.JWT.Secret))
	}
	if deps.IdempotencyStore != nil {
		uploads.Use(middleware.IdempotencyMiddleware(deps.IdempotencyStore, cfg.Redis.IdempotencyTTL, logger))
	}
	uploads.Post("/", uploadHandler.Upload)

	return app
}

func readinessHandler(checker domain.BucketChecker, bucket string, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if checker == nil {
			return c.JSON(fiber.Map{"status": "ready"})
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		if err := checker.CheckBucket(ctx, bucket); err != nil {
			logger.Warn("readiness check failed", zap.Error(err))
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "unavailable",
				"error":  "object storage unreachable",
			})
		}
		return c.JSON(fiber.Map{"status": "ready"})
	}
}

// newErrorHandler logs every error; in production 5xx details stay in the log only
func newErrorHandler(logger *zap.Logger, hideInternal bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var e *fiber.Error
		if errors.As(err, &e) {
			code = e.Code
		}
		logger.Error("request error",
			zap.Int("status", code),
			zap.String("path", c.Path()),
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Error(err),
		)
		message := err.Error()
		if hideInternal && code >= fiber.StatusInternalServerError {
			message = "internal server error"
		}
		return c.Status(code).JSON(fiber.Map{
			"success": false,
			"error":   message,
		})
	}
}

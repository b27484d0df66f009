package handler

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/upload-server/internal/domain"
	"github.com/mansoorceksport/upload-server/internal/metrics"
	"github.com/mansoorceksport/upload-server/internal/middleware"
	"github.com/mansoorceksport/upload-server/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const defaultContentType = "application/octet-stream"

// UploadHandler handles HTTP requests for file uploads
type UploadHandler struct {
	uploadService domain.UploadService
	maxUploadMB   int64
	logger        *zap.Logger
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(uploadService domain.UploadService, maxUploadMB int64, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{
		uploadService: uploadService,
		maxUploadMB:   maxUploadMB,
		logger:        logger,
	}
}

// Upload handles POST /v1/uploads
func (h *UploadHandler) Upload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "missing 'file' field in form data",
		})
	}

	folder := c.FormValue("folder")
	if folder == "" {
		folder = c.Query("folder", string(domain.FolderImages))
	}

	maxBytes := h.maxUploadMB * 1024 * 1024
	if fileHeader.Size > maxBytes {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"success": false,
			"error":   fmt.Sprintf("file size exceeds maximum of %dMB", h.maxUploadMB),
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "failed to open uploaded file",
		})
	}
	defer file.Close()

	contentType := fileHeader.Header.Get(fiber.HeaderContentType)
	if contentType == "" {
		contentType = defaultContentType
	}

	start := time.Now()
	result, err := h.uploadService.UploadFileToStorage(c.UserContext(), domain.UploadRequest{
		Folder:        domain.Folder(folder),
		FileName:      fileHeader.Filename,
		ContentType:   contentType,
		ContentStream: file,
	})

	folderLabel := "invalid"
	if f, err := domain.ParseFolder(folder); err == nil {
		folderLabel = string(f)
	}

	if err != nil {
		var validationErr *domain.ValidationError
		if errors.As(err, &validationErr) {
			metrics.UploadsTotal.WithLabelValues(folderLabel, metrics.OutcomeValidationError).Inc()
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   validationErr.Error(),
				"fields":  validationErr.Fields,
			})
		}

		metrics.UploadsTotal.WithLabelValues(folderLabel, metrics.OutcomeUploadError).Inc()
		h.logger.Error("upload failed",
			zap.String("folder", folder),
			zap.String("file_name", fileHeader.Filename),
			zap.String("user_id", middleware.GetUserID(c)),
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Error(err),
		)

		var uploadErr *domain.UploadError
		if errors.As(err, &uploadErr) {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"success": false,
				"error":   "failed to store file",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "failed to upload file",
		})
	}

	metrics.UploadsTotal.WithLabelValues(folderLabel, metrics.OutcomeSuccess).Inc()
	metrics.UploadedBytes.WithLabelValues(folderLabel).Add(float64(fileHeader.Size))
	metrics.UploadDuration.WithLabelValues(folderLabel).Observe(time.Since(start).Seconds())

	telemetry.SpanFromContext(c).SetAttributes(
		attribute.String("upload.key", result.Key),
		attribute.Int64("upload.size", fileHeader.Size),
	)

	h.logger.Info("file uploaded",
		zap.String("key", result.Key),
		zap.String("content_type", contentType),
		zap.Int64("size", fileHeader.Size),
		zap.String("user_id", middleware.GetUserID(c)),
		zap.Strings("roles", middleware.GetRoles(c)),
		zap.String("request_id", middleware.GetRequestID(c)),
	)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    result,
	})
}

package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/upload-server/internal/domain"
	"go.uber.org/zap"
)

const (
	CorrelationIDHeader   = "X-Correlation-ID"
	IdempotentReplyHeader = "X-Idempotent-Replay"
)

type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// IdempotencyMiddleware provides idempotency for POST/PATCH/PUT requests using X-Correlation-ID.
// A retried upload with the same correlation ID gets the original key and URL back
// instead of creating a second object.
func IdempotencyMiddleware(store domain.IdempotencyStore, ttl time.Duration, logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Only apply to mutating methods
		if c.Method() != fiber.MethodPost && c.Method() != fiber.MethodPatch && c.Method() != fiber.MethodPut {
			return c.Next()
		}

		correlationID := c.Get(CorrelationIDHeader)
		if correlationID == "" {
			return c.Next()
		}

		subject := GetUserID(c)
		if subject == "" {
			subject = "anonymous"
		}
		key := fmt.Sprintf("%s:%s", subject, correlationID)

		cached, ok, err := store.Get(c.UserContext(), key)
		if err != nil {
			// Cache outage must not block uploads
			logger.Warn("idempotency lookup failed", zap.String("key", key), zap.Error(err))
		}
		if ok {
			var resp cachedResponse
			if err := json.Unmarshal(cached, &resp); err == nil {
				c.Set(IdempotentReplyHeader, "true")
				c.Set(fiber.HeaderContentType, resp.ContentType)
				return c.Status(resp.Status).Send(resp.Body)
			}
			logger.Warn("discarding unreadable idempotency entry", zap.String("key", key))
		}

		if err := c.Next(); err != nil {
			return err
		}

		// Cache successful responses (2xx status codes)
		statusCode := c.Response().StatusCode()
		if statusCode < 200 || statusCode >= 300 || len(c.Response().Body()) == 0 {
			return nil
		}

		data, err := json.Marshal(cachedResponse{
			Status:      statusCode,
			ContentType: string(c.Response().Header.ContentType()),
			Body:        c.Response().Body(),
		})
		if err != nil {
			logger.Warn("failed to encode idempotent response", zap.Error(err))
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := store.Set(ctx, key, data, ttl); err != nil {
			logger.Warn("failed to store idempotent response", zap.String("key", key), zap.Error(err))
		}

		return nil
	}
}

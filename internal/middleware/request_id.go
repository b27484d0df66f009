package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/oklog/ulid/v2"
)

const requestIDKey = "requestid"

// RequestID tags every request with a sortable ULID, honoring an inbound X-Request-ID
func RequestID() fiber.Handler {
	return requestid.New(requestid.Config{
		Header:     fiber.HeaderXRequestID,
		ContextKey: requestIDKey,
		Generator: func() string {
			return ulid.Make().String()
		},
	})
}

// GetRequestID returns the ID assigned by RequestID
func GetRequestID(c *fiber.Ctx) string {
	id, _ := c.Locals(requestIDKey).(string)
	return id
}

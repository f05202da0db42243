package http

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/stashpoint/internal/pkg/logging"
)

// RequestIDLogMiddleware injects a per-request *slog.Logger carrying the
// Fiber request ID into the user context, so usecases and repositories log
// with it via logging.FromContext.
func RequestIDLogMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ridStr, _ := c.Locals("requestid").(string)
		if ridStr == "" {
			return c.Next()
		}

		// Build a request-scoped logger with the request ID baked in.
		reqLogger := slog.Default().With("request_id", ridStr)
		c.SetUserContext(logging.WithLogger(c.UserContext(), reqLogger))

		return c.Next()
	}
}

// LoggerFromCtx extracts the per-request slog.Logger from a context.
// Falls back to the default logger if none is set.
func LoggerFromCtx(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}

package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
)

// APIError is a structured error response.
type APIError struct {
	Status    int               `json:"status"`
	Code      string            `json:"code"`    // Error code: bad_request, not_found, internal_error, etc.
	Message   string            `json:"message"` // Human-readable message
	RequestID string            `json:"request_id,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"` // Per-field validation messages
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

// errValidation returns a 400 error listing every rejected field.
func errValidation(c *fiber.Ctx, fields map[string]string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(fiber.StatusBadRequest).JSON(APIError{
		Status:    fiber.StatusBadRequest,
		Code:      "bad_request",
		Message:   "invalid search parameters",
		RequestID: reqID,
		Errors:    fields,
	})
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, "not_found", msg)
}

// errTooManyRequests returns a 429 error.
func errTooManyRequests(c *fiber.Ctx) error {
	return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

// errUpstream maps a collaborator failure to 504 when the request ran out of
// time and to 500 otherwise. The cause is logged, never sent to the client.
func errUpstream(c *fiber.Ctx, err error) error {
	log := LoggerFromCtx(c.UserContext())
	if errors.Is(err, context.DeadlineExceeded) {
		log.Warn("request deadline exceeded", "error", err)
		return newError(c, fiber.StatusGatewayTimeout, "timeout", "the request took too long")
	}
	log.Error("request failed", "error", err)
	return errInternal(c, "internal server error")
}

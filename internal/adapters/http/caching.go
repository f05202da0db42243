package http

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control on GET responses that did not set
// one. Availability changes with every booking, so search responses are
// never stored by clients or proxies.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet || len(c.Response().Header.Peek(fiber.HeaderCacheControl)) > 0 {
			return err
		}

		path := strings.TrimSuffix(c.Path(), "/")
		var policy string
		switch {
		case path == "/api/v1/stashpoints":
			policy = "no-store"
		case strings.HasPrefix(path, "/api/v1/stashpoints/"):
			policy = "public, max-age=60"
		case path == "/metrics", path == "/healthcheck", strings.HasPrefix(path, "/v1/"):
			policy = "no-cache"
		case path == "/graphql":
			policy = "private, max-age=0"
		}

		if policy != "" {
			c.Set(fiber.HeaderCacheControl, policy)
		}
		return err
	}
}

// ETagMiddleware computes a weak ETag from the response body and answers
// 304 Not Modified when the client already holds it.
func ETagMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := c.Next(); err != nil {
			return err
		}

		if c.Method() != fiber.MethodGet || c.Response().StatusCode() != fiber.StatusOK {
			return nil
		}
		body := c.Response().Body()
		if len(body) == 0 {
			return nil
		}

		h := sha256.Sum256(body)
		etag := `W/"` + hex.EncodeToString(h[:8]) + `"`
		c.Set(fiber.HeaderETag, etag)

		if c.Get(fiber.HeaderIfNoneMatch) == etag {
			c.Status(fiber.StatusNotModified)
			c.Response().ResetBody()
		}
		return nil
	}
}

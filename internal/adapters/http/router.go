package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"

	"github.com/samirrijal/stashpoint/internal/pkg/metrics"
)

// RouterConfig tunes SetupRoutes.
type RouterConfig struct {
	RequestTimeout time.Duration
	// RateLimit is requests per minute per IP; 0 disables limiting.
	RateLimit int
}

// SetupRoutes registers all REST and GraphQL routes.
func SetupRoutes(app *fiber.App, deps *Dependencies, cfg RouterConfig) {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}

	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	if cfg.RateLimit > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        cfg.RateLimit,
			Expiration: 1 * time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: errTooManyRequests,
		}))
	}

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/healthcheck", HealthcheckHandler())
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// REST API v1
	v1 := app.Group("/api/v1")
	v1.Get("/stashpoints", timeout.NewWithContext(SearchStashpointsHandler(deps), cfg.RequestTimeout))
	v1.Get("/stashpoints/:id", timeout.NewWithContext(GetStashpointHandler(deps), cfg.RequestTimeout))
	if deps.Audit != nil {
		v1.Get("/audit/overbooked", timeout.NewWithContext(OverbookedHandler(deps), cfg.RequestTimeout))
	}

	// GraphQL
	app.Post("/graphql", timeout.NewWithContext(GraphQLHandler(deps), cfg.RequestTimeout))

	// API documentation (Swagger UI)
	SetupDocs(app)
}

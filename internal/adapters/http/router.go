package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/pedalnav/internal/pkg/metrics"
)

const requestTimeout = 15 * time.Second

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// Rate limiting: 600 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        600,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(CachingMiddleware())

	// Health & readiness, no timeout
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")
	withTimeout := func(h fiber.Handler) fiber.Handler { return timeout.NewWithContext(h, requestTimeout) }

	// Sessions
	v1.Get("/sessions", ListSessionsHandler(deps))
	v1.Post("/sessions", CreateSessionHandler(deps))
	v1.Get("/sessions/:id", GetSessionHandler(deps))
	v1.Delete("/sessions/:id", DeleteSessionHandler(deps))
	v1.Post("/sessions/:id/fixes", withTimeout(SubmitFixesHandler(deps)))
	v1.Put("/sessions/:id/viewport", withTimeout(SetViewportHandler(deps)))
	v1.Post("/sessions/:id/routes", withTimeout(RequestRoutesHandler(deps)))
	v1.Get("/sessions/:id/routes", GetRoutesHandler(deps))
	v1.Get("/sessions/:id/routes.geojson", RoutesGeoJSONHandler(deps))
	v1.Post("/sessions/:id/navigation", withTimeout(StartNavigationHandler(deps)))
	v1.Delete("/sessions/:id/navigation", withTimeout(StopNavigationHandler(deps)))

	// Map features
	features := v1.Group("/features", ETagMiddleware())
	features.Get("/", withTimeout(FeaturesHandler(deps)))
	features.Get("/nearby", withTimeout(NearbyFeaturesHandler(deps)))
	v1.Post("/features/community", withTimeout(AddCommunityPOIHandler(deps)))
	v1.Post("/features/warnings", withTimeout(AddWarningHandler(deps)))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app)

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/sessions/:id", websocket.New(WebSocketHandler(deps)))
}

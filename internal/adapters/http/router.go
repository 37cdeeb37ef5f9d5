package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/groundwatch/internal/pkg/metrics"
)

const (
	requestTimeout = 15 * time.Second
	// AI calls wait on the model; the client has its own deadline below this.
	aiRequestTimeout = 60 * time.Second
)

// legacyPredictSunset is when /api/gemini/predict stops being served.
var legacyPredictSunset = time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware(nil))
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		Next: func(c *fiber.Ctx) bool {
			// Map sockets are long-lived and health checks are frequent.
			return websocket.IsWebSocketUpgrade(c) || c.Path() == "/v1/health" || c.Path() == "/v1/ready"
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

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())
	app.Use(DeprecationMiddleware([]DeprecatedRoute{
		{Path: "/api/gemini/predict", SunsetDate: legacyPredictSunset, Alternative: "/v1/predictions"},
	}))

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// Compatibility endpoints used by existing front ends
	app.Post("/api/chat", timeout.NewWithContext(ChatCompatHandler(deps), aiRequestTimeout))
	app.Post("/api/gemini/predict", timeout.NewWithContext(PredictHandler(deps), aiRequestTimeout))

	v1 := app.Group("/v1")

	// Map sessions
	v1.Post("/sessions", CreateSessionHandler(deps))
	v1.Get("/sessions/:id", GetSessionHandler(deps))
	v1.Delete("/sessions/:id", DeleteSessionHandler(deps))
	v1.Post("/sessions/:id/navigation", IssueNavigationHandler(deps))
	v1.Post("/sessions/:id/navigation/take", TakeNavigationHandler(deps))
	v1.Post("/sessions/:id/goto", GoToCoordinatesHandler(deps))
	v1.Put("/sessions/:id/layers/:layer", ToggleLayerHandler(deps, true))
	v1.Delete("/sessions/:id/layers/:layer", ToggleLayerHandler(deps, false))
	v1.Post("/sessions/:id/search", SearchHandler(deps))
	v1.Post("/sessions/:id/predict", timeout.NewWithContext(SessionPredictHandler(deps), aiRequestTimeout))
	v1.Post("/sessions/:id/chat", timeout.NewWithContext(SessionChatHandler(deps), aiRequestTimeout))
	v1.Get("/sessions/:id/chat", SessionTranscriptHandler(deps))

	// Data
	v1.Post("/predictions", timeout.NewWithContext(PredictHandler(deps), aiRequestTimeout))
	v1.Get("/geocode", timeout.NewWithContext(GeocodeHandler(deps), requestTimeout))
	v1.Get("/layers", timeout.NewWithContext(ListLayersHandler(deps), requestTimeout))
	v1.Get("/layers/nearby", timeout.NewWithContext(NearbyObservationsHandler(deps), requestTimeout))
	v1.Get("/layers/:id", timeout.NewWithContext(GetLayerHandler(deps), requestTimeout))
	v1.Get("/basemaps", BasemapsHandler(deps))

	// Signed-in area
	signedIn := RequireSignedIn(deps.Auth)
	v1.Get("/analyses", signedIn, timeout.NewWithContext(ListAnalysesHandler(deps), requestTimeout))
	v1.Get("/dashboard", signedIn, timeout.NewWithContext(DashboardHandler(deps), requestTimeout))

	// GraphQL
	app.Post("/graphql", timeout.NewWithContext(GraphQLHandler(deps), requestTimeout))

	// API documentation (Swagger UI)
	SetupDocs(app, "")

	// Browser map socket
	app.Get("/ws/map/:session", MapSocketUpgrade(deps), websocket.New(MapSocketHandler(deps)))
}

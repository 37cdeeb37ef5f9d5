package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// noStore reports whether path answers per-session or per-prompt data that
// must never be stored by a shared cache.
func noStore(path string) bool {
	return strings.HasPrefix(path, "/v1/sessions") ||
		strings.HasPrefix(path, "/v1/predictions") ||
		strings.HasPrefix(path, "/v1/analyses") ||
		strings.HasPrefix(path, "/v1/dashboard") ||
		strings.HasPrefix(path, "/api/")
}

// CachingMiddleware sets Cache-Control defaults by endpoint. Handlers that
// set their own header win.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if existing := c.GetRespHeader(fiber.HeaderCacheControl); existing != "" {
			return err
		}

		path := c.Path()
		if noStore(path) {
			c.Set(fiber.HeaderCacheControl, "no-store")
			return err
		}
		if c.Method() != fiber.MethodGet {
			return err
		}

		var ttl string
		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "public, max-age=10"
		case path == "/metrics":
			ttl = "no-cache"
		case path == "/graphql":
			ttl = "private, max-age=0"
		case strings.HasPrefix(path, "/v1/geocode"):
			ttl = "public, max-age=3600" // place names rarely move
		case strings.HasPrefix(path, "/v1/layers/nearby"):
			ttl = "public, max-age=300"
		case strings.HasPrefix(path, "/v1/layers"):
			ttl = "public, max-age=600" // only the ingestor changes layers
		case path == "/v1/basemaps":
			ttl = "public, max-age=86400" // changes only with a redeploy
		case strings.HasPrefix(path, "/docs"):
			ttl = "public, max-age=3600"
		case strings.HasPrefix(path, "/v1/"):
			ttl = "public, max-age=300"
		}

		if ttl != "" {
			c.Set(fiber.HeaderCacheControl, ttl)
		}
		return err
	}
}

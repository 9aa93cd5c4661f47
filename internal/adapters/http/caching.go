package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on endpoint.
// Adds sensible defaults if not already set by the handler.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		// Only set on GET requests
		if c.Method() != "GET" {
			return err
		}

		// Don't override if already set
		if existing := c.Get("Cache-Control"); existing != "" {
			return err
		}

		path := c.Path()
		var ttl string

		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "public, max-age=10" // Very short for system checks

		case path == "/metrics":
			ttl = "no-cache"

		case path == "/graphql":
			ttl = "private, max-age=0"

		case strings.HasPrefix(path, "/v1/search/recent"):
			ttl = "private, no-store" // Per client

		case strings.HasPrefix(path, "/v1/objects/export"):
			ttl = "no-store" // Downloads are dated

		case path == "/v1/stats":
			ttl = "public, max-age=300" // Refreshed every 5 min

		case strings.HasPrefix(path, "/v1/search"):
			ttl = "public, max-age=3600" // Place names rarely move

		case strings.HasPrefix(path, "/v1/objects") || strings.HasPrefix(path, "/v1/arcs"):
			ttl = "public, max-age=300" // Viewport queries

		case strings.HasPrefix(path, "/v1/"):
			ttl = "public, max-age=300" // 5 min default for API endpoints
		}

		if ttl != "" {
			c.Set("Cache-Control", ttl)
		}

		return err
	}
}

package middlewares

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type RateLimitConfig struct {
	Max        int
	Expiration time.Duration
	// Storage shares counters between instances. Nil keeps them in memory.
	Storage fiber.Storage
	// Prefix namespaces the counter keys. Limiters sharing a Storage need
	// distinct prefixes.
	Prefix string
}

// RateLimit limits requests per client IP within a sliding window.
func RateLimit(config RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:               config.Max,
		Expiration:        config.Expiration,
		Storage:           config.Storage,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator: func(ctx *fiber.Ctx) string {
			return config.Prefix + ctx.IP()
		},
		LimitReached: func(ctx *fiber.Ctx) error {
			return writeError(ctx, fiber.StatusTooManyRequests, "Too many requests, please try again later")
		},
	})
}

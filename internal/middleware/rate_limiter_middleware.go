package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/intellego/platform/internal/util"
)

// RateLimiter allows max requests per expiration window. Requests carrying
// a user id are limited per user, the rest per client IP.
func RateLimiter(max int, expiration time.Duration) fiber.Handler {
	if max == 0 {
		max = 50
	}
	if expiration == 0 {
		expiration = time.Minute
	}
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: expiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			if user := c.Get(HeaderUserID); user != "" {
				return "user:" + user
			}
			return "ip:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return util.ErrorResponse(c, util.ErrorResponseFormat{
				Code:    fiber.StatusTooManyRequests,
				Message: "Demasiadas solicitudes, intentá de nuevo en un momento",
				Details: fiber.Map{"code": "rate_limited", "retry_after_seconds": int(expiration.Seconds())},
			})
		},
		LimiterMiddleware: limiter.SlidingWindow{},
	})
}

package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/labstack/echo/v4"
)

// rateLimitCapacity bounds how many client IPs one limiter tracks.
const rateLimitCapacity = 10000

// rateLimitEntry counts requests from one IP in the current window.
type rateLimitEntry struct {
	count       int
	windowStart time.Time
}

// RateLimit allows maxRequests per client IP per fixed window and answers
// 429 beyond that. Entries expire from the LRU after one window, so idle
// clients cost nothing.
func RateLimit(maxRequests int, window time.Duration) echo.MiddlewareFunc {
	var mu sync.Mutex
	entries := expirable.NewLRU[string, *rateLimitEntry](rateLimitCapacity, nil, window)

	allow := func(ip string, now time.Time) bool {
		mu.Lock()
		defer mu.Unlock()

		entry, ok := entries.Get(ip)
		if !ok || now.Sub(entry.windowStart) > window {
			entries.Add(ip, &rateLimitEntry{count: 1, windowStart: now})
			return true
		}
		entry.count++
		return entry.count <= maxRequests
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !allow(c.RealIP(), time.Now()) {
				c.Response().Header().Set("Retry-After", itoaSeconds(window))
				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"error":   "Too Many Requests",
					"message": "Rate limit exceeded. Please try again later.",
				})
			}
			return next(c)
		}
	}
}

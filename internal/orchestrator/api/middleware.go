package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/thedomainai/agentic-stack/internal/config"
	"github.com/thedomainai/agentic-stack/pkg/ratelimiter"
)

// NewLimiter builds the configured rate limiting algorithm. An unknown
// algorithm name falls back to the token bucket.
func NewLimiter(cfg config.RateLimiterConfig) ratelimiter.RateLimiter {
	switch cfg.Algorithm {
	case "leakyBucket":
		return ratelimiter.NewLeakyBucket(cfg.Rate, cfg.Capacity)
	case "fixedWindowCounter":
		return ratelimiter.NewFixedWindowCounter(cfg.Capacity, time.Second)
	case "slidingWindowLog":
		return ratelimiter.NewSlidingWindowLog(cfg.Capacity, time.Second)
	case "slidingWindowCounter":
		return ratelimiter.NewSlidingWindowCounter(cfg.Capacity, time.Second, 10)
	default:
		return ratelimiter.NewTokenBucket(cfg.Rate, cfg.Capacity)
	}
}

// RateLimit applies a rate limiter to every request passing through it.
func RateLimit(limiter ratelimiter.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too Many Requests"})
			return
		}
		c.Next()
	}
}

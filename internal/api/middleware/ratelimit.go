package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lingoarena/lingoarena-backend/pkg/logger"
	"github.com/lingoarena/lingoarena-backend/pkg/ratelimit"
)

// RateLimitConfig holds rate limit configuration
type RateLimitConfig struct {
	Capacity   int64                     // Maximum burst of requests
	RefillRate int64                     // Requests per second
	KeyFunc    func(*gin.Context) string // Function to extract rate limit key
}

// RedisRateLimitConfig Redis 기반 Rate Limit 설정
type RedisRateLimitConfig struct {
	Limiter *ratelimit.RedisRateLimiter
	Limit   int           // 윈도우 내 최대 요청 수
	Window  time.Duration // 윈도우 크기
	KeyFunc func(*gin.Context) string
}

// DefaultKeyFunc uses user ID if authenticated, otherwise IP address
func DefaultKeyFunc(c *gin.Context) string {
	if userID := UserID(c); userID != "" {
		return "user:" + userID
	}
	return IPKeyFunc(c)
}

// IPKeyFunc uses only IP address (for public endpoints)
func IPKeyFunc(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// RateLimitMiddleware 프로세스 내 토큰 버킷 기반 Rate Limit
func RateLimitMiddleware(config RateLimitConfig) gin.HandlerFunc {
	limiter := ratelimit.NewRateLimiter(config.Capacity, config.RefillRate)
	if config.KeyFunc == nil {
		config.KeyFunc = DefaultKeyFunc
	}

	return func(c *gin.Context) {
		key := config.KeyFunc(c)
		c.Header("X-RateLimit-Limit", strconv.FormatInt(config.Capacity, 10))

		if !limiter.Allow(key) {
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", "1")
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "Rate limit exceeded",
				"message": fmt.Sprintf("Too many requests. Limit: %d requests per second", config.RefillRate),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// RedisRateLimitMiddleware 인스턴스 간 공유되는 Rate Limit
// Redis 오류 시에는 요청을 허용한다 (fail-open)
func RedisRateLimitMiddleware(config RedisRateLimitConfig) gin.HandlerFunc {
	if config.KeyFunc == nil {
		config.KeyFunc = DefaultKeyFunc
	}
	if config.Limit <= 0 {
		config.Limit = 60
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}

	return func(c *gin.Context) {
		key := config.KeyFunc(c)

		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		allowed, info, err := config.Limiter.Allow(ctx, key, config.Limit, config.Window)
		cancel()
		if err != nil {
			logger.Warn("Redis rate limit check failed", "key", key, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))

		if !allowed {
			retryAfter := int(time.Until(info.ResetTime).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"message":     fmt.Sprintf("Too many requests. Limit: %d per %v", config.Limit, config.Window),
				"retry_after": retryAfter,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// UpgradeRateLimit WebSocket 업그레이드 제한 (IP당 10회 버스트, 초당 2회)
// limiter가 있으면 Redis에서 분당 60회로 제한
func UpgradeRateLimit(limiter *ratelimit.RedisRateLimiter) gin.HandlerFunc {
	if limiter != nil {
		return RedisRateLimitMiddleware(RedisRateLimitConfig{
			Limiter: limiter,
			Limit:   60,
			Window:  time.Minute,
			KeyFunc: IPKeyFunc,
		})
	}
	return RateLimitMiddleware(RateLimitConfig{
		Capacity:   10,
		RefillRate: 2,
		KeyFunc:    IPKeyFunc,
	})
}

// OutcomeRateLimit 결과 보고 제한 (사용자당 20회 버스트, 초당 5회)
func OutcomeRateLimit() gin.HandlerFunc {
	return RateLimitMiddleware(RateLimitConfig{
		Capacity:   20,
		RefillRate: 5,
		KeyFunc:    DefaultKeyFunc,
	})
}

package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/CodeDript/codedript-server-sub001/internal/dto"
	"github.com/CodeDript/codedript-server-sub001/internal/ratelimit"
)

const (
	// rateLimitKeyPrefixIP IP 限流键前缀
	rateLimitKeyPrefixIP = "codedript:ratelimit:ip:"
	// rateLimitKeyPrefixUser 用户限流键前缀
	rateLimitKeyPrefixUser = "codedript:ratelimit:user:"
)

// RateLimitConfig 限流中间件配置
type RateLimitConfig struct {
	Limiter *ratelimit.SlidingWindow
	Limit   int
	Window  time.Duration
	KeyFunc func(*gin.Context) string
}

// RateLimitByIP 返回基于 IP 的限流中间件
func RateLimitByIP(sw *ratelimit.SlidingWindow, limit int, window time.Duration) gin.HandlerFunc {
	return RateLimit(RateLimitConfig{
		Limiter: sw,
		Limit:   limit,
		Window:  window,
		KeyFunc: func(c *gin.Context) string {
			return rateLimitKeyPrefixIP + c.ClientIP()
		},
	})
}

// RateLimitByUser 返回基于认证用户的限流中间件
func RateLimitByUser(sw *ratelimit.SlidingWindow, limit int, window time.Duration) gin.HandlerFunc {
	return RateLimit(RateLimitConfig{
		Limiter: sw,
		Limit:   limit,
		Window:  window,
		KeyFunc: func(c *gin.Context) string {
			if userID := UserID(c); userID != "" {
				return rateLimitKeyPrefixUser + userID
			}
			return rateLimitKeyPrefixIP + c.ClientIP()
		},
	})
}

// RateLimit 返回通用限流中间件
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := cfg.KeyFunc(c)

		allowed, err := cfg.Limiter.Allow(c.Request.Context(), key, cfg.Window, cfg.Limit, uuid.NewString())
		if err != nil {
			// 限流器故障时放行，业务可用性优先
			c.Next()
			return
		}

		if !allowed {
			retryAfter := int(cfg.Window.Seconds())
			c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			abortWithError(c, dto.ErrRateLimitExceeded)
			return
		}

		remaining, _ := cfg.Limiter.Remaining(c.Request.Context(), key, cfg.Window, cfg.Limit)
		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		c.Next()
	}
}

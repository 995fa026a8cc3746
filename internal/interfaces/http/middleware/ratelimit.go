// Package middleware 提供 HTTP 中间件
package middleware

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"llm-ledger-api/internal/infrastructure/persistence/redis"
	"llm-ledger-api/internal/interfaces/http/dto"
	"llm-ledger-api/pkg/errors"
	"llm-ledger-api/pkg/logger"
)

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	// Enabled 是否启用限流
	Enabled bool
	// RequestsPerMinute 每个客户端每分钟请求数
	RequestsPerMinute int
}

// RateLimiter 限流器接口
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error)
}

// RateLimit 按客户端 IP 与路由限流
func RateLimit(cfg RateLimitConfig, limiter RateLimiter) gin.HandlerFunc {
	if !cfg.Enabled || limiter == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	window := time.Minute

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := redis.BuildRateLimitKey(c.ClientIP(), c.FullPath())

		allowed, err := limiter.Allow(ctx, key, cfg.RequestsPerMinute, window)
		if err != nil {
			// 限流器故障时放行
			logger.Warn(ctx, "rate limiter unavailable", "error", err.Error())
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.RequestsPerMinute))
		if remaining, err := limiter.Remaining(ctx, key, cfg.RequestsPerMinute, window); err == nil {
			c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		}

		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			dto.ErrorFromApp(c, errors.New(errors.CodeTooManyRequests, "rate limit exceeded"))
			c.Abort()
			return
		}

		c.Next()
	}
}

// NewRateLimitMiddleware 创建限流中间件，redis 未启用时退化为进程内限流
func NewRateLimitMiddleware(cfg RateLimitConfig, client *redis.Client) gin.HandlerFunc {
	if client == nil {
		return RateLimit(cfg, NewLocalRateLimiter())
	}
	return RateLimit(cfg, redis.NewRateLimiter(client))
}

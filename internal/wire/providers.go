// Package wire 提供依赖注入配置
package wire

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"llm-ledger-api/internal/config"
	"llm-ledger-api/internal/domain/repository"
	"llm-ledger-api/internal/domain/service"
	"llm-ledger-api/internal/infrastructure/messaging"
	"llm-ledger-api/internal/infrastructure/persistence/memory"
	"llm-ledger-api/internal/infrastructure/persistence/postgres"
	"llm-ledger-api/internal/infrastructure/persistence/redis"
	"llm-ledger-api/internal/interfaces/http/handler"
	"llm-ledger-api/internal/interfaces/http/middleware"
	"llm-ledger-api/pkg/logger"
)

// LedgerBackend 账本存储及其健康检查
type LedgerBackend struct {
	Repo   repository.LedgerRepository
	Health handler.HealthChecker
	// DB 仅在 postgres/sqlite 驱动下非空
	DB *postgres.Client
}

// ProvideDatabaseClient 创建 GORM 客户端
func ProvideDatabaseClient(cfg *config.Config) (*postgres.Client, func(), error) {
	client, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideLedgerBackend 按 database.driver 选择账本实现
func ProvideLedgerBackend(ctx context.Context, cfg *config.Config) (*LedgerBackend, func(), error) {
	if cfg.Database.Driver == config.DriverMemory {
		logger.Warn(ctx, "using in-memory ledger, records are lost on restart")
		store := memory.NewLedgerStore()
		return &LedgerBackend{Repo: store, Health: store}, func() {}, nil
	}

	client, cleanup, err := ProvideDatabaseClient(cfg)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := client.AutoMigrate(ctx); err != nil {
			cleanup()
			return nil, nil, err
		}
	}
	return &LedgerBackend{
		Repo:   postgres.NewLedgerRepository(client),
		Health: client,
		DB:     client,
	}, cleanup, nil
}

// ProvideLedgerRepository 账本仓储
func ProvideLedgerRepository(b *LedgerBackend) repository.LedgerRepository {
	return b.Repo
}

// ProvideRedisClient 创建 Redis 客户端，未启用时返回 nil
func ProvideRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, func(), error) {
	if !cfg.Cache.Redis.Enabled {
		return nil, func() {}, nil
	}
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect redis: %w", err)
	}
	logger.Info(ctx, "redis connected", "addr", fmt.Sprintf("%s:%d", cfg.Cache.Redis.Host, cfg.Cache.Redis.Port))
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideEventPublisher 创建账本事件发布者，未启用时返回 nil
func ProvideEventPublisher(cfg *config.Config, client *redis.Client) service.InvocationEventPublisher {
	stream := cfg.Messaging.RedisStream
	if !stream.Enabled || client == nil {
		return nil
	}
	return messaging.NewProducer(client.Redis(), messaging.Stream(stream.Stream), int64(stream.MaxLen))
}

// ProvideHealthHandler 注册就绪检查项
func ProvideHealthHandler(cfg *config.Config, backend *LedgerBackend, client *redis.Client) *handler.HealthHandler {
	h := handler.NewHealthHandler(cfg.App.Version).Register("ledger", backend.Health)
	if client != nil {
		h.Register("redis", client)
	}
	return h
}

// ProvideRateLimitMiddleware 调用接口限流
func ProvideRateLimitMiddleware(cfg *config.Config, client *redis.Client) gin.HandlerFunc {
	return middleware.NewRateLimitMiddleware(middleware.RateLimitConfig{
		Enabled:           cfg.Security.RateLimit.Enabled,
		RequestsPerMinute: cfg.Security.RateLimit.RequestsPerMinute,
	}, client)
}

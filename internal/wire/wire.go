//go:build wireinject
// +build wireinject

package wire

import (
	"context"

	"github.com/google/wire"

	"llm-ledger-api/internal/application/invocation"
	"llm-ledger-api/internal/application/query"
	"llm-ledger-api/internal/config"
	"llm-ledger-api/internal/domain/service"
	"llm-ledger-api/internal/infrastructure/llm"
	"llm-ledger-api/internal/infrastructure/persistence/postgres"
	"llm-ledger-api/internal/interfaces/http/handler"
	"llm-ledger-api/internal/interfaces/http/router"
)

// InitializeDatabase 仅初始化数据库（用于 bootstrap 迁移）
func InitializeDatabase(ctx context.Context, cfg *config.Config) (*postgres.Client, func(), error) {
	wire.Build(ProvideDatabaseClient)
	return nil, nil, nil
}

// InitializeApp 初始化 HTTP 应用
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		LedgerSet,
		RedisSet,
		LLMSet,
		RouterSet,
	)
	return nil, nil, nil
}

var LedgerSet = wire.NewSet(
	ProvideLedgerBackend,
	ProvideLedgerRepository,
)

var RedisSet = wire.NewSet(
	ProvideRedisClient,
	ProvideEventPublisher,
	ProvideRateLimitMiddleware,
)

var LLMSet = wire.NewSet(
	llm.NewRegistry,
	wire.Bind(new(service.ProviderResolver), new(*llm.Registry)),
)

var RouterSet = wire.NewSet(
	invocation.NewService,
	query.NewService,
	ProvideHealthHandler,
	handler.NewInvocationHandler,
	handler.NewLedgerHandler,
	wire.Struct(new(router.RouterHandlers), "*"),
	router.New,
)

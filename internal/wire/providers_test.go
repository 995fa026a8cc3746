package wire

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"llm-ledger-api/internal/config"
	"llm-ledger-api/internal/domain/entity"
	"llm-ledger-api/internal/infrastructure/persistence/memory"
	"llm-ledger-api/internal/infrastructure/persistence/redis"
)

func TestProvideLedgerBackendMemory(t *testing.T) {
	cfg := &config.Config{Database: config.DatabaseConfig{Driver: config.DriverMemory}}

	backend, cleanup, err := ProvideLedgerBackend(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()

	require.IsType(t, &memory.LedgerStore{}, backend.Repo)
	require.Nil(t, backend.DB)
	require.NoError(t, backend.Health.HealthCheck(context.Background()))
}

func TestProvideLedgerBackendSQLite(t *testing.T) {
	cfg := &config.Config{Database: config.DatabaseConfig{
		Driver:      config.DriverSQLite,
		AutoMigrate: true,
		LogLevel:    "silent",
		SQLite:      config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "ledger.db")},
	}}

	backend, cleanup, err := ProvideLedgerBackend(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()

	id, err := backend.Repo.Append(context.Background(), &entity.InvocationRecord{
		Provider: "echo", Model: "m", Prompt: "p", Output: "o", Status: entity.InvocationStatusOK, Attempts: 1,
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, id)
	require.NoError(t, backend.Health.HealthCheck(context.Background()))
}

func TestProvideRedisClientDisabled(t *testing.T) {
	client, cleanup, err := ProvideRedisClient(context.Background(), &config.Config{})
	require.NoError(t, err)
	defer cleanup()
	require.Nil(t, client)

	cfg := &config.Config{Messaging: config.MessagingConfig{RedisStream: config.RedisStreamConfig{Enabled: true}}}
	require.Nil(t, ProvideEventPublisher(cfg, nil))
}

func TestProvideEventPublisherEnabled(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	client := redis.NewClientFromRedis(rdb)

	cfg := &config.Config{Messaging: config.MessagingConfig{RedisStream: config.RedisStreamConfig{
		Enabled: true, Stream: "stream:test", MaxLen: 10,
	}}}
	pub := ProvideEventPublisher(cfg, client)
	require.NotNil(t, pub)

	rec := &entity.InvocationRecord{ID: 3, Provider: "echo", Model: "m", Status: entity.InvocationStatusOK, Attempts: 1}
	require.NoError(t, pub.PublishInvocationRecorded(context.Background(), entity.NewInvocationRecordedEvent(rec)))

	entries, err := rdb.XRange(context.Background(), "stream:test", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestProvideHealthHandlerRegistersRedis(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := memory.NewLedgerStore()
	h := ProvideHealthHandler(&config.Config{}, &LedgerBackend{Repo: store, Health: store}, redis.NewClientFromRedis(rdb))
	require.NotNil(t, h)

	mr.Close()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)
	h.Ready(c)
	require.Equal(t, http.StatusServiceUnavailable, w.Code, w.Body.String())
	require.Contains(t, w.Body.String(), `"redis":{"status":"error"`)
}

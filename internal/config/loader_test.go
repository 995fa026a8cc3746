package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("LEDGER_TEST_HOST", "db.internal")

	require.Equal(t, "host: db.internal", expandEnv("host: ${LEDGER_TEST_HOST:localhost}"))
	require.Equal(t, "port: 5432", expandEnv("port: ${LEDGER_TEST_UNSET_PORT:5432}"))
	require.Equal(t, "key: ", expandEnv("key: ${LEDGER_TEST_UNSET_KEY:}"))
	require.Equal(t, "raw: ${LEDGER_TEST_UNSET_RAW}", expandEnv("raw: ${LEDGER_TEST_UNSET_RAW}"))
}

func TestLoadFromAppliesDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", `
llm:
  providers:
    gemini:
      type: openai
      model: gemini-2.5-flash-lite
`)

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	require.Equal(t, "test", cfg.App.Env)
	require.Equal(t, DriverPostgres, cfg.Database.Driver)
	require.Equal(t, "gemini", cfg.LLM.DefaultProvider)
	require.Equal(t, "gemini-2.5-flash-lite", cfg.LLM.DefaultModel)
	require.Equal(t, 60*time.Second, cfg.Invocation.Timeout)
	require.Equal(t, 5*time.Second, cfg.Database.WriteTimeout)
	require.Equal(t, 1, cfg.Invocation.Retry.MaxAttempts)
	require.Equal(t, 500*time.Millisecond, cfg.Invocation.Retry.Backoff.Initial)
	require.Equal(t, 8000, cfg.Server.HTTP.Port)
	require.False(t, cfg.Cache.Redis.Enabled)
}

func TestLoadFromMergesEnvironmentFile(t *testing.T) {
	t.Setenv("APP_ENV", "staging")
	t.Setenv("LEDGER_TEST_TIMEOUT", "5s")
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", `
database:
  driver: postgres
llm:
  default_provider: gemini
  providers:
    gemini:
      type: openai
    echo:
      type: echo
invocation:
  timeout: ${LEDGER_TEST_TIMEOUT:30s}
`)
	writeConfig(t, dir, "config.staging.yaml", `
database:
  driver: memory
llm:
  default_provider: echo
`)

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	require.Equal(t, DriverMemory, cfg.Database.Driver)
	require.Equal(t, "echo", cfg.LLM.DefaultProvider)
	require.Equal(t, 5*time.Second, cfg.Invocation.Timeout)
	require.Len(t, cfg.LLM.Providers, 2)
}

func TestLoadFromRejectsInvalidConfig(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", `
llm:
  default_provider: missing
  providers:
    gemini:
      type: openai
invocation:
  timeout: 0s
  retry:
    max_attempts: 0
`)

	_, err := LoadFrom(dir)
	require.Error(t, err)
	require.Contains(t, err.Error(), `llm.default_provider "missing"`)
	require.Contains(t, err.Error(), "invocation.timeout must be positive")
	require.Contains(t, err.Error(), "max_attempts must be at least 1")
}

func TestValidateProviderType(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{Driver: DriverSQLite},
		LLM: LLMConfig{
			DefaultProvider: "local",
			Providers:       map[string]ProviderConfig{"local": {Type: "grpc"}},
		},
		Invocation: InvocationConfig{Timeout: time.Second, Retry: RetryConfig{MaxAttempts: 1}},
	}
	err := cfg.Validate()
	require.ErrorContains(t, err, `llm.providers.local.type "grpc" is not supported`)

	cfg.LLM.Providers["local"] = ProviderConfig{Type: ProviderTypeEcho}
	require.NoError(t, cfg.Validate())
}

package invocation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"llm-ledger-api/internal/config"
	"llm-ledger-api/internal/domain/service"
)

func TestCalculateBackoff(t *testing.T) {
	b := BackoffConfig{Initial: 100 * time.Millisecond, Max: time.Second, Multiplier: 2}

	require.Equal(t, 100*time.Millisecond, b.CalculateBackoff(0))
	require.Equal(t, 200*time.Millisecond, b.CalculateBackoff(1))
	require.Equal(t, 800*time.Millisecond, b.CalculateBackoff(3))
	require.Equal(t, time.Second, b.CalculateBackoff(10))
}

func TestRetryPolicyFromConfigNormalizes(t *testing.T) {
	p := RetryPolicyFromConfig(config.RetryConfig{})
	require.Equal(t, 1, p.MaxAttempts)
	require.Equal(t, DefaultBackoffConfig(), p.Backoff)

	p = RetryPolicyFromConfig(config.RetryConfig{
		MaxAttempts: 3,
		Backoff:     config.BackoffConfig{Initial: 10 * time.Second, Multiplier: 1.5},
	})
	require.Equal(t, 3, p.MaxAttempts)
	require.Equal(t, 10*time.Second, p.Backoff.Max)
	require.Equal(t, 1.5, p.Backoff.Multiplier)
}

func TestShouldRetry(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 2}
	transient := &service.ProviderError{Kind: service.ProviderErrorNetwork, Retryable: true}
	permanent := &service.ProviderError{Kind: service.ProviderErrorAuth}

	require.True(t, p.shouldRetry(transient, 1))
	require.False(t, p.shouldRetry(transient, 2))
	require.False(t, p.shouldRetry(permanent, 1))
	require.False(t, p.shouldRetry(nil, 1))
}

func TestSleepContext(t *testing.T) {
	require.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

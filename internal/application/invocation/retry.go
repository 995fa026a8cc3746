package invocation

import (
	"context"
	"time"

	"llm-ledger-api/internal/config"
	"llm-ledger-api/internal/domain/service"
)

// BackoffConfig 退避配置
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoffConfig 默认退避配置
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    500 * time.Millisecond,
		Max:        5 * time.Second,
		Multiplier: 2,
	}
}

// CalculateBackoff 计算第 retryCount 次重试前的等待时间（从 0 开始）
func (c BackoffConfig) CalculateBackoff(retryCount int) time.Duration {
	backoff := c.Initial
	for i := 0; i < retryCount; i++ {
		backoff = time.Duration(float64(backoff) * c.Multiplier)
		if backoff > c.Max {
			backoff = c.Max
			break
		}
	}
	return backoff
}

// RetryPolicy 提供商调用重试策略
type RetryPolicy struct {
	// MaxAttempts 包含首次调用
	MaxAttempts int
	Backoff     BackoffConfig
}

// RetryPolicyFromConfig 从配置构建重试策略
func RetryPolicyFromConfig(cfg config.RetryConfig) RetryPolicy {
	p := RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		Backoff: BackoffConfig{
			Initial:    cfg.Backoff.Initial,
			Max:        cfg.Backoff.Max,
			Multiplier: cfg.Backoff.Multiplier,
		},
	}
	def := DefaultBackoffConfig()
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Backoff.Initial <= 0 {
		p.Backoff.Initial = def.Initial
	}
	if p.Backoff.Max < p.Backoff.Initial {
		p.Backoff.Max = max(def.Max, p.Backoff.Initial)
	}
	if p.Backoff.Multiplier < 1 {
		p.Backoff.Multiplier = def.Multiplier
	}
	return p
}

// shouldRetry attempt 为已完成的调用次数
func (p RetryPolicy) shouldRetry(err *service.ProviderError, attempt int) bool {
	return err != nil && err.Retryable && attempt < p.MaxAttempts
}

// sleepContext 等待 d 或 ctx 结束
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

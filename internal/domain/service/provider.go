// Package service 定义跨层的领域服务接口（port）
package service

import (
	"context"
	"errors"
	"fmt"

	"llm-ledger-api/internal/domain/entity"
)

// ErrProviderNotFound 提供商未配置
var ErrProviderNotFound = errors.New("llm provider not found")

// LLMProvider LLM 提供商适配器
// 约定：每次 Generate 只发起一次外部调用，内部不做重试。
type LLMProvider interface {
	Name() string
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// ProviderResolver 按配置名解析适配器
type ProviderResolver interface {
	// Resolve 空名称解析为默认提供商
	Resolve(ctx context.Context, name string) (LLMProvider, error)
	// DefaultModel 返回提供商配置的默认模型，未配置时返回全局默认模型
	DefaultModel(name string) string
	DefaultProvider() string
}

// ProviderErrorKind 提供商错误分类
type ProviderErrorKind string

const (
	ProviderErrorAuth       ProviderErrorKind = "auth"
	ProviderErrorRateLimit  ProviderErrorKind = "rate_limit"
	ProviderErrorBadRequest ProviderErrorKind = "bad_request"
	ProviderErrorNotFound   ProviderErrorKind = "not_found"
	ProviderErrorServer     ProviderErrorKind = "server"
	ProviderErrorTimeout    ProviderErrorKind = "timeout"
	ProviderErrorNetwork    ProviderErrorKind = "network"
	ProviderErrorParse      ProviderErrorKind = "parse"
	ProviderErrorUnknown    ProviderErrorKind = "unknown"
)

// ProviderError 提供商调用失败
type ProviderError struct {
	Provider  string
	Model     string
	Kind      ProviderErrorKind
	Retryable bool
	Cause     error
}

func (e *ProviderError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("provider %s (%s): %s", e.Provider, e.Model, e.Kind)
	}
	return fmt.Sprintf("provider %s (%s): %s: %v", e.Provider, e.Model, e.Kind, e.Cause)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// AsProviderError 从错误链中提取 ProviderError
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// InvocationEventPublisher 调用事件发布器，实现应为 best-effort
type InvocationEventPublisher interface {
	PublishInvocationRecorded(ctx context.Context, event *entity.InvocationRecordedEvent) error
}

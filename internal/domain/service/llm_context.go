package service

import (
	"context"
	"strings"
)

type llmCtxKey string

const (
	llmCtxKeyProvider llmCtxKey = "llm_provider"
	llmCtxKeyModel    llmCtxKey = "llm_model"
)

// WithProvider 在 context 中标记本次调用的提供商，供回调统计使用
func WithProvider(ctx context.Context, provider string) context.Context {
	if ctx == nil {
		return nil
	}
	p := strings.TrimSpace(provider)
	if p == "" {
		return ctx
	}
	return context.WithValue(ctx, llmCtxKeyProvider, p)
}

func WithModel(ctx context.Context, model string) context.Context {
	if ctx == nil {
		return nil
	}
	m := strings.TrimSpace(model)
	if m == "" {
		return ctx
	}
	return context.WithValue(ctx, llmCtxKeyModel, m)
}

func WithProviderModel(ctx context.Context, provider, model string) context.Context {
	return WithModel(WithProvider(ctx, provider), model)
}

func ProviderFromContext(ctx context.Context) string {
	return stringFromContext(ctx, llmCtxKeyProvider)
}

func ModelFromContext(ctx context.Context) string {
	return stringFromContext(ctx, llmCtxKeyModel)
}

func stringFromContext(ctx context.Context, key llmCtxKey) string {
	if ctx == nil {
		return "unknown"
	}
	s, ok := ctx.Value(key).(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return strings.TrimSpace(s)
}

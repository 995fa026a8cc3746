// Package llm 提供 LLM 提供商适配器与注册表
package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"llm-ledger-api/internal/config"
	"llm-ledger-api/internal/domain/service"
)

// ErrProviderNotFound 提供商未配置
var ErrProviderNotFound = service.ErrProviderNotFound

// ChatModelBuilder 根据配置创建 Eino ChatModel
type ChatModelBuilder func(ctx context.Context, cfg config.ProviderConfig) (model.BaseChatModel, error)

// Registry 按名称管理提供商适配器，惰性创建并缓存
type Registry struct {
	config    *config.LLMConfig
	providers map[string]service.LLMProvider
	newModel  ChatModelBuilder
	mu        sync.RWMutex
}

// NewRegistry 创建提供商注册表
func NewRegistry(cfg *config.Config) *Registry {
	return NewRegistryWithBuilder(&cfg.LLM, newOpenAIChatModel)
}

// NewRegistryWithBuilder 使用自定义 ChatModel 构造器创建注册表
func NewRegistryWithBuilder(cfg *config.LLMConfig, builder ChatModelBuilder) *Registry {
	return &Registry{
		config:    cfg,
		providers: make(map[string]service.LLMProvider),
		newModel:  builder,
	}
}

// Register 直接注册适配器，覆盖同名配置
func (r *Registry) Register(name string, p service.LLMProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

// Resolve 获取指定名称的适配器，未指定则返回默认提供商
func (r *Registry) Resolve(ctx context.Context, name string) (service.LLMProvider, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = r.config.DefaultProvider
	}

	r.mu.RLock()
	p, ok := r.providers[name]
	r.mu.RUnlock()
	if ok {
		return p, nil
	}

	// 惰性加载
	r.mu.Lock()
	defer r.mu.Unlock()

	// 再次检查防止竞态
	if p, ok = r.providers[name]; ok {
		return p, nil
	}

	providerCfg, ok := r.config.Providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotFound, name)
	}

	p, err := r.build(ctx, name, providerCfg)
	if err != nil {
		return nil, err
	}
	r.providers[name] = p
	return p, nil
}

func (r *Registry) build(ctx context.Context, name string, cfg config.ProviderConfig) (service.LLMProvider, error) {
	switch cfg.Type {
	case config.ProviderTypeEcho:
		return NewEchoProvider(name), nil
	case config.ProviderTypeOpenAI, "":
		chatModel, err := r.newModel(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create eino chat model for %s: %w", name, err)
		}
		return NewEinoProvider(name, chatModel), nil
	default:
		return nil, fmt.Errorf("provider %s has unsupported type %q", name, cfg.Type)
	}
}

// DefaultProvider 默认提供商名称
func (r *Registry) DefaultProvider() string {
	return r.config.DefaultProvider
}

// DefaultModel 返回提供商配置的模型，未配置时回落到全局默认模型
func (r *Registry) DefaultModel(name string) string {
	if strings.TrimSpace(name) == "" {
		name = r.config.DefaultProvider
	}
	if pc, ok := r.config.Providers[name]; ok && strings.TrimSpace(pc.Model) != "" {
		return strings.TrimSpace(pc.Model)
	}
	return r.config.DefaultModel
}

// Names 返回已配置与已注册的提供商名称
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{}, len(r.config.Providers)+len(r.providers))
	for name := range r.config.Providers {
		seen[name] = struct{}{}
	}
	for name := range r.providers {
		seen[name] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// newOpenAIChatModel 使用 Eino 的 OpenAI 兼容适配器（含 Gemini 兼容端点）
func newOpenAIChatModel(ctx context.Context, cfg config.ProviderConfig) (model.BaseChatModel, error) {
	mc := &openai.ChatModelConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	}
	if cfg.MaxTokens > 0 {
		mc.MaxTokens = &cfg.MaxTokens
	}
	if cfg.Temperature > 0 {
		mc.Temperature = ptrFloat32(float32(cfg.Temperature))
	}
	return openai.NewChatModel(ctx, mc)
}

func ptrFloat32(f float32) *float32 {
	return &f
}

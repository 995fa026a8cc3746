package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"llm-ledger-api/internal/domain/service"
)

// errEmptyCompletion 提供商返回成功但没有内容
var errEmptyCompletion = errors.New("malformed provider response: empty completion")

// EinoProvider 基于 Eino ChatModel 的适配器
type EinoProvider struct {
	name      string
	chatModel model.BaseChatModel
}

// NewEinoProvider 创建 Eino 适配器
func NewEinoProvider(name string, chatModel model.BaseChatModel) *EinoProvider {
	return &EinoProvider{name: name, chatModel: chatModel}
}

func (p *EinoProvider) Name() string {
	return p.name
}

// Generate 发起一次补全调用
func (p *EinoProvider) Generate(ctx context.Context, modelName, prompt string) (string, error) {
	ctx = service.WithProviderModel(ctx, p.name, modelName)
	// 独立调用组件时需要显式初始化回调，全局 handler 才会生效
	ctx = callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
		Name:      p.name,
		Type:      "ChatModel",
		Component: components.ComponentOfChatModel,
	})

	opts := make([]model.Option, 0, 1)
	if m := strings.TrimSpace(modelName); m != "" {
		opts = append(opts, model.WithModel(m))
	}

	msg, err := p.chatModel.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)}, opts...)
	if err != nil {
		return "", ClassifyError(p.name, modelName, err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", &service.ProviderError{
			Provider: p.name,
			Model:    modelName,
			Kind:     service.ProviderErrorParse,
			Cause:    errEmptyCompletion,
		}
	}
	return msg.Content, nil
}

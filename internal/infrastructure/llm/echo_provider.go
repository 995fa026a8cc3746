package llm

import "context"

// EchoProvider 本地回显提供商，无需凭据
type EchoProvider struct {
	name string
}

func NewEchoProvider(name string) *EchoProvider {
	return &EchoProvider{name: name}
}

func (p *EchoProvider) Name() string {
	return p.name
}

func (p *EchoProvider) Generate(ctx context.Context, modelName, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", ClassifyError(p.name, modelName, err)
	}
	return prompt, nil
}

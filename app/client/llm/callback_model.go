package llm

import (
	"context"

	"github.com/tmc/langchaingo/callbacks"
	"github.com/tmc/langchaingo/llms"
)

var _ llms.Model = (*callbackModel)(nil)

// callbackModel reports GenerateContent traffic to a callbacks.Handler
// for providers that take no callback option.
type callbackModel struct {
	model   llms.Model
	handler callbacks.Handler
}

func withCallbacks(model llms.Model, handler callbacks.Handler) llms.Model {
	return &callbackModel{
		model:   model,
		handler: handler,
	}
}

func (m *callbackModel) GenerateContent(
	ctx context.Context,
	messages []llms.MessageContent,
	options ...llms.CallOption,
) (*llms.ContentResponse, error) {
	m.handler.HandleLLMGenerateContentStart(ctx, messages)

	resp, err := m.model.GenerateContent(ctx, messages, options...)
	if err != nil {
		m.handler.HandleLLMError(ctx, err)
		return nil, err
	}

	m.handler.HandleLLMGenerateContentEnd(ctx, resp)

	return resp, nil
}

func (m *callbackModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

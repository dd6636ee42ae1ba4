package tools

import (
	"context"

	"github.com/tmc/langchaingo/llms"
	lctools "github.com/tmc/langchaingo/tools"
)

// Tool is a langchaingo tool that can also describe itself for function calling.
type Tool interface {
	lctools.Tool
	Definition() llms.Tool
}

var _ Tool = (*agentTool)(nil)

type agentTool struct {
	name        string
	description string
	parameters  map[string]any
	call        func(ctx context.Context, input string) (string, error)
}

func (t *agentTool) Name() string {
	return t.name
}

func (t *agentTool) Description() string {
	return t.description
}

func (t *agentTool) Call(ctx context.Context, input string) (string, error) {
	return t.call(ctx, input)
}

func (t *agentTool) Definition() llms.Tool {
	return definition(t.name, t.description, t.parameters)
}

func definition(name, description string, parameters map[string]any) llms.Tool {
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}

func Definitions(list []Tool) []llms.Tool {
	result := make([]llms.Tool, 0, len(list))
	for _, tool := range list {
		result = append(result, tool.Definition())
	}

	return result
}

package workflow

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"sync"

	"awsbot/app/client/elevenlabs"
	"awsbot/app/service/tools"

	"github.com/tmc/langchaingo/llms"
)

type scriptedReply struct {
	resp *llms.ContentResponse
	err  error
}

type modelCall struct {
	messages []llms.MessageContent
	options  llms.CallOptions
}

// fakeModel answers GenerateContent calls from a script, in order.
type fakeModel struct {
	mu     sync.Mutex
	script []scriptedReply
	calls  []modelCall
}

func newFakeModel(script ...scriptedReply) *fakeModel {
	return &fakeModel{script: script}
}

func (f *fakeModel) GenerateContent(
	_ context.Context,
	messages []llms.MessageContent,
	options ...llms.CallOption,
) (*llms.ContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var opts llms.CallOptions
	for _, opt := range options {
		opt(&opts)
	}

	f.calls = append(f.calls, modelCall{messages: slices.Clone(messages), options: opts})

	index := len(f.calls) - 1
	if index >= len(f.script) {
		return nil, errors.New("unexpected model call")
	}

	return f.script[index].resp, f.script[index].err
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func textReply(content string) scriptedReply {
	return scriptedReply{resp: &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: content}},
	}}
}

func routeReply(responseType string) scriptedReply {
	return textReply(`{"response_type": "` + responseType + `"}`)
}

func toolCallReply(id, name, arguments string) scriptedReply {
	return scriptedReply{resp: &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{
			ToolCalls: []llms.ToolCall{{
				ID:   id,
				Type: "function",
				FunctionCall: &llms.FunctionCall{
					Name:      name,
					Arguments: arguments,
				},
			}},
		}},
	}}
}

func errorReply(err error) scriptedReply {
	return scriptedReply{err: err}
}

type fixedRandom float64

func (f fixedRandom) Float64() float64 {
	return float64(f)
}

type fakeTool struct {
	name   string
	output string
	err    error
	inputs []string
}

var _ tools.Tool = (*fakeTool)(nil)

func (f *fakeTool) Name() string        { return f.name }
func (f *fakeTool) Description() string { return "fake tool" }

func (f *fakeTool) Definition() llms.Tool {
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        f.name,
			Description: "fake tool",
			Parameters:  map[string]any{"type": "object"},
		},
	}
}

func (f *fakeTool) Call(_ context.Context, input string) (string, error) {
	f.inputs = append(f.inputs, input)
	return f.output, f.err
}

type fakeSynthesizer struct {
	audio    string
	err      error
	requests []elevenlabs.ConvertRequest
}

func (f *fakeSynthesizer) Convert(_ context.Context, req elevenlabs.ConvertRequest) (io.ReadCloser, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}

	return io.NopCloser(strings.NewReader(f.audio)), nil
}

func messagesOf(pairs ...string) []Message {
	result := make([]Message, 0, len(pairs))
	for i, content := range pairs {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		result = append(result, NewMessage(role, content))
	}

	return result
}

func textOf(part llms.ContentPart) string {
	if text, ok := part.(llms.TextContent); ok {
		return text.Text
	}

	return ""
}

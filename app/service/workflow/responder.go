package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	_ "embed"

	"awsbot/app/service/tools"

	"github.com/elliotchance/pie/v2"
	"github.com/tmc/langchaingo/llms"
)

//go:embed system_prompt.txt
var systemPrompt string

const defaultMaxToolIterations = 5

// Responder generates the assistant reply, letting the model call tools before it answers.
type Responder struct {
	model         llms.Model
	tools         []tools.Tool
	persona       string
	maxIterations int
}

func NewResponder(model llms.Model, toolList []tools.Tool, maxIterations int) *Responder {
	if maxIterations <= 0 {
		maxIterations = defaultMaxToolIterations
	}

	return &Responder{
		model:         model,
		tools:         toolList,
		persona:       strings.TrimSpace(systemPrompt),
		maxIterations: maxIterations,
	}
}

func (r *Responder) systemMessage(summary string) string {
	if summary == "" {
		return r.persona
	}

	return fmt.Sprintf("%s\n\nSummary of conversation earlier: %s", r.persona, summary)
}

func (r *Responder) Run(ctx context.Context, s *State) (*State, error) {
	history := make([]llms.MessageContent, 0, len(s.Messages)+1)
	history = append(history, llms.TextParts(llms.ChatMessageTypeSystem, r.systemMessage(s.Summary)))
	history = append(history, toLLMMessages(s.Messages)...)

	var opts []llms.CallOption
	if len(r.tools) > 0 {
		opts = append(opts, llms.WithTools(tools.Definitions(r.tools)))
	}

	for iteration := 0; iteration < r.maxIterations; iteration++ {
		resp, err := r.model.GenerateContent(ctx, history, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to generate reply: %w", err)
		}

		choice, err := firstChoice(resp)
		if err != nil {
			return nil, err
		}

		if len(choice.ToolCalls) == 0 {
			reply := strings.TrimSpace(choice.Content)
			if reply == "" {
				return nil, ErrEmptyReply
			}

			return s.withMessage(NewMessage(RoleAssistant, reply)), nil
		}

		calls := pie.Map(choice.ToolCalls, func(call llms.ToolCall) ToolCall {
			result := ToolCall{ID: call.ID}
			if call.FunctionCall != nil {
				result.Name = call.FunctionCall.Name
				result.Arguments = call.FunctionCall.Arguments
			}
			return result
		})

		// Tool exchanges stay local to the turn, only the final answer reaches the state.
		history = append(history, assistantMessage(choice.Content, calls))
		for _, call := range calls {
			history = append(history, r.callTool(ctx, call))
		}
	}

	return nil, fmt.Errorf("%w (%d)", ErrToolLoopExceeded, r.maxIterations)
}

// callTool never fails the turn: tool errors are handed back to the model as the tool result.
func (r *Responder) callTool(ctx context.Context, call ToolCall) llms.MessageContent {
	output, err := r.execTool(ctx, call)
	if err != nil {
		slog.WarnContext(ctx, "Tool call failed",
			"tool", call.Name,
			"error", err,
		)
		output = fmt.Sprintf("error: %v", err)
	} else {
		slog.DebugContext(ctx, "Tool call finished",
			"tool", call.Name,
			"output_length", len(output),
		)
	}

	return llms.MessageContent{
		Role: llms.ChatMessageTypeTool,
		Parts: []llms.ContentPart{
			llms.ToolCallResponse{
				ToolCallID: call.ID,
				Name:       call.Name,
				Content:    output,
			},
		},
	}
}

func (r *Responder) execTool(ctx context.Context, call ToolCall) (string, error) {
	index := pie.FindFirstUsing(r.tools, func(tool tools.Tool) bool {
		return tool.Name() == call.Name
	})
	if index < 0 {
		return "", fmt.Errorf("unknown tool %q", call.Name)
	}

	return r.tools[index].Call(ctx, call.Arguments)
}

package workflow

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

func toLLMMessages(messages []Message) []llms.MessageContent {
	result := make([]llms.MessageContent, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			result = append(result, llms.TextParts(llms.ChatMessageTypeSystem, msg.Content))
		case RoleUser:
			result = append(result, llms.TextParts(llms.ChatMessageTypeHuman, msg.Content))
		case RoleAssistant:
			result = append(result, assistantMessage(msg.Content, msg.ToolCalls))
		case RoleTool:
			result = append(result, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{
					llms.ToolCallResponse{
						ToolCallID: msg.ToolCallID,
						Content:    msg.Content,
					},
				},
			})
		}
	}

	return result
}

func assistantMessage(content string, calls []ToolCall) llms.MessageContent {
	parts := make([]llms.ContentPart, 0, len(calls)+1)
	if content != "" {
		parts = append(parts, llms.TextContent{Text: content})
	}

	for _, call := range calls {
		parts = append(parts, llms.ToolCall{
			ID:   call.ID,
			Type: "function",
			FunctionCall: &llms.FunctionCall{
				Name:      call.Name,
				Arguments: call.Arguments,
			},
		})
	}

	return llms.MessageContent{
		Role:  llms.ChatMessageTypeAI,
		Parts: parts,
	}
}

func firstChoice(resp *llms.ContentResponse) (*llms.ContentChoice, error) {
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return nil, fmt.Errorf("no chat completion found")
	}

	return resp.Choices[0], nil
}

// trimJSON strips the markdown fences and prose models like to wrap JSON into.
// Providers without a JSON mode rely on it.
func trimJSON(content string) string {
	result := strings.TrimSpace(content)
	result = strings.Trim(result, "`")
	result = strings.TrimSpace(result)
	result = strings.TrimPrefix(result, "json")
	result = strings.TrimSpace(result)

	start := strings.Index(result, "{")
	end := strings.LastIndex(result, "}")
	if start >= 0 && end > start {
		return result[start : end+1]
	}

	return result
}

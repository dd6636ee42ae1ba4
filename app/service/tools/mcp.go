package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"awsbot/app/config"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/tmc/langchaingo/llms"
)

const mcpInitTimeout = time.Minute

var _ Tool = (*mcpToolAdapter)(nil)

type mcpToolAdapter struct {
	client client.MCPClient
	tool   mcp.Tool
	name   string
}

func (m *mcpToolAdapter) Name() string {
	return m.name
}

func (m *mcpToolAdapter) Description() string {
	return m.tool.Description
}

func (m *mcpToolAdapter) Definition() llms.Tool {
	parameters := map[string]any{
		"type":       "object",
		"properties": m.tool.InputSchema.Properties,
	}
	if len(m.tool.InputSchema.Required) > 0 {
		parameters["required"] = m.tool.InputSchema.Required
	}

	return definition(m.name, m.tool.Description, parameters)
}

func (m *mcpToolAdapter) Call(ctx context.Context, input string) (string, error) {
	callRequest := mcp.CallToolRequest{
		Request: mcp.Request{
			Method: "tools/call",
		},
	}

	callRequest.Params.Name = m.tool.Name
	callRequest.Params.Arguments = m.arguments(input)

	response, err := m.client.CallTool(ctx, callRequest)
	if err != nil {
		return "", fmt.Errorf("MCP tool call failed: %w", err)
	}

	var result strings.Builder
	for _, content := range response.Content {
		if textContent, ok := content.(mcp.TextContent); ok {
			result.WriteString(textContent.Text)
			result.WriteString("\n")
		}
	}

	if response.IsError {
		return "", fmt.Errorf("MCP tool returned an error: %s", strings.TrimSpace(result.String()))
	}

	return strings.TrimSpace(result.String()), nil
}

func (m *mcpToolAdapter) arguments(input string) map[string]any {
	input = strings.TrimSpace(input)

	if strings.HasPrefix(input, "{") {
		var args map[string]any
		if err := json.Unmarshal([]byte(input), &args); err == nil {
			return args
		}
	}

	// Raw text goes to the first declared property.
	for propName := range m.tool.InputSchema.Properties {
		return map[string]any{
			propName: input,
		}
	}

	return map[string]any{
		"input": input,
	}
}

type mcpClientWrapper struct {
	name   string
	client client.MCPClient
	tools  []Tool
}

func connectMCP(ctx context.Context, server config.MCPServer) (*mcpClientWrapper, error) {
	mcpClient, err := client.NewStdioMCPClient(server.Command, nil, server.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client for %s: %w", server.Name, err)
	}

	ctx, cancel := context.WithTimeout(ctx, mcpInitTimeout)
	defer cancel()

	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    "awsbot",
		Version: "1.0.0",
	}

	if _, err = mcpClient.Initialize(ctx, initRequest); err != nil {
		_ = mcpClient.Close()
		return nil, fmt.Errorf("failed to initialize MCP client %s: %w", server.Name, err)
	}

	toolsResponse, err := mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		_ = mcpClient.Close()
		return nil, fmt.Errorf("failed to list tools from %s: %w", server.Name, err)
	}

	wrapper := &mcpClientWrapper{
		name:   server.Name,
		client: mcpClient,
		tools:  make([]Tool, 0, len(toolsResponse.Tools)),
	}

	for _, mcpTool := range toolsResponse.Tools {
		wrapper.tools = append(wrapper.tools, &mcpToolAdapter{
			client: mcpClient,
			tool:   mcpTool,
			name:   fmt.Sprintf("%s_%s", server.Name, mcpTool.Name),
		})
	}

	return wrapper, nil
}

package tools

import (
	"context"
	"errors"
	"log/slog"

	"awsbot/app/client/qdrant"
	"awsbot/app/config"

	"github.com/samber/do"
)

var _ do.Shutdownable = (*Service)(nil)

// Service owns the tools offered to the responder: knowledge-base retrieval plus any MCP servers.
type Service struct {
	tools      []Tool
	mcpClients []*mcpClientWrapper
}

func New(di *do.Injector) (*Service, error) {
	ctx := do.MustInvoke[context.Context](di)
	cfg := do.MustInvoke[*config.Config](di)
	qdrantClient := do.MustInvoke[*qdrant.Client](di)

	s := &Service{
		tools: []Tool{NewRetrieval(qdrantClient, cfg.Qdrant.TopK)},
	}

	for _, server := range cfg.MCP.Servers {
		wrapper, err := connectMCP(ctx, server)
		if err != nil {
			// MCP servers are optional extras, the bot still answers without them.
			slog.Error("Failed to connect MCP server", "name", server.Name, "error", err)
			continue
		}

		slog.Info("Connected MCP server", "name", server.Name, "tools_count", len(wrapper.tools))

		s.mcpClients = append(s.mcpClients, wrapper)
		s.tools = append(s.tools, wrapper.tools...)
	}

	return s, nil
}

func NewStatic(list ...Tool) *Service {
	return &Service{
		tools: list,
	}
}

func (s *Service) Tools() []Tool {
	return s.tools
}

func (s *Service) Shutdown() error {
	var errs []error
	for _, wrapper := range s.mcpClients {
		if err := wrapper.client.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

package llm

import (
	"fmt"
	"net/http"

	"awsbot/app/config"

	"github.com/samber/do"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/openai"
)

// Client holds the process-wide model handles. They carry no per-conversation state.
type Client struct {
	Model    llms.Model
	Embedder embeddings.Embedder
}

func New(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)

	model, err := NewModel(cfg.LLM)
	if err != nil {
		return nil, err
	}

	embedder, err := NewEmbedder(cfg.LLM)
	if err != nil {
		return nil, err
	}

	return &Client{
		Model:    model,
		Embedder: embedder,
	}, nil
}

func NewModel(cfg config.LLM) (llms.Model, error) {
	httpClient := &http.Client{
		Timeout: cfg.Timeout,
	}

	switch cfg.Provider {
	case "anthropic":
		opts := []anthropic.Option{
			anthropic.WithToken(cfg.Token),
			anthropic.WithModel(cfg.Model),
			anthropic.WithHTTPClient(httpClient),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}

		model, err := anthropic.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create anthropic client: %w", err)
		}

		return withCallbacks(model, LogCallbackHandler{}), nil
	default:
		opts := []openai.Option{
			openai.WithToken(cfg.Token),
			openai.WithModel(cfg.Model),
			openai.WithHTTPClient(httpClient),
			openai.WithCallback(LogCallbackHandler{}),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}

		model, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai client: %w", err)
		}

		return model, nil
	}
}

func NewEmbedder(cfg config.LLM) (embeddings.Embedder, error) {
	opts := []openai.Option{
		openai.WithToken(cfg.EmbeddingToken),
		openai.WithEmbeddingModel(cfg.EmbeddingModel),
		openai.WithHTTPClient(&http.Client{
			Timeout: cfg.Timeout,
		}),
	}
	if cfg.EmbeddingBaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.EmbeddingBaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	return embedder, nil
}

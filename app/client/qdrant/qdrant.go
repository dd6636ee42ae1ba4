package qdrant

import (
	"context"
	"fmt"
	"net/url"

	"awsbot/app/client/llm"
	"awsbot/app/config"

	"github.com/samber/do"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
	"github.com/tmc/langchaingo/vectorstores/qdrant"
)

// Client reads the pre-built knowledge base collection. Indexing happens elsewhere.
type Client struct {
	store qdrant.Store
}

func New(di *do.Injector) (*Client, error) {
	cfg := do.MustInvoke[*config.Config](di)
	llmClient := do.MustInvoke[*llm.Client](di)

	return NewClient(cfg.Qdrant, llmClient.Embedder)
}

func NewClient(cfg config.Qdrant, embedder embeddings.Embedder) (*Client, error) {
	storeURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid qdrant url: %w", err)
	}

	opts := []qdrant.Option{
		qdrant.WithURL(*storeURL),
		qdrant.WithCollectionName(cfg.Collection),
		qdrant.WithEmbedder(embedder),
		qdrant.WithContentKey(cfg.ContentKey),
	}
	if cfg.APIKey != "" {
		opts = append(opts, qdrant.WithAPIKey(cfg.APIKey))
	}

	store, err := qdrant.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant store: %w", err)
	}

	return &Client{
		store: store,
	}, nil
}

func (c *Client) SimilaritySearch(
	ctx context.Context,
	query string,
	numDocuments int,
	options ...vectorstores.Option,
) ([]schema.Document, error) {
	return c.store.SimilaritySearch(ctx, query, numDocuments, options...)
}

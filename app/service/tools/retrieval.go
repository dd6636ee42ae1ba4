package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
)

const RetrievalToolName = "retrieve_documents"

const noDocumentsFound = "No relevant documents found."

var ErrEmptyQuery = errors.New("query is empty")

// Searcher is the read side of a vector store.
type Searcher interface {
	SimilaritySearch(ctx context.Context, query string, numDocuments int, options ...vectorstores.Option) ([]schema.Document, error)
}

type retrievalInput struct {
	Query string `json:"query"`
}

func NewRetrieval(searcher Searcher, topK int) Tool {
	return &agentTool{
		name: RetrievalToolName,
		description: "Search the AWS knowledge base and return the most relevant passages. " +
			"Use it for any question about AWS services, limits, pricing or best practices.",
		parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Free-text search query",
				},
			},
			"required": []string{"query"},
		},
		call: func(ctx context.Context, input string) (string, error) {
			query := parseQuery(input)
			if query == "" {
				return "", ErrEmptyQuery
			}

			docs, err := searcher.SimilaritySearch(ctx, query, topK)
			if err != nil {
				return "", fmt.Errorf("similarity search failed: %w", err)
			}

			slog.DebugContext(ctx, "Retrieved documents",
				"query", query,
				"documents_count", len(docs),
			)

			return formatDocuments(docs, topK), nil
		},
	}
}

// parseQuery accepts {"query": "..."} as well as raw text.
func parseQuery(input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return ""
	}

	if input[0] == '{' {
		var req retrievalInput
		if err := json.Unmarshal([]byte(input), &req); err == nil {
			return strings.TrimSpace(req.Query)
		}
	}

	return input
}

func formatDocuments(docs []schema.Document, limit int) string {
	if len(docs) > limit {
		docs = docs[:limit]
	}

	var builder strings.Builder
	index := 0

	for _, doc := range docs {
		content := strings.TrimSpace(doc.PageContent)
		if content == "" {
			continue
		}

		if builder.Len() > 0 {
			builder.WriteString("\n\n")
		}

		index++
		builder.WriteString(fmt.Sprintf("[%d]", index))
		if source := documentSource(doc.Metadata); source != "" {
			builder.WriteString(" (" + source + ")")
		}
		builder.WriteString("\n")
		builder.WriteString(content)
	}

	if builder.Len() == 0 {
		return noDocumentsFound
	}

	return builder.String()
}

func documentSource(metadata map[string]any) string {
	source, _ := metadata["source"].(string)
	if source == "" {
		return ""
	}

	if page, ok := metadata["page"]; ok {
		return fmt.Sprintf("%s, page %v", source, page)
	}

	return source
}

package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// retainedMessages is how many of the newest messages survive compaction verbatim.
const retainedMessages = 2

const (
	freshSummaryPrompt  = "Create a summary of the conversation above:"
	extendSummaryPrompt = "This is summary of the conversation to date: %s\n\n" +
		"Extend the summary by taking into account the new messages above:"
)

// Summarizer folds older history into the running summary.
type Summarizer struct {
	model llms.Model
}

func NewSummarizer(model llms.Model) *Summarizer {
	return &Summarizer{
		model: model,
	}
}

func summaryInstruction(summary string) string {
	if summary == "" {
		return freshSummaryPrompt
	}

	return fmt.Sprintf(extendSummaryPrompt, summary)
}

func (s *Summarizer) Run(ctx context.Context, st *State) (*State, error) {
	next, _, err := s.Summarize(ctx, st)
	return next, err
}

// Summarize returns the compacted state together with the ids of the removed messages.
func (s *Summarizer) Summarize(ctx context.Context, st *State) (*State, Compaction, error) {
	messages := toLLMMessages(st.Messages)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, summaryInstruction(st.Summary)))

	resp, err := s.model.GenerateContent(ctx, messages)
	if err != nil {
		return nil, Compaction{}, fmt.Errorf("failed to summarize conversation: %w", err)
	}

	choice, err := firstChoice(resp)
	if err != nil {
		return nil, Compaction{}, err
	}

	summary := strings.TrimSpace(choice.Content)
	if summary == "" {
		return nil, Compaction{}, ErrEmptyReply
	}

	compaction := Compact(st.Messages, retainedMessages)

	next := st.Clone()
	next.Summary = summary
	next.Messages = compaction.Retained

	slog.DebugContext(ctx, "Conversation summarized",
		"removed", len(compaction.Removed),
		"retained", len(compaction.Retained),
		"summary_length", len(summary),
	)

	return next, compaction, nil
}

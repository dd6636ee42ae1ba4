package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

func TestSummarizer_FreshSummary(t *testing.T) {
	model := newFakeModel(textReply("User asked about S3 and EC2."))
	summarizer := NewSummarizer(model)
	in := &State{Messages: messagesOf("s3?", "object storage", "ec2?", "virtual machines", "thanks")}

	next, compaction, err := summarizer.Summarize(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, "User asked about S3 and EC2.", next.Summary)
	require.Len(t, compaction.Removed, 3)
	assert.Equal(t, []string{in.Messages[0].ID, in.Messages[1].ID, in.Messages[2].ID}, compaction.Removed)
	assert.Equal(t, in.Messages[3:], next.Messages)
	assert.Len(t, in.Messages, 5)

	require.Len(t, model.calls, 1)
	sent := model.calls[0].messages
	require.Len(t, sent, 6)
	assert.Equal(t, llms.ChatMessageTypeHuman, sent[5].Role)
	assert.Equal(t, freshSummaryPrompt, textOf(sent[5].Parts[0]))
	assert.Nil(t, model.calls[0].options.Tools)
}

func TestSummarizer_ExtendsExistingSummary(t *testing.T) {
	model := newFakeModel(textReply("extended"))
	summarizer := NewSummarizer(model)
	in := &State{Messages: messagesOf("a", "b", "c"), Summary: "earlier talk"}

	next, err := summarizer.Run(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "extended", next.Summary)

	instruction := textOf(model.calls[0].messages[3].Parts[0])
	assert.Contains(t, instruction, "This is summary of the conversation to date: earlier talk")
	assert.Contains(t, instruction, "Extend the summary")
}

func TestSummarizer_ShortHistoryDeletesNothing(t *testing.T) {
	for _, messages := range [][]Message{nil, messagesOf("a"), messagesOf("a", "b")} {
		model := newFakeModel(textReply("summary"))
		summarizer := NewSummarizer(model)

		next, compaction, err := summarizer.Summarize(context.Background(), &State{Messages: messages})
		require.NoError(t, err)
		assert.Empty(t, compaction.Removed)
		assert.Len(t, next.Messages, len(messages))
	}
}

func TestSummarizer_ModelErrorIsFatal(t *testing.T) {
	model := newFakeModel(errorReply(errors.New("timeout")))
	summarizer := NewSummarizer(model)
	in := &State{Messages: messagesOf("a", "b", "c")}

	next, err := summarizer.Run(context.Background(), in)
	require.Error(t, err)
	assert.Nil(t, next)
	assert.Len(t, in.Messages, 3)
}

func TestSummarizer_EmptySummaryIsFatal(t *testing.T) {
	model := newFakeModel(textReply(""))
	summarizer := NewSummarizer(model)

	_, err := summarizer.Run(context.Background(), &State{Messages: messagesOf("a", "b", "c")})
	require.ErrorIs(t, err, ErrEmptyReply)
}

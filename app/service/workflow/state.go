package workflow

import (
	"slices"

	"github.com/elliotchance/pie/v2"
	"github.com/google/uuid"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

type ResponseType string

const (
	ResponseText  ResponseType = "text"
	ResponseAudio ResponseType = "audio"
)

func (t ResponseType) Valid() bool {
	return t == ResponseText || t == ResponseAudio
}

type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is immutable once appended to a State. Steps replace or drop messages, never edit them.
type Message struct {
	ID         string     `json:"id"`
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

func NewMessage(role Role, content string) Message {
	return Message{
		ID:      uuid.NewString(),
		Role:    role,
		Content: content,
	}
}

// State is the conversation record threaded through the steps of a turn.
// Messages and Summary are persisted between turns, ResponseType and AudioBuffer are not.
type State struct {
	Messages []Message `json:"messages"`
	Summary  string    `json:"summary,omitempty"`

	ResponseType ResponseType `json:"-"`
	AudioBuffer  []byte       `json:"-"`
}

// Clone returns a copy whose message slice can be appended to without touching the original.
func (s *State) Clone() *State {
	return &State{
		Messages:     slices.Clone(s.Messages),
		Summary:      s.Summary,
		ResponseType: s.ResponseType,
		AudioBuffer:  s.AudioBuffer,
	}
}

func (s *State) resetTurn() {
	s.ResponseType = ""
	s.AudioBuffer = nil
}

func (s *State) withMessage(msg Message) *State {
	next := s.Clone()
	next.Messages = append(next.Messages, msg)
	return next
}

func (s *State) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}

	return s.Messages[len(s.Messages)-1], true
}

func (s *State) lastWithRole(role Role) (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == role {
			return s.Messages[i], true
		}
	}

	return Message{}, false
}

func (s *State) LastUserMessage() (Message, bool) {
	return s.lastWithRole(RoleUser)
}

func (s *State) LastAssistantMessage() (Message, bool) {
	return s.lastWithRole(RoleAssistant)
}

// Compaction is the outcome of folding older messages into the summary.
type Compaction struct {
	Retained []Message
	Removed  []string
}

// Compact keeps the newest keep messages verbatim and marks every older one for removal.
func Compact(messages []Message, keep int) Compaction {
	if keep < 0 {
		keep = 0
	}

	if len(messages) <= keep {
		return Compaction{
			Retained: slices.Clone(messages),
			Removed:  []string{},
		}
	}

	cut := len(messages) - keep

	return Compaction{
		Retained: slices.Clone(messages[cut:]),
		Removed: pie.Map(messages[:cut], func(m Message) string {
			return m.ID
		}),
	}
}

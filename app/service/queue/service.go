package queue

import (
	"log/slog"
	"sync"

	"github.com/samber/do"
)

const bufferSize = 64

var _ do.Shutdownable = (*Service)(nil)

// Message is one inbound user message waiting for a turn.
type Message struct {
	ConversationID string
	ChatID         int64
	MessageID      int
	Username       string
	Text           string
	// VoiceFileID is set for voice notes, Text is empty then.
	VoiceFileID string
}

func (m Message) IsVoice() bool {
	return m.VoiceFileID != ""
}

type Service struct {
	queue  chan Message
	mu     sync.RWMutex
	closed bool
}

func New(_ *do.Injector) (*Service, error) {
	return NewService(bufferSize), nil
}

func NewService(size int) *Service {
	return &Service{
		queue: make(chan Message, size),
	}
}

// Add enqueues msg without blocking. It reports false when the queue is full or closed.
func (s *Service) Add(msg Message) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}

	select {
	case s.queue <- msg:
		return true
	default:
		slog.Warn("Message queue is full",
			"conversation_id", msg.ConversationID,
			"username", msg.Username,
		)
		return false
	}
}

func (s *Service) Channel() <-chan Message {
	return s.queue
}

func (s *Service) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.queue)
	}

	return nil
}

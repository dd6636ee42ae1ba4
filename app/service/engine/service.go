package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"awsbot/app/config"
	"awsbot/app/service/memory"
	"awsbot/app/service/metrics"
	"awsbot/app/service/queue"
	"awsbot/app/service/transcribe"
	"awsbot/app/service/workflow"

	"github.com/samber/do"
	"golang.org/x/sync/errgroup"
)

// Runner executes one conversation turn.
type Runner interface {
	Run(ctx context.Context, state *workflow.State, text string) (*workflow.State, error)
}

type Transcriber interface {
	Enabled() bool
	Transcribe(ctx context.Context, audio io.Reader) (string, error)
}

// Sender delivers replies back to the chat.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendVoice(ctx context.Context, chatID int64, audio []byte) error
	SendTyping(ctx context.Context, chatID int64) error
	DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, error)
}

type Service struct {
	cfg         config.Workflow
	runner      Runner
	store       memory.Store
	transcriber Transcriber
	queueSvc    *queue.Service
	metricsSvc  *metrics.Service
	locks       *keyedMutex
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewService(
		cfg.Workflow,
		do.MustInvoke[*workflow.Workflow](di),
		do.MustInvoke[memory.Store](di),
		do.MustInvoke[*transcribe.Service](di),
		do.MustInvoke[*queue.Service](di),
		do.MustInvoke[*metrics.Service](di),
	), nil
}

func NewService(
	cfg config.Workflow,
	runner Runner,
	store memory.Store,
	transcriber Transcriber,
	queueSvc *queue.Service,
	metricsSvc *metrics.Service,
) *Service {
	return &Service{
		cfg:         cfg,
		runner:      runner,
		store:       store,
		transcriber: transcriber,
		queueSvc:    queueSvc,
		metricsSvc:  metricsSvc,
		locks:       newKeyedMutex(),
	}
}

// HandleTurn runs one turn for the conversation and persists the result.
// Turns of the same conversation never overlap and waiting for the previous one counts against
// the turn timeout. A failed turn leaves the stored state untouched.
func (s *Service) HandleTurn(ctx context.Context, conversationID, text string) (*workflow.State, error) {
	if s.cfg.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.TurnTimeout)
		defer cancel()
	}

	start := time.Now()

	next, err := s.lockedTurn(ctx, conversationID, text)
	took := time.Since(start)

	if err != nil {
		s.metricsSvc.ObserveTurn("", took, err)
		return nil, err
	}

	s.metricsSvc.ObserveTurn(string(next.ResponseType), took, nil)

	slog.Info("Processed turn",
		"conversation_id", conversationID,
		"response_type", next.ResponseType,
		"messages", len(next.Messages),
		"duration", took,
	)

	return next, nil
}

// lockedTurn waits for the conversation lock within the turn deadline.
func (s *Service) lockedTurn(ctx context.Context, conversationID, text string) (*workflow.State, error) {
	unlock, err := s.locks.Lock(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("conversation is busy: %w", err)
	}
	defer unlock()

	return s.handleTurn(ctx, conversationID, text)
}

func (s *Service) handleTurn(ctx context.Context, conversationID, text string) (*workflow.State, error) {
	state, err := s.store.Load(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	next, err := s.runner.Run(ctx, state, text)
	if err != nil {
		return nil, err
	}

	if err = s.store.Save(ctx, conversationID, next); err != nil {
		return nil, fmt.Errorf("failed to save conversation: %w", err)
	}

	return next, nil
}

// Conversation returns the persisted state, waiting for a running turn of the same conversation.
func (s *Service) Conversation(ctx context.Context, conversationID string) (*workflow.State, error) {
	unlock, err := s.locks.Lock(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("conversation is busy: %w", err)
	}
	defer unlock()

	return s.store.Load(ctx, conversationID)
}

// Run consumes the queue until ctx is done or the queue is closed.
func (s *Service) Run(ctx context.Context, sender Sender) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.cfg.Workers, 1))

	slog.Info("Engine started", "workers", s.cfg.Workers)

loop:
	for {
		select {
		case <-gctx.Done():
			break loop
		case msg, ok := <-s.queueSvc.Channel():
			if !ok {
				break loop
			}

			g.Go(func() error {
				s.process(gctx, sender, msg)
				return nil
			})
		}
	}

	_ = g.Wait()

	slog.Info("Engine stopped")
}

func (s *Service) process(ctx context.Context, sender Sender, msg queue.Message) {
	if err := sender.SendTyping(ctx, msg.ChatID); err != nil {
		slog.Debug("Failed to send typing action", "error", err)
	}

	text := msg.Text
	if msg.IsVoice() {
		transcript, err := s.transcribe(ctx, sender, msg.VoiceFileID)
		if err != nil {
			slog.Warn("Voice note transcription failed",
				"conversation_id", msg.ConversationID,
				"error", err,
			)
			s.sendFallback(ctx, sender, msg)
			return
		}
		text = transcript
	}

	state, err := s.HandleTurn(ctx, msg.ConversationID, text)
	if err != nil {
		slog.Error("Turn failed",
			"conversation_id", msg.ConversationID,
			"username", msg.Username,
			"error", err,
		)
		s.sendFallback(ctx, sender, msg)
		return
	}

	if err = deliver(ctx, sender, msg.ChatID, state); err != nil {
		slog.Error("Failed to deliver reply",
			"conversation_id", msg.ConversationID,
			"error", err,
		)
	}
}

func (s *Service) transcribe(ctx context.Context, sender Sender, fileID string) (string, error) {
	if !s.transcriber.Enabled() {
		return "", fmt.Errorf("voice notes are not supported")
	}

	audio, err := sender.DownloadFile(ctx, fileID)
	if err != nil {
		return "", err
	}
	defer audio.Close()

	return s.transcriber.Transcribe(ctx, audio)
}

func (s *Service) sendFallback(ctx context.Context, sender Sender, msg queue.Message) {
	if err := sender.SendText(ctx, msg.ChatID, s.cfg.FallbackMessage); err != nil {
		slog.Error("Failed to send fallback message",
			"conversation_id", msg.ConversationID,
			"error", err,
		)
	}
}

func deliver(ctx context.Context, sender Sender, chatID int64, state *workflow.State) error {
	if state.ResponseType == workflow.ResponseAudio && len(state.AudioBuffer) > 0 {
		return sender.SendVoice(ctx, chatID, state.AudioBuffer)
	}

	reply, ok := state.LastAssistantMessage()
	if !ok {
		return fmt.Errorf("turn produced no reply")
	}

	return sender.SendText(ctx, chatID, reply.Content)
}

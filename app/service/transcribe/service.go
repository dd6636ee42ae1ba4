package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"awsbot/app/client/speechkit"

	"github.com/samber/do"
	"golang.org/x/sync/errgroup"
)

const bufferSize = 4096

var ErrNoSpeech = errors.New("no speech recognized")

// Stream is one recognition session.
type Stream interface {
	SendConfig() error
	Send(content []byte) error
	CloseSend() error
	Recv() ([]string, error)
	Close() error
}

type Recognizer interface {
	Enabled() bool
	Recognize(ctx context.Context) (Stream, error)
}

type speechkitRecognizer struct {
	client *speechkit.YandexSpeechKit
}

func (r speechkitRecognizer) Enabled() bool {
	return r.client.Enabled()
}

func (r speechkitRecognizer) Recognize(ctx context.Context) (Stream, error) {
	handle, err := r.client.Start(ctx)
	if err != nil {
		return nil, err
	}

	return handle, nil
}

// Service turns voice notes into text.
type Service struct {
	recognizer Recognizer
}

func New(di *do.Injector) (*Service, error) {
	return NewService(speechkitRecognizer{
		client: do.MustInvoke[*speechkit.YandexSpeechKit](di),
	}), nil
}

func NewService(recognizer Recognizer) *Service {
	return &Service{
		recognizer: recognizer,
	}
}

func (s *Service) Enabled() bool {
	return s.recognizer.Enabled()
}

// Transcribe streams the whole audio and joins the final utterances.
func (s *Service) Transcribe(ctx context.Context, audio io.Reader) (string, error) {
	handle, err := s.recognizer.Recognize(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to start transcription: %w", err)
	}
	defer handle.Close()

	var (
		mu      sync.Mutex
		phrases []string
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.streamAudio(ctx, audio, handle)
	})

	g.Go(func() error {
		return s.receivePhrases(ctx, handle, func(text string) {
			mu.Lock()
			defer mu.Unlock()
			phrases = append(phrases, text)
		})
	})

	if err = g.Wait(); err != nil {
		return "", err
	}

	text := strings.TrimSpace(strings.Join(phrases, " "))
	if text == "" {
		return "", ErrNoSpeech
	}

	slog.Debug("Transcribed voice note", "text_length", len(text))

	return text, nil
}

func (s *Service) streamAudio(ctx context.Context, audioSrc io.Reader, handle Stream) error {
	if err := handle.SendConfig(); err != nil {
		return fmt.Errorf("failed to send audio config: %w", err)
	}

	buffer := make([]byte, bufferSize)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := audioSrc.Read(buffer)
		if n > 0 {
			if sendErr := handle.Send(buffer[:n]); sendErr != nil {
				return fmt.Errorf("failed to send audio: %w", sendErr)
			}
		}

		if errors.Is(err, io.EOF) {
			if err = handle.CloseSend(); err != nil {
				return fmt.Errorf("failed to close audio stream: %w", err)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read audio: %w", err)
		}
	}
}

func (s *Service) receivePhrases(ctx context.Context, handle Stream, onPhrase func(string)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		sentences, err := handle.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("Recv: %w", err)
		}

		for _, text := range sentences {
			onPhrase(text)
		}
	}
}

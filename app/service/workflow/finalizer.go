package workflow

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"awsbot/app/client/elevenlabs"
)

type SpeechSynthesizer interface {
	Convert(ctx context.Context, req elevenlabs.ConvertRequest) (io.ReadCloser, error)
}

// Finalizer renders the reply in the medium picked by the router.
type Finalizer struct {
	synthesizer SpeechSynthesizer
	voiceID     string
	modelID     string
}

func NewFinalizer(synthesizer SpeechSynthesizer, voiceID, modelID string) *Finalizer {
	return &Finalizer{
		synthesizer: synthesizer,
		voiceID:     voiceID,
		modelID:     modelID,
	}
}

func (f *Finalizer) Run(ctx context.Context, s *State) (*State, error) {
	if s.ResponseType != ResponseAudio {
		return s, nil
	}

	reply, ok := s.LastAssistantMessage()
	if !ok {
		return nil, ErrNoAssistantMessage
	}

	stream, err := f.synthesizer.Convert(ctx, elevenlabs.ConvertRequest{
		Text:    reply.Content,
		VoiceID: f.voiceID,
		ModelID: f.modelID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize speech: %w", err)
	}
	defer stream.Close()

	audio, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio stream: %w", err)
	}

	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}

	slog.DebugContext(ctx, "Synthesized voice reply", "audio_size", len(audio))

	next := s.Clone()
	next.AudioBuffer = audio

	return next, nil
}

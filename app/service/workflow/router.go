package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"

	_ "embed"

	"github.com/go-playground/validator/v10"
	"github.com/tmc/langchaingo/llms"
)

//go:embed router_prompt.txt
var routerPrompt string

// RandomSource draws floats in [0, 1). *rand.Rand satisfies it.
type RandomSource interface {
	Float64() float64
}

type globalRandom struct{}

func (globalRandom) Float64() float64 {
	return rand.Float64()
}

type routerDecision struct {
	ResponseType string `json:"response_type" validate:"required,oneof=text audio"`
}

// Router picks the delivery medium of the upcoming reply.
type Router struct {
	model            llms.Model
	random           RandomSource
	audioProbability float64
	validate         *validator.Validate
}

func NewRouter(model llms.Model, random RandomSource, audioProbability float64) *Router {
	if random == nil {
		random = globalRandom{}
	}

	return &Router{
		model:            model,
		random:           random,
		audioProbability: audioProbability,
		validate:         validator.New(),
	}
}

func (r *Router) Run(ctx context.Context, s *State) (*State, error) {
	last, ok := s.LastUserMessage()
	if !ok {
		return nil, ErrEmptyHistory
	}

	resp, err := r.model.GenerateContent(ctx,
		[]llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeSystem, routerPrompt),
			llms.TextParts(llms.ChatMessageTypeHuman, last.Content),
		},
		llms.WithJSONMode(),
		llms.WithTemperature(0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to classify response type: %w", err)
	}

	choice, err := firstChoice(resp)
	if err != nil {
		return nil, err
	}

	var decision routerDecision
	if err = json.Unmarshal([]byte(trimJSON(choice.Content)), &decision); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidResponseType, choice.Content, err)
	}

	if err = r.validate.Struct(decision); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidResponseType, decision.ResponseType)
	}

	responseType := ResponseType(decision.ResponseType)
	overridden := false

	// A text decision turns into a voice note with probability audioProbability.
	if responseType == ResponseText && r.random.Float64() > 1-r.audioProbability {
		responseType = ResponseAudio
		overridden = true
	}

	slog.DebugContext(ctx, "Routed reply",
		"response_type", responseType,
		"model_choice", decision.ResponseType,
		"overridden", overridden,
	)

	next := s.Clone()
	next.ResponseType = responseType

	return next, nil
}

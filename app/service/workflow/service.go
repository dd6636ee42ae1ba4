package workflow

import (
	"context"
	"log/slog"
	"time"

	"awsbot/app/client/elevenlabs"
	"awsbot/app/client/llm"
	"awsbot/app/config"
	"awsbot/app/service/metrics"
	"awsbot/app/service/tools"

	"github.com/samber/do"
)

// New wires the turn graph from the shared clients.
func New(di *do.Injector) (*Workflow, error) {
	cfg := do.MustInvoke[*config.Config](di)
	llmClient := do.MustInvoke[*llm.Client](di)
	toolsSvc := do.MustInvoke[*tools.Service](di)
	speechClient := do.MustInvoke[*elevenlabs.Client](di)
	metricsSvc := do.MustInvoke[*metrics.Service](di)

	router := NewRouter(llmClient.Model, nil, *cfg.Workflow.AudioProbability)
	responder := NewResponder(llmClient.Model, toolsSvc.Tools(), cfg.Workflow.MaxToolIterations)
	summarizer := NewSummarizer(llmClient.Model)
	finalizer := NewFinalizer(speechClient, cfg.ElevenLabs.VoiceID, cfg.ElevenLabs.ModelID)

	return NewWorkflow(router, responder, summarizer, finalizer, cfg.Workflow.SummaryThreshold,
		WithHook(func(ctx context.Context, step Step, took time.Duration, err error) {
			metricsSvc.ObserveStep(string(step), took, err)
		}),
		WithHook(logStep),
	), nil
}

func logStep(ctx context.Context, step Step, took time.Duration, err error) {
	if err != nil {
		slog.WarnContext(ctx, "Workflow step failed",
			"step", step,
			"duration", took,
			"error", err,
		)
		return
	}

	slog.DebugContext(ctx, "Workflow step finished",
		"step", step,
		"duration", took,
	)
}

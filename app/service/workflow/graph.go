package workflow

import (
	"context"
	"strings"
	"time"

	"github.com/samber/oops"
)

type Step string

const (
	StepRoute     Step = "route"
	StepRespond   Step = "respond"
	StepSummarize Step = "summarize"
	StepFinalize  Step = "finalize"
	StepDone      Step = "done"
)

// Node is one step of the turn graph. It returns the state handed to the next step.
type Node interface {
	Run(ctx context.Context, s *State) (*State, error)
}

// Hook observes every executed step.
type Hook func(ctx context.Context, step Step, took time.Duration, err error)

type Option func(*Workflow)

func WithHook(hook Hook) Option {
	return func(w *Workflow) {
		w.hooks = append(w.hooks, hook)
	}
}

// Workflow runs ROUTE -> RESPOND -> (SUMMARIZE?) -> FINALIZE once per user message.
type Workflow struct {
	nodes            map[Step]Node
	summaryThreshold int
	hooks            []Hook
}

func NewWorkflow(router, responder, summarizer, finalizer Node, summaryThreshold int, opts ...Option) *Workflow {
	w := &Workflow{
		nodes: map[Step]Node{
			StepRoute:     router,
			StepRespond:   responder,
			StepSummarize: summarizer,
			StepFinalize:  finalizer,
		},
		summaryThreshold: summaryThreshold,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// AfterRespond is the only conditional edge of the graph.
func AfterRespond(s *State, summaryThreshold int) Step {
	if len(s.Messages) > summaryThreshold {
		return StepSummarize
	}

	return StepFinalize
}

// NextStep returns the step following current for the given post-step state.
func NextStep(current Step, s *State, summaryThreshold int) Step {
	switch current {
	case StepRoute:
		return StepRespond
	case StepRespond:
		return AfterRespond(s, summaryThreshold)
	case StepSummarize:
		return StepFinalize
	default:
		return StepDone
	}
}

// Run executes one turn. The input state is never modified; on error no state is returned.
func (w *Workflow) Run(ctx context.Context, state *State, text string) (*State, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	if state == nil {
		state = &State{}
	}

	s := state.Clone()
	s.resetTurn()
	s.Messages = append(s.Messages, NewMessage(RoleUser, text))

	for step := StepRoute; step != StepDone; step = NextStep(step, s, w.summaryThreshold) {
		start := time.Now()
		next, err := w.nodes[step].Run(ctx, s)
		w.notify(ctx, step, time.Since(start), err)

		if err != nil {
			return nil, oops.
				In("workflow").
				With("step", string(step)).
				Wrapf(err, "%s step failed", step)
		}

		s = next
	}

	return s, nil
}

func (w *Workflow) notify(ctx context.Context, step Step, took time.Duration, err error) {
	for _, hook := range w.hooks {
		hook(ctx, step, took, err)
	}
}

package workflow

import "errors"

var (
	ErrEmptyMessage        = errors.New("user message is empty")
	ErrEmptyHistory        = errors.New("conversation has no user message")
	ErrInvalidResponseType = errors.New("router returned an invalid response type")
	ErrEmptyReply          = errors.New("model returned an empty reply")
	ErrNoAssistantMessage  = errors.New("no assistant message to synthesize")
	ErrEmptyAudio          = errors.New("speech synthesis returned no audio")
	ErrToolLoopExceeded    = errors.New("tool-use loop exceeded max iterations")
)

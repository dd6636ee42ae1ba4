package memory

import (
	"context"
	"errors"
	"fmt"

	"awsbot/app/config"
	"awsbot/app/service/workflow"

	"github.com/samber/do"
)

var ErrEmptyConversationID = errors.New("conversation id is empty")

// Store persists the durable part of a conversation: its messages and summary.
type Store interface {
	// Load returns an empty state for an unknown conversation.
	Load(ctx context.Context, conversationID string) (*workflow.State, error)
	Save(ctx context.Context, conversationID string, state *workflow.State) error
}

func New(di *do.Injector) (Store, error) {
	cfg := do.MustInvoke[*config.Config](di)

	switch cfg.Storage.Driver {
	case "file":
		return NewFileStore(cfg.Storage.Dir)
	case "redis":
		return NewRedisStore(cfg.Storage.Redis)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func emptyState() *workflow.State {
	return &workflow.State{
		Messages: []workflow.Message{},
	}
}

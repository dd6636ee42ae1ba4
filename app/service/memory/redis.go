package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"awsbot/app/config"
	"awsbot/app/service/workflow"

	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
)

var (
	_ Store           = (*RedisStore)(nil)
	_ do.Shutdownable = (*RedisStore)(nil)
)

// RedisStore keeps each conversation as one JSON value.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisStore(cfg config.Redis) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

func (s *RedisStore) key(conversationID string) string {
	return s.keyPrefix + "conversation:" + conversationID
}

func (s *RedisStore) Load(ctx context.Context, conversationID string) (*workflow.State, error) {
	if conversationID == "" {
		return nil, ErrEmptyConversationID
	}

	data, err := s.client.Get(ctx, s.key(conversationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return emptyState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	state := emptyState()
	if err = json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation: %w", err)
	}

	return state, nil
}

func (s *RedisStore) Save(ctx context.Context, conversationID string, state *workflow.State) error {
	if conversationID == "" {
		return ErrEmptyConversationID
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	if err = s.client.Set(ctx, s.key(conversationID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set conversation: %w", err)
	}

	return nil
}

func (s *RedisStore) Shutdown() error {
	return s.client.Close()
}

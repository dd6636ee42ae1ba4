package memory

import (
	"context"
	"testing"

	"awsbot/app/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStore(t *testing.T) (*miniredis.Miniredis, *RedisStore) {
	mr := miniredis.RunT(t)

	store, err := NewRedisStore(config.Redis{
		Addr:      mr.Addr(),
		KeyPrefix: "test:",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Shutdown() })

	return mr, store
}

func TestRedisStore_SaveLoad(t *testing.T) {
	mr, store := setupRedisStore(t)

	in := sampleState()
	require.NoError(t, store.Save(context.Background(), "tg:7", in))
	assert.True(t, mr.Exists("test:conversation:tg:7"))

	raw, err := mr.Get("test:conversation:tg:7")
	require.NoError(t, err)
	assert.NotContains(t, raw, "not persisted")
	assert.NotContains(t, raw, "response_type")

	out, err := store.Load(context.Background(), "tg:7")
	require.NoError(t, err)
	assert.Equal(t, in.Messages, out.Messages)
	assert.Equal(t, in.Summary, out.Summary)
	assert.Nil(t, out.AudioBuffer)
}

func TestRedisStore_MissingConversationIsEmpty(t *testing.T) {
	_, store := setupRedisStore(t)

	out, err := store.Load(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, out.Messages)
	assert.Empty(t, out.Summary)
}

func TestRedisStore_CorruptValue(t *testing.T) {
	mr, store := setupRedisStore(t)
	require.NoError(t, mr.Set("test:conversation:x", "{broken"))

	_, err := store.Load(context.Background(), "x")
	require.Error(t, err)
}

func TestRedisStore_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisStore(config.Redis{Addr: addr})
	require.Error(t, err)
}

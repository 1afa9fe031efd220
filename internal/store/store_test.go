package store

import (
	"context"
	"testing"

	"cronchat/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLatestStore(t *testing.T, s LatestStore) {
	ctx := context.Background()

	_, err := s.Latest(ctx)
	require.ErrorIs(t, err, ErrNoMessage)

	first := models.NewMessage(models.TypeCron, "Cron Bot", "first")
	second := models.NewMessage(models.TypeUser, "alice", "second")
	require.NoError(t, s.SetLatest(ctx, first))
	require.NoError(t, s.SetLatest(ctx, second))

	got, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
	assert.Equal(t, "second", got.Text)
	assert.Equal(t, models.TypeUser, got.Type)
	assert.True(t, second.Timestamp.Equal(got.Timestamp))

	assert.NoError(t, s.Ping(ctx))
}

func TestMemoryStore(t *testing.T) {
	testLatestStore(t, NewMemoryStore())
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	s := NewRedisStore(client, "chat-channel")
	testLatestStore(t, s)

	assert.True(t, mr.Exists("chat:chat-channel:latest"))
}

func TestNewRedisClientBadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "::not a url")
	assert.Error(t, err)
}

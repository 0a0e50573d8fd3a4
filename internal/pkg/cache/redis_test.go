package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis returns a client backed by miniredis.
func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := &Client{Redis: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	defer client.Close()
	assert.NoError(t, client.Ping(context.Background()))

	_, err = NewClient(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestClient_SetGet(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "k", []byte("v"), time.Minute))

	got, err := client.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	mr.FastForward(2 * time.Minute)
	_, err = client.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss, "expired keys miss")
}

func TestClient_Take(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "once", []byte("1"), time.Minute))

	got, err := client.Take(ctx, "once")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)

	_, err = client.Take(ctx, "once")
	assert.ErrorIs(t, err, ErrMiss, "a taken key is gone")
}

func TestClient_DeletePattern(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	for _, k := range []string{"listing:a", "listing:b", "listing:c", "other"} {
		require.NoError(t, client.Set(ctx, k, []byte("x"), time.Hour))
	}

	n, err := client.DeletePattern(ctx, "listing:*")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.False(t, mr.Exists("listing:a"))
	assert.True(t, mr.Exists("other"))

	require.NoError(t, client.Delete(ctx, "other"))
	assert.False(t, mr.Exists("other"))
}

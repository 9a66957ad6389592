package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *goredis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
}

func TestReplayCache_SetGet(t *testing.T) {
	client := newTestClient(t)
	defer client.Close()
	cache := NewReplayCache(client)
	ctx := context.Background()

	err := cache.Set(ctx, "wallet:transfer:abc", []byte(`{"ok":true}`), time.Minute)
	require.NoError(t, err)

	val, err := cache.Get(ctx, "wallet:transfer:abc")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"ok":true}`), val)
}

func TestReplayCache_GetMissing(t *testing.T) {
	client := newTestClient(t)
	defer client.Close()
	cache := NewReplayCache(client)

	val, err := cache.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, val, "cache miss should be nil, nil")
}

func TestReplayCache_KeysArePrefixed(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()
	cache := NewReplayCache(client)

	require.NoError(t, cache.Set(context.Background(), "k1", []byte("v"), time.Minute))
	assert.True(t, mr.Exists("replay:k1"))
}

func TestReplayCache_TTLExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()
	cache := NewReplayCache(client)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k1", []byte("v"), time.Second))
	mr.FastForward(2 * time.Second)

	val, err := cache.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, val)
}

func TestHealthCheck_Ping(t *testing.T) {
	client := newTestClient(t)
	defer client.Close()

	hc := NewHealthCheck(client)
	assert.NoError(t, hc.Ping(context.Background()))
	assert.Equal(t, "redis", hc.Name())
}

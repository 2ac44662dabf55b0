package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client, KeyPrefix), mr
}

func TestRedisCache_GetSetDelete(t *testing.T) {
	kv, mr := newTestCache(t)
	ctx := context.Background()

	v, err := kv.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, "", v)

	require.NoError(t, kv.Set(ctx, "a", "1", 0))
	assert.True(t, mr.Exists(KeyPrefix+"a"))

	v, err = kv.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	ok, err := kv.Exists(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, kv.Delete(ctx, "a"))
	require.NoError(t, kv.Delete(ctx, "a"))
	ok, err = kv.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_SetNXAndTake(t *testing.T) {
	kv, _ := newTestCache(t)
	ctx := context.Background()

	ok, err := kv.SetNX(ctx, "t", "first", 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = kv.SetNX(ctx, "t", "second", 0)
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := kv.Take(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, "first", v)

	v, err = kv.Take(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, "", v)
}

func TestRedisCache_TTL(t *testing.T) {
	kv, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "c", "v", time.Minute))
	mr.FastForward(2 * time.Minute)

	v, err := kv.Get(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, "", v)
}

func TestJSONHelpers(t *testing.T) {
	kv, _ := newTestCache(t)
	ctx := context.Background()

	type payload struct {
		Token int64 `json:"Token"`
	}

	require.NoError(t, SetJSON(ctx, kv, "j", payload{Token: 42}, 0))

	var got payload
	found, err := GetJSON(ctx, kv, "j", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(42), got.Token)

	ok, err := SetNXJSON(ctx, kv, "j", payload{Token: 7}, 0)
	require.NoError(t, err)
	assert.False(t, ok)

	found, err = TakeJSON(ctx, kv, "j", &got)
	require.NoError(t, err)
	assert.True(t, found)

	found, err = GetJSON(ctx, kv, "j", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, kv.Set(ctx, "bad", "{", 0))
	_, err = GetJSON(ctx, kv, "bad", &got)
	assert.Error(t, err)
}

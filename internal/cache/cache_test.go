package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type profile struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

func setupRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	SetClient(rdb)
	t.Cleanup(func() {
		SetClient(nil)
		_ = rdb.Close()
	})
	return mr
}

func TestCacheAside_FetchesOnceThenHits(t *testing.T) {
	mr := setupRedis(t)
	ctx := context.Background()
	calls := 0

	fetch := func(dest *profile) func() error {
		return func() error {
			calls++
			*dest = profile{ID: 1, Name: "ana"}
			return nil
		}
	}

	var first profile
	require.NoError(t, CacheAside(ctx, UserKey(1), &first, UserTTL, fetch(&first)))
	var second profile
	require.NoError(t, CacheAside(ctx, UserKey(1), &second, UserTTL, fetch(&second)))

	assert.Equal(t, 1, calls)
	assert.Equal(t, "ana", second.Name)
	assert.True(t, mr.Exists("user:1"))

	InvalidateUser(ctx, 1)
	assert.False(t, mr.Exists("user:1"))
}

func TestCacheAside_PropagatesFetchError(t *testing.T) {
	setupRedis(t)
	var p profile
	err := CacheAside(context.Background(), PostKey(9), &p, PostTTL, func() error {
		return errors.New("db down")
	})
	assert.EqualError(t, err, "db down")
}

func TestCacheAside_WithoutClient(t *testing.T) {
	SetClient(nil)
	calls := 0
	var p profile
	err := CacheAside(context.Background(), UserKey(2), &p, time.Minute, func() error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)

	found, err := GetJSON(context.Background(), UserKey(2), &p)
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestInitRedis_Unreachable(t *testing.T) {
	assert.Nil(t, InitRedis("redis://:bad url"))
	assert.Nil(t, GetClient())
}

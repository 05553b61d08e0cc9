package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"eventsocial/internal/middleware"
	"eventsocial/internal/observability"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
)

const (
	UserKeyPrefix = "user:%d"
	PostKeyPrefix = "post:%d"
)

const (
	UserTTL = 5 * time.Minute
	PostTTL = 30 * time.Second
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

// GetJSON attempts to get the key from Redis and unmarshal into dest.
// Returns (true, nil) if found and unmarshaled, (false, nil) if not found.
func GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if client == nil {
		return false, nil
	}
	s, err := client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(s), dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and sets the key with TTL.
func SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if client == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, b, ttl).Err()
}

// CacheAside tries Redis first, on miss it calls fetch (which should populate dest),
// then stores the result in Redis with ttl. Redis failures degrade to a direct fetch.
func CacheAside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	ctx, span := observability.GetTraceLayer().TraceRedisOperation(ctx, "cache_aside")
	defer span.End()

	found, err := GetJSON(ctx, key, dest)
	if err != nil {
		observability.RecordErrorInContext(ctx, err)
		middleware.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("cache read failed")
	}
	observability.AddTraceAttributesToContext(ctx,
		attribute.String("cache.key", key),
		attribute.Bool("cache.hit", found),
	)
	if found {
		return nil
	}

	if err := fetch(); err != nil {
		return err
	}

	if err := SetJSON(ctx, key, dest, ttl); err != nil {
		middleware.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
	return nil
}

// Invalidate removes key, ignoring a missing client.
func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}

func InvalidatePost(ctx context.Context, postID uint) {
	Invalidate(ctx, PostKey(postID))
}

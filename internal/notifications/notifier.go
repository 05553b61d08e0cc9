// Package notifications is the realtime gateway: websocket client pumps, the
// hub that owns connection and chat subscription state, and the redis fan-out
// that carries events between server instances.
package notifications

import (
	"context"
	"fmt"
	"runtime/debug"
	"strconv"

	"eventsocial/internal/middleware"
	"eventsocial/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	userChannelPattern = "notifications:user:*"
	chatChannelPattern = "chat:conv:*"
)

// Notifier publishes gateway frames into Redis channels and relays them back
// to subscribers on every instance.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
// A nil client yields a notifier that reports itself disabled.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Enabled reports whether frames travel through Redis.
func (n *Notifier) Enabled() bool {
	return n != nil && n.rdb != nil
}

// PublishUser sends a frame to a user's personal channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload []byte) error {
	if !n.Enabled() {
		return nil
	}
	if err := n.rdb.Publish(ctx, UserChannel(userID), payload).Err(); err != nil {
		observability.RedisErrorRate.WithLabelValues("publish").Inc()
		return fmt.Errorf("publish user %d: %w", userID, err)
	}
	return nil
}

// PublishChat sends a frame to a chat channel.
func (n *Notifier) PublishChat(ctx context.Context, chatID uint, payload []byte) error {
	if !n.Enabled() {
		return nil
	}
	if err := n.rdb.Publish(ctx, ConversationChannel(chatID), payload).Err(); err != nil {
		observability.RedisErrorRate.WithLabelValues("publish").Inc()
		return fmt.Errorf("publish chat %d: %w", chatID, err)
	}
	return nil
}

// StartSubscriber subscribes to the user and chat patterns and calls onMessage
// for each incoming message until ctx is cancelled. The subscription is
// confirmed before it returns so nothing published afterwards is missed.
func (n *Notifier) StartSubscriber(
	ctx context.Context, onMessage func(channel string, payload string),
) error {
	if !n.Enabled() {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, userChannelPattern, chatChannelPattern)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		observability.RedisErrorRate.WithLabelValues("psubscribe").Inc()
		return fmt.Errorf("psubscribe: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							middleware.Logger.Error().
								Interface("panic", r).
								Str("stack", string(debug.Stack())).
								Msg("panic in gateway subscriber")
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return "notifications:user:" + strconv.FormatUint(uint64(userID), 10)
}

// ConversationChannel derives the Redis channel name for a chat.
func ConversationChannel(chatID uint) string {
	return "chat:conv:" + strconv.FormatUint(uint64(chatID), 10)
}

package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"eventsocial/internal/middleware"
	"eventsocial/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Max connections per user
	maxConnsPerUser = 12
	// Max total connections
	maxTotalConns = 10000
)

var (
	ErrUserConnLimit  = errors.New("user connection limit reached")
	ErrTotalConnLimit = errors.New("server connection limit reached")
)

// Hub owns every live connection on this instance together with the chat
// subscription table. Chat subscriptions belong to a user and cover all of
// that user's connections; they are dropped when the last one closes.
type Hub struct {
	mu         sync.RWMutex
	conns      map[uint]map[*Client]struct{}
	chats      map[uint]map[uint]struct{} // chatID -> userIDs
	userChats  map[uint]map[uint]struct{} // userID -> chatIDs
	totalConns int

	notifier *Notifier
	wired    bool
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "gateway" }

// NewHub creates a hub. With an enabled notifier, publishes go through Redis
// once StartWiring has run; otherwise delivery stays local.
func NewHub(notifier *Notifier) *Hub {
	return &Hub{
		conns:     make(map[uint]map[*Client]struct{}),
		chats:     make(map[uint]map[uint]struct{}),
		userChats: make(map[uint]map[uint]struct{}),
		notifier:  notifier,
	}
}

// Register a connection for a given userID. Returns the Client or error if limits exceeded.
func (h *Hub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.totalConns >= maxTotalConns {
		return nil, ErrTotalConnLimit
	}

	m, ok := h.conns[userID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[userID] = m
	}
	if len(m) >= maxConnsPerUser {
		return nil, ErrUserConnLimit
	}

	client := NewClient(h, conn, userID)
	m[client] = struct{}{}
	h.totalConns++
	observability.WebSocketConnectionsTotal.Inc()

	return client, nil
}

// UnregisterClient removes a connection. When it was the user's last one the
// user's chat subscriptions are released as well.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.conns[client.UserID]
	if !ok {
		return
	}
	if _, exists := m[client]; !exists {
		return
	}
	delete(m, client)
	h.totalConns--
	observability.WebSocketConnectionsTotal.Dec()

	if len(m) > 0 {
		return
	}
	delete(h.conns, client.UserID)
	for chatID := range h.userChats[client.UserID] {
		h.removeChatMemberLocked(chatID, client.UserID)
	}
	delete(h.userChats, client.UserID)
}

// ConnectionCount returns the number of live connections on this instance.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalConns
}

// PublishUser sends an event to every connection of userID, on any instance.
func (h *Hub) PublishUser(ctx context.Context, userID uint, event string, payload any) {
	frame, err := Encode(event, payload)
	if err != nil {
		middleware.Ctx(ctx).Error().Err(err).Uint("recipient_id", userID).Msg("encode user event")
		return
	}
	if h.viaRedis() {
		if err := h.notifier.PublishUser(ctx, userID, frame); err == nil {
			return
		}
		middleware.Ctx(ctx).Warn().Err(err).Uint("recipient_id", userID).Msg("redis publish failed, delivering locally")
	}
	h.deliverUser(userID, frame)
}

func (h *Hub) deliverUser(userID uint, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns[userID] {
		c.TrySend(frame)
	}
}

// routeUserFrame applies chat subscription frames and delivers everything
// else to the user's connections.
func (h *Hub) routeUserFrame(userID uint, frame []byte) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err == nil && env.Event == subscribeChatEvent {
		var ref chatRef
		if err := json.Unmarshal(env.Data, &ref); err != nil || ref.ChatID == 0 {
			middleware.Logger.Warn().Uint("user_id", userID).Msg("invalid chat subscription frame")
			return
		}
		h.subscribeLocal(userID, ref.ChatID)
		return
	}
	h.deliverUser(userID, frame)
}

func (h *Hub) viaRedis() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.wired
}

// StartWiring subscribes to the Redis channels and forwards frames to the
// matching local connections. Without Redis it is a no-op.
func (h *Hub) StartWiring(ctx context.Context) error {
	if !h.notifier.Enabled() {
		return nil
	}
	err := h.notifier.StartSubscriber(ctx, func(channel, payload string) {
		var id uint
		switch {
		case strings.HasPrefix(channel, "notifications:user:"):
			if _, err := fmt.Sscanf(channel, "notifications:user:%d", &id); err != nil {
				middleware.Logger.Warn().Str("channel", channel).Msg("invalid notification channel")
				return
			}
			h.routeUserFrame(id, []byte(payload))
		case strings.HasPrefix(channel, "chat:conv:"):
			if _, err := fmt.Sscanf(channel, "chat:conv:%d", &id); err != nil {
				middleware.Logger.Warn().Str("channel", channel).Msg("invalid chat channel")
				return
			}
			h.deliverChat(id, []byte(payload))
		default:
			middleware.Logger.Warn().Str("channel", channel).Msg("unexpected gateway channel")
		}
	})
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.wired = true
	h.mu.Unlock()
	go func() {
		<-ctx.Done()
		h.mu.Lock()
		h.wired = false
		h.mu.Unlock()
	}()
	return nil
}

// Shutdown gracefully closes all websocket connections
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, userConns := range h.conns {
		for client := range userConns {
			if client.Conn == nil {
				continue
			}
			if err := client.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")); err != nil {
				middleware.Logger.Debug().Err(err).Uint("user_id", userID).Msg("write close frame")
			}
			if err := client.Conn.Close(); err != nil {
				middleware.Logger.Debug().Err(err).Uint("user_id", userID).Msg("close websocket")
			}
		}
	}

	observability.WebSocketConnectionsTotal.Sub(float64(h.totalConns))
	observability.ChatSubscriptions.Sub(float64(h.subscriptionCountLocked()))
	h.conns = make(map[uint]map[*Client]struct{})
	h.chats = make(map[uint]map[uint]struct{})
	h.userChats = make(map[uint]map[uint]struct{})
	h.totalConns = 0
	return nil
}

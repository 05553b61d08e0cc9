package notifications

import (
	"context"

	"eventsocial/internal/middleware"
	"eventsocial/internal/observability"
)

// subscribeChatEvent is a control frame carried on a user's channel. Every
// instance applies it to its own connections of that user and never forwards
// it to clients.
const subscribeChatEvent = "hub.subscribeChat"

type chatRef struct {
	ChatID uint `json:"chatId"`
}

// SubscribeUserToChat adds chatID to the user's subscriptions on this
// instance right away and, when wired through Redis, on every other instance
// holding a connection of the user. Users with no live connection anywhere
// pick the chat up from the snapshot taken on their next connect.
func (h *Hub) SubscribeUserToChat(ctx context.Context, userID, chatID uint) {
	h.subscribeLocal(userID, chatID)
	if !h.viaRedis() {
		return
	}
	frame, err := Encode(subscribeChatEvent, chatRef{ChatID: chatID})
	if err != nil {
		middleware.Ctx(ctx).Error().Err(err).Uint("chat_id", chatID).Msg("encode chat subscription")
		return
	}
	if err := h.notifier.PublishUser(ctx, userID, frame); err != nil {
		middleware.Ctx(ctx).Warn().Err(err).
			Uint("user_id", userID).
			Uint("chat_id", chatID).
			Msg("redis publish failed, chat subscription is local only")
	}
}

func (h *Hub) subscribeLocal(userID, chatID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.conns[userID]) == 0 {
		return
	}
	h.addChatMemberLocked(chatID, userID)
}

// SubscribeUserToChats bulk-subscribes a freshly connected user to the chats
// they participate in.
func (h *Hub) SubscribeUserToChats(userID uint, chatIDs []uint) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.conns[userID]) == 0 {
		return
	}
	for _, chatID := range chatIDs {
		h.addChatMemberLocked(chatID, userID)
	}
}

// PublishChat sends an event to every connection subscribed to chatID, on any
// instance. Callers serialize publishes per chat; frames reach each
// connection in publish order.
func (h *Hub) PublishChat(ctx context.Context, chatID uint, event string, payload any) {
	frame, err := Encode(event, payload)
	if err != nil {
		middleware.Ctx(ctx).Error().Err(err).Uint("chat_id", chatID).Msg("encode chat event")
		return
	}
	if h.viaRedis() {
		if err := h.notifier.PublishChat(ctx, chatID, frame); err == nil {
			return
		}
		middleware.Ctx(ctx).Warn().Err(err).Uint("chat_id", chatID).Msg("redis publish failed, delivering locally")
	}
	h.deliverChat(chatID, frame)
}

func (h *Hub) deliverChat(chatID uint, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for userID := range h.chats[chatID] {
		for c := range h.conns[userID] {
			c.TrySend(frame)
		}
	}
}

func (h *Hub) addChatMemberLocked(chatID, userID uint) {
	users, ok := h.chats[chatID]
	if !ok {
		users = make(map[uint]struct{})
		h.chats[chatID] = users
	}
	if _, dup := users[userID]; dup {
		return
	}
	users[userID] = struct{}{}

	if h.userChats[userID] == nil {
		h.userChats[userID] = make(map[uint]struct{})
	}
	h.userChats[userID][chatID] = struct{}{}
	observability.ChatSubscriptions.Inc()
}

func (h *Hub) removeChatMemberLocked(chatID, userID uint) {
	users, ok := h.chats[chatID]
	if !ok {
		return
	}
	if _, member := users[userID]; !member {
		return
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(h.chats, chatID)
	}
	if convs, ok := h.userChats[userID]; ok {
		delete(convs, chatID)
		if len(convs) == 0 {
			delete(h.userChats, userID)
		}
	}
	observability.ChatSubscriptions.Dec()
}

func (h *Hub) subscriptionCountLocked() int {
	n := 0
	for _, users := range h.chats {
		n += len(users)
	}
	return n
}

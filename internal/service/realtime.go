package service

import "context"

// Gateway event names shared by services and the websocket endpoint.
const (
	EventConnected        = "connected"
	EventConnectError     = "connect_error"
	EventReceiveMessage   = "receiveMessage"
	EventSendMessageError = "sendMessageError"
	EventNotification     = "notification"
	EventChatJoined       = "chatJoined"
	EventPong             = "pong"
)

// Realtime pushes events to live connections. The websocket gateway
// implements it; services only depend on this interface.
type Realtime interface {
	// PublishUser delivers an event to every connection of userID.
	PublishUser(ctx context.Context, userID uint, event string, payload interface{})
	// PublishChat delivers an event to every connection subscribed to chatID.
	PublishChat(ctx context.Context, chatID uint, event string, payload interface{})
	// SubscribeUserToChat adds every live connection of userID, on any
	// instance, to chatID.
	SubscribeUserToChat(ctx context.Context, userID, chatID uint)
}

// NopRealtime drops all events. Used when the gateway is not running.
type NopRealtime struct{}

func (NopRealtime) PublishUser(context.Context, uint, string, interface{}) {}
func (NopRealtime) PublishChat(context.Context, uint, string, interface{}) {}
func (NopRealtime) SubscribeUserToChat(context.Context, uint, uint)        {}

func realtimeOrNop(rt Realtime) Realtime {
	if rt == nil {
		return NopRealtime{}
	}
	return rt
}

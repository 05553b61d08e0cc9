package server

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"eventsocial/internal/middleware"
	"eventsocial/internal/models"
	"eventsocial/internal/notifications"
	"eventsocial/internal/observability"
	"eventsocial/internal/service"
	"eventsocial/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const (
	wsTokenLocal   = "wsToken"
	wsAuthTimeout  = 10 * time.Second
	wsEventAuth    = "auth"
	wsEventSend    = "sendMessage"
	wsEventPing    = "ping"
	chatAccessText = "Chat not found or you are not a participant."
	sendFailedText = "Failed to send message."
)

// sendMessageFrame is the data of an inbound sendMessage event. The chat may
// be named by any of the three id fields.
type sendMessageFrame struct {
	ConversationID uint   `json:"conversationId"`
	ChatRoomID     uint   `json:"chatRoomId"`
	ChatID         uint   `json:"chatId"`
	Content        string `json:"content" validate:"max=5000"`
	Type           string `json:"type" validate:"omitempty,msgtype"`
	MediaURL       string `json:"mediaUrl" validate:"max=2048"`
}

func (f sendMessageFrame) chat() uint {
	switch {
	case f.ConversationID != 0:
		return f.ConversationID
	case f.ChatRoomID != 0:
		return f.ChatRoomID
	default:
		return f.ChatID
	}
}

// WebsocketUpgrade rejects plain HTTP requests and keeps the handshake token
// for the handler. The token may come from the `token` query parameter or a
// bearer header; without one the client must send an auth frame first.
func (s *Server) WebsocketUpgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		token := strings.TrimSpace(c.Query("token"))
		if token == "" {
			token = bearerToken(c.Get(fiber.HeaderAuthorization))
		}
		c.Locals(wsTokenLocal, token)
		return c.Next()
	}
}

// WebsocketHandler runs the realtime gateway connection.
// @Summary Realtime gateway
// @Description Upgrade to a websocket. Frames are {"event","data"} JSON objects.
// @Tags realtime
// @Param token query string false "Session token"
// @Success 101
// @Failure 426 {object} models.ErrorResponse
// @Router /ws [get]
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		token, _ := conn.Locals(wsTokenLocal).(string)
		if token == "" {
			token = awaitAuthFrame(conn)
		}

		userID, err := s.authService.ParseToken(token)
		if err != nil {
			rejectConn(conn, authErrorText(err))
			return
		}

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			middleware.Logger.Warn().Err(err).Uint("user_id", userID).Msg("gateway connection refused")
			rejectConn(conn, err.Error())
			return
		}

		ctx := context.WithValue(context.Background(), middleware.UserIDKey, userID)
		log := middleware.Ctx(ctx)
		log.Debug().Msg("gateway connected")

		client.IncomingHandler = func(c *notifications.Client, raw []byte) {
			s.handleFrame(ctx, c, raw)
		}

		chatIDs, err := s.chatService.ChatIDsForUser(ctx, userID)
		if err != nil {
			log.Error().Err(err).Msg("failed to load chats for gateway subscription")
		}
		s.hub.SubscribeUserToChats(userID, chatIDs)
		client.Emit(service.EventConnected, fiber.Map{"userId": userID, "chats": len(chatIDs)})

		go client.WritePump()
		client.ReadPump()
		log.Debug().Msg("gateway disconnected")
	})
}

// awaitAuthFrame waits for {"event":"auth","data":{"token":...}} and returns
// the token, or "" when nothing usable arrives in time.
func awaitAuthFrame(conn *websocket.Conn) string {
	_ = conn.SetReadDeadline(time.Now().Add(wsAuthTimeout))
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	_, raw, err := conn.ReadMessage()
	if err != nil {
		return ""
	}
	var env notifications.Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Event != wsEventAuth {
		return ""
	}
	var data struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return ""
	}
	return strings.TrimSpace(data.Token)
}

func authErrorText(err error) string {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return "Authentication error: " + appErr.Message
	}
	return "Authentication error"
}

func rejectConn(conn *websocket.Conn, msg string) {
	frame, err := notifications.Encode(service.EventConnectError, fiber.Map{"message": msg})
	if err == nil {
		_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = conn.WriteMessage(websocket.TextMessage, frame)
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, msg))
	_ = conn.Close()
}

func (s *Server) handleFrame(ctx context.Context, c *notifications.Client, raw []byte) {
	var env notifications.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		middleware.Ctx(ctx).Debug().Err(err).Msg("ignoring malformed gateway frame")
		return
	}
	observability.RecordWebSocketEvent(env.Event)

	switch env.Event {
	case wsEventSend:
		s.handleSendMessage(ctx, c, env.Data)
	case wsEventPing:
		c.Emit(service.EventPong, fiber.Map{"time": time.Now().UTC()})
	case wsEventAuth:
		// already authenticated
	default:
		middleware.Ctx(ctx).Debug().Str("event", env.Event).Msg("ignoring unknown gateway event")
	}
}

func (s *Server) handleSendMessage(ctx context.Context, c *notifications.Client, data json.RawMessage) {
	var in sendMessageFrame
	if len(data) == 0 || json.Unmarshal(data, &in) != nil {
		c.Emit(service.EventSendMessageError, fiber.Map{"message": "Invalid message payload."})
		return
	}
	if err := validation.Struct(in); err != nil {
		c.Emit(service.EventSendMessageError, fiber.Map{"message": sendErrorText(err)})
		return
	}

	_, err := s.chatService.SendMessage(ctx, service.SendMessageInput{
		SenderID: c.UserID,
		ChatID:   in.chat(),
		Content:  in.Content,
		Type:     models.MessageType(in.Type),
		MediaURL: in.MediaURL,
	})
	if err != nil {
		if models.HTTPStatus(err) >= fiber.StatusInternalServerError {
			middleware.Ctx(ctx).Error().Err(err).Uint("chat_id", in.chat()).Msg("gateway send failed")
		}
		c.Emit(service.EventSendMessageError, fiber.Map{"message": sendErrorText(err)})
	}
}

// sendErrorText maps a send failure to the text shown to the sender.
func sendErrorText(err error) string {
	switch models.ErrorCode(err) {
	case models.CodeNotFound, models.CodeForbidden:
		return chatAccessText
	case models.CodeValidation:
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return appErr.Message
		}
	}
	return sendFailedText
}

package server

import (
	"encoding/json"
	"errors"
	"net"
	"net/url"
	"testing"
	"time"

	"eventsocial/internal/models"
	"eventsocial/internal/notifications"
	"eventsocial/internal/service"
	"eventsocial/internal/testutil"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wsReadTimeout = 3 * time.Second

// listen serves the env's app on a loopback port and returns its address.
func (e *testEnv) listen(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() { _ = e.app.Listener(ln) }()
	t.Cleanup(func() { _ = e.app.Shutdown() })
	return ln.Addr().String()
}

func dialGateway(t *testing.T, addr, token string) *websocket.Conn {
	t.Helper()
	u := url.URL{Scheme: "ws", Host: addr, Path: "/api/ws"}
	if token != "" {
		u.RawQuery = url.Values{"token": {token}}.Encode()
	}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) notifications.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(wsReadTimeout)))
	var env notifications.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

// readEvent skips frames until one named event arrives.
func readEvent(t *testing.T, conn *websocket.Conn, event string) notifications.Envelope {
	t.Helper()
	for {
		env := readEnvelope(t, conn)
		if env.Event == event {
			return env
		}
	}
}

func sendFrame(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	frame, err := notifications.Encode(event, data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
}

func assertSilent(t *testing.T, conn *websocket.Conn, event string) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	for {
		var env notifications.Envelope
		err := conn.ReadJSON(&env)
		if err != nil {
			var netErr net.Error
			require.True(t, errors.As(err, &netErr) && netErr.Timeout(), "unexpected read error: %v", err)
			return
		}
		require.NotEqual(t, event, env.Event, "unexpected %s frame: %s", event, env.Data)
	}
}

func TestGateway_SendMessageFanOut(t *testing.T) {
	env := newTestEnv(t)
	alice := testutil.CreateUser(t, env.db, "alice")
	bob := testutil.CreateUser(t, env.db, "bob")
	carol := testutil.CreateUser(t, env.db, "carol")
	chat := joinEventChat(t, env, alice, bob)
	addr := env.listen(t)

	aliceConn := dialGateway(t, addr, env.token(t, alice))
	bobConn := dialGateway(t, addr, env.token(t, bob))
	carolConn := dialGateway(t, addr, env.token(t, carol))
	for _, c := range []*websocket.Conn{aliceConn, bobConn, carolConn} {
		readEvent(t, c, service.EventConnected)
	}

	// carol is not a participant: only she hears about her attempt and nothing is stored.
	sendFrame(t, carolConn, "sendMessage", map[string]any{"conversationId": chat.ID, "content": "let me in"})
	frame := readEvent(t, carolConn, service.EventSendMessageError)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(frame.Data, &payload))
	assert.Equal(t, "Chat not found or you are not a participant.", payload["message"])

	sendFrame(t, bobConn, "sendMessage", map[string]any{"chatRoomId": chat.ID, "content": "see you there"})

	// The first message each participant sees is bob's, so carol's never fanned out.
	for _, c := range []*websocket.Conn{aliceConn, bobConn} {
		frame := readEvent(t, c, service.EventReceiveMessage)
		var msg models.Message
		require.NoError(t, json.Unmarshal(frame.Data, &msg))
		assert.Equal(t, chat.ID, msg.ChatID)
		assert.Equal(t, bob.ID, msg.SenderID)
		assert.Equal(t, "see you there", msg.Content)
		assert.Equal(t, models.MessageTypeText, msg.Type)
	}

	// A timed-out read leaves the connection unreadable, so silence checks go last.
	assertSilent(t, carolConn, service.EventReceiveMessage)
	assertSilent(t, aliceConn, service.EventReceiveMessage)
	msgs, err := env.server.chatService.GetMessages(t.Context(), chat.ID, alice.ID, 20, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestGateway_ValidationErrorsGoToSender(t *testing.T) {
	env := newTestEnv(t)
	alice := testutil.CreateUser(t, env.db, "alice")
	bob := testutil.CreateUser(t, env.db, "bob")
	chat := joinEventChat(t, env, alice, bob)
	addr := env.listen(t)

	conn := dialGateway(t, addr, env.token(t, bob))
	readEvent(t, conn, service.EventConnected)

	tests := []struct {
		name    string
		data    any
		message string
	}{
		{"empty text", map[string]any{"chatId": chat.ID, "content": "   "}, "Message content is required"},
		{"bad type", map[string]any{"chatId": chat.ID, "content": "x", "type": "gif"}, "type must be text, image or video"},
		{"media without url", map[string]any{"chatId": chat.ID, "type": "image"}, "mediaUrl is required for media messages"},
		{"unknown chat", map[string]any{"chatId": 9999, "content": "hello"}, "Chat not found or you are not a participant."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sendFrame(t, conn, "sendMessage", tt.data)
			frame := readEvent(t, conn, service.EventSendMessageError)
			var payload map[string]string
			require.NoError(t, json.Unmarshal(frame.Data, &payload))
			assert.Equal(t, tt.message, payload["message"])
		})
	}
}

func TestGateway_AuthFrame(t *testing.T) {
	env := newTestEnv(t)
	alice := testutil.CreateUser(t, env.db, "alice")
	addr := env.listen(t)

	conn := dialGateway(t, addr, "")
	sendFrame(t, conn, "auth", map[string]string{"token": env.token(t, alice)})

	frame := readEvent(t, conn, service.EventConnected)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(frame.Data, &payload))
	assert.EqualValues(t, alice.ID, payload["userId"])

	sendFrame(t, conn, "ping", nil)
	readEvent(t, conn, service.EventPong)
}

func TestGateway_RejectsBadToken(t *testing.T) {
	env := newTestEnv(t)
	addr := env.listen(t)

	conn := dialGateway(t, addr, "garbage")
	frame := readEnvelope(t, conn)
	require.Equal(t, service.EventConnectError, frame.Event)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(frame.Data, &payload))
	assert.Equal(t, "Authentication error: Token is not valid", payload["message"])

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
}

func TestGateway_JoinSubscribesLiveConnection(t *testing.T) {
	env := newTestEnv(t)
	alice := testutil.CreateUser(t, env.db, "alice")
	bob := testutil.CreateUser(t, env.db, "bob")
	addr := env.listen(t)

	// bob connects before the chat exists; joining must subscribe him.
	bobConn := dialGateway(t, addr, env.token(t, bob))
	readEvent(t, bobConn, service.EventConnected)

	chat := joinEventChat(t, env, alice, bob)
	joined := readEvent(t, bobConn, service.EventChatJoined)
	var got models.Chat
	require.NoError(t, json.Unmarshal(joined.Data, &got))
	assert.Equal(t, chat.ID, got.ID)

	_, err := env.server.chatService.SendMessage(t.Context(), service.SendMessageInput{
		SenderID: alice.ID, ChatID: chat.ID, Content: "welcome",
	})
	require.NoError(t, err)

	frame := readEvent(t, bobConn, service.EventReceiveMessage)
	var msg models.Message
	require.NoError(t, json.Unmarshal(frame.Data, &msg))
	assert.Equal(t, "welcome", msg.Content)
}

package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"eventsocial/internal/config"
	"eventsocial/internal/models"
	"eventsocial/internal/repository"
	"eventsocial/internal/storage"
	"eventsocial/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type chatFixture struct {
	db    *gorm.DB
	rt    *recordingRealtime
	svc   *ChatService
	posts repository.PostRepository
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	rt := newRecordingRealtime()
	store, err := storage.NewLocalStore(t.TempDir(), "http://localhost/media")
	require.NoError(t, err)
	posts := repository.NewPostRepository(db)
	svc := NewChatService(repository.NewChatRepository(db), posts, NewMediaService(store, &config.Config{}), rt)
	return &chatFixture{db: db, rt: rt, svc: svc, posts: posts}
}

func TestValidateMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   SendMessageInput
		ok   bool
	}{
		{"text", SendMessageInput{ChatID: 1, Content: "hi"}, true},
		{"missing chat", SendMessageInput{Content: "hi"}, false},
		{"empty text", SendMessageInput{ChatID: 1, Content: "  "}, false},
		{"unknown type", SendMessageInput{ChatID: 1, Content: "hi", Type: "sticker"}, false},
		{"image without url", SendMessageInput{ChatID: 1, Type: models.MessageTypeImage}, false},
		{"image with url", SendMessageInput{ChatID: 1, Type: models.MessageTypeImage, MediaURL: "http://x/a.webp"}, true},
		{"too long", SendMessageInput{ChatID: 1, Content: string(make([]rune, 5001))}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			in := tt.in
			err := validateMessage(&in)
			if tt.ok {
				require.NoError(t, err)
				assert.NotEmpty(t, in.Type)
				return
			}
			assertValidationError(t, err)
		})
	}
}

// Two participants join an event chat and one sends a message; a third user
// is rejected without anything being persisted or broadcast.
func TestChatService_JoinAndSendScenario(t *testing.T) {
	f := newChatFixture(t)
	author := testutil.CreateUser(t, f.db, "bob")
	guest := testutil.CreateUser(t, f.db, "carol")
	outsider := testutil.CreateUser(t, f.db, "mallory")
	event := testutil.CreateEvent(t, f.db, author, "Meetup", time.Now().Add(time.Hour))
	ctx := context.Background()

	chat, err := f.svc.JoinPostChat(ctx, event.ID, guest.ID)
	require.NoError(t, err)
	assert.Equal(t, "Meetup", chat.GroupName)
	assert.Len(t, chat.Participants, 2)
	assert.Equal(t, []uint{chat.ID}, f.rt.chatsOf(guest.ID))
	assert.Equal(t, []uint{chat.ID}, f.rt.chatsOf(author.ID))
	require.Len(t, f.rt.eventsNamed(EventChatJoined), 1)

	// Joining keeps the interest set in sync.
	post, err := f.posts.GetByID(ctx, event.ID, guest.ID)
	require.NoError(t, err)
	assert.True(t, post.IsInterested)
	assert.Equal(t, 1, post.InterestedCount)

	// Re-joining is a no-op.
	again, err := f.svc.JoinPostChat(ctx, event.ID, guest.ID)
	require.NoError(t, err)
	assert.Equal(t, chat.ID, again.ID)
	assert.Len(t, again.Participants, 2)

	msg, err := f.svc.SendMessage(ctx, SendMessageInput{SenderID: guest.ID, ChatID: chat.ID, Content: "hello"})
	require.NoError(t, err)
	require.NotNil(t, msg.Sender)
	assert.Equal(t, "carol", msg.Sender.Handle())
	assert.Equal(t, []uint{guest.ID}, msg.ReadBy)

	broadcasts := f.rt.eventsNamed(EventReceiveMessage)
	require.Len(t, broadcasts, 1)
	assert.Equal(t, chat.ID, broadcasts[0].ID)
	assert.Same(t, msg, broadcasts[0].Payload)

	_, err = f.svc.SendMessage(ctx, SendMessageInput{SenderID: outsider.ID, ChatID: chat.ID, Content: "let me in"})
	assertForbiddenError(t, err)
	assert.Len(t, f.rt.eventsNamed(EventReceiveMessage), 1)

	messages, err := f.svc.GetMessages(ctx, chat.ID, author.ID, 50, 0)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "hello", messages[0].Content)

	_, err = f.svc.GetMessages(ctx, chat.ID, outsider.ID, 50, 0)
	assertForbiddenError(t, err)
	_, err = f.svc.GetChatByPost(ctx, event.ID, outsider.ID)
	assertForbiddenError(t, err)

	byPost, err := f.svc.GetChatByPost(ctx, event.ID, author.ID)
	require.NoError(t, err)
	require.NotNil(t, byPost.LastMessageID)
	assert.Equal(t, msg.ID, *byPost.LastMessageID)

	read, err := f.svc.MarkRead(ctx, chat.ID, author.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), read)

	chats, err := f.svc.ListChats(ctx, author.ID)
	require.NoError(t, err)
	require.Len(t, chats, 1)

	ids, err := f.svc.ChatIDsForUser(ctx, outsider.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestChatService_JoinRejectsNonEvents(t *testing.T) {
	f := newChatFixture(t)
	author := testutil.CreateUser(t, f.db, "bob")
	post := testutil.CreatePost(t, f.db, author, "Just a post")

	_, err := f.svc.JoinPostChat(context.Background(), post.ID, author.ID)
	assertNotFoundError(t, err)

	_, err = f.svc.JoinPostChat(context.Background(), 4040, author.ID)
	assertNotFoundError(t, err)
}

func TestChatService_SendToMissingChat(t *testing.T) {
	f := newChatFixture(t)
	user := testutil.CreateUser(t, f.db, "bob")

	_, err := f.svc.SendMessage(context.Background(), SendMessageInput{SenderID: user.ID, ChatID: 777, Content: "hi"})
	assertNotFoundError(t, err)
	assert.Empty(t, f.rt.eventsNamed(EventReceiveMessage))
}

func TestChatService_ConcurrentSendsBroadcastInPersistOrder(t *testing.T) {
	f := newChatFixture(t)
	author := testutil.CreateUser(t, f.db, "bob")
	guest := testutil.CreateUser(t, f.db, "carol")
	event := testutil.CreateEvent(t, f.db, author, "Meetup", time.Now().Add(time.Hour))
	ctx := context.Background()

	chat, err := f.svc.JoinPostChat(ctx, event.ID, guest.ID)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sender := author.ID
			if i%2 == 0 {
				sender = guest.ID
			}
			_, err := f.svc.SendMessage(ctx, SendMessageInput{SenderID: sender, ChatID: chat.ID, Content: fmt.Sprintf("m%d", i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	broadcasts := f.rt.eventsNamed(EventReceiveMessage)
	require.Len(t, broadcasts, 10)
	for i := 1; i < len(broadcasts); i++ {
		prev := broadcasts[i-1].Payload.(*models.Message)
		cur := broadcasts[i].Payload.(*models.Message)
		assert.Less(t, prev.ID, cur.ID)
	}
}

func TestChatService_UploadMedia(t *testing.T) {
	f := newChatFixture(t)
	author := testutil.CreateUser(t, f.db, "bob")
	outsider := testutil.CreateUser(t, f.db, "mallory")
	event := testutil.CreateEvent(t, f.db, author, "Meetup", time.Now().Add(time.Hour))
	ctx := context.Background()

	chat, err := f.svc.JoinPostChat(ctx, event.ID, author.ID)
	require.NoError(t, err)

	file := MediaFile{Filename: "a.png", ContentType: "image/png", Data: testutil.PNGBytes(t, 32, 32)}
	_, err = f.svc.UploadMedia(ctx, chat.ID, outsider.ID, file)
	assertForbiddenError(t, err)

	stored, err := f.svc.UploadMedia(ctx, chat.ID, author.ID, file)
	require.NoError(t, err)
	assert.Equal(t, models.MessageTypeImage, stored.Type)
	assert.Contains(t, stored.URL, fmt.Sprintf("/chats/%d/", chat.ID))

	msg, err := f.svc.SendMessage(ctx, SendMessageInput{SenderID: author.ID, ChatID: chat.ID, Type: stored.Type, MediaURL: stored.URL})
	require.NoError(t, err)
	assert.Equal(t, stored.URL, msg.MediaURL)
}

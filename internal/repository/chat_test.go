package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"eventsocial/internal/models"
	"eventsocial/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatRepository_JoinPostChat(t *testing.T) {
	db := testutil.NewTestDB(t)
	chats := NewChatRepository(db)
	posts := NewPostRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	author := testutil.CreateUser(t, db, "author")
	guest := testutil.CreateUser(t, db, "guest")
	event := testutil.CreateEvent(t, db, author, "Hackathon", now.Add(time.Hour))

	first, err := chats.JoinPostChat(ctx, event, guest.ID, now)
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.True(t, first.Joined)
	assert.True(t, first.Interested)
	assert.Equal(t, "Hackathon", first.Chat.GroupName)
	assert.Len(t, first.Chat.Participants, 2)
	assert.True(t, first.Chat.HasParticipant(author.ID))
	assert.True(t, first.Chat.HasParticipant(guest.ID))

	again, err := chats.JoinPostChat(ctx, event, guest.ID, now)
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.False(t, again.Joined)
	assert.False(t, again.Interested)
	assert.Equal(t, first.Chat.ID, again.Chat.ID)
	assert.Len(t, again.Chat.Participants, 2, "joining twice keeps one membership")

	interested, err := posts.IsInterested(ctx, event.ID, guest.ID)
	require.NoError(t, err)
	assert.True(t, interested)

	stored, err := posts.GetByID(ctx, event.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.InterestedCount)
}

func TestChatRepository_JoinAfterStartSkipsInterest(t *testing.T) {
	db := testutil.NewTestDB(t)
	chats := NewChatRepository(db)
	posts := NewPostRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	author := testutil.CreateUser(t, db, "author")
	guest := testutil.CreateUser(t, db, "guest")
	event := testutil.CreateEvent(t, db, author, "Started", now.Add(-time.Hour))

	res, err := chats.JoinPostChat(ctx, event, guest.ID, now)
	require.NoError(t, err)
	assert.True(t, res.Joined)
	assert.False(t, res.Interested)

	interested, err := posts.IsInterested(ctx, event.ID, guest.ID)
	require.NoError(t, err)
	assert.False(t, interested)
}

func TestChatRepository_ConcurrentJoinCreatesOneChat(t *testing.T) {
	db := testutil.NewTestDB(t)
	chats := NewChatRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	author := testutil.CreateUser(t, db, "author")
	event := testutil.CreateEvent(t, db, author, "Race", now.Add(time.Hour))
	guests := []*models.User{
		testutil.CreateUser(t, db, "g1"),
		testutil.CreateUser(t, db, "g2"),
		testutil.CreateUser(t, db, "g3"),
	}

	var wg sync.WaitGroup
	for _, g := range guests {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			_, err := chats.JoinPostChat(ctx, event, id, now)
			assert.NoError(t, err)
		}(g.ID)
	}
	wg.Wait()

	var count int64
	db.Model(&models.Chat{}).Where("post_id = ?", event.ID).Count(&count)
	assert.EqualValues(t, 1, count)

	chat, err := chats.GetByPostID(ctx, event.ID)
	require.NoError(t, err)
	assert.Len(t, chat.Participants, 4)
}

func TestChatRepository_Messages(t *testing.T) {
	db := testutil.NewTestDB(t)
	chats := NewChatRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	author := testutil.CreateUser(t, db, "author")
	guest := testutil.CreateUser(t, db, "guest")
	outsider := testutil.CreateUser(t, db, "outsider")
	event := testutil.CreateEvent(t, db, author, "Party", now.Add(time.Hour))

	joined, err := chats.JoinPostChat(ctx, event, guest.ID, now)
	require.NoError(t, err)
	chatID := joined.Chat.ID

	msg := &models.Message{ChatID: chatID, SenderID: guest.ID, Type: models.MessageTypeText, Content: "hello"}
	require.NoError(t, chats.CreateMessage(ctx, msg))
	assert.NotZero(t, msg.ID)
	assert.Equal(t, []uint{guest.ID}, msg.ReadBy)
	require.NotNil(t, msg.Sender)
	assert.Equal(t, "guest", msg.Sender.Handle())

	rejected := &models.Message{ChatID: chatID, SenderID: outsider.ID, Type: models.MessageTypeText, Content: "let me in"}
	err = chats.CreateMessage(ctx, rejected)
	assert.Equal(t, models.CodeForbidden, models.ErrorCode(err))

	var count int64
	db.Model(&models.Message{}).Where("chat_id = ?", chatID).Count(&count)
	assert.EqualValues(t, 1, count, "rejected sends persist nothing")

	second := &models.Message{ChatID: chatID, SenderID: author.ID, Type: models.MessageTypeText, Content: "welcome"}
	require.NoError(t, chats.CreateMessage(ctx, second))

	chat, err := chats.GetByID(ctx, chatID)
	require.NoError(t, err)
	require.NotNil(t, chat.LastMessageID)
	assert.Equal(t, second.ID, *chat.LastMessageID)
	require.NotNil(t, chat.LastMessage)
	assert.Equal(t, "welcome", chat.LastMessage.Content)

	newlyRead, err := chats.MarkChatRead(ctx, chatID, author.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, newlyRead)

	messages, err := chats.GetMessages(ctx, chatID, 50, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "hello", messages[0].Content)
	assert.ElementsMatch(t, []uint{guest.ID, author.ID}, messages[0].ReadBy)
	assert.Equal(t, []uint{author.ID}, messages[1].ReadBy)

	list, err := chats.ListForUser(ctx, guest.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, chatID, list[0].ID)

	ids, err := chats.ChatIDsForUser(ctx, outsider.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)

	assert.Len(t, chat.Participants, 2)
	assert.True(t, chat.HasParticipant(author.ID))
	assert.True(t, chat.HasParticipant(guest.ID))
	assert.False(t, chat.HasParticipant(outsider.ID))
}

func TestChatRepository_NotFound(t *testing.T) {
	db := testutil.NewTestDB(t)
	chats := NewChatRepository(db)

	_, err := chats.GetByID(context.Background(), 42)
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))

	_, err = chats.GetByPostID(context.Background(), 42)
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
}

// Package service provides application business logic (auth, users, posts, chat, etc.).
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"eventsocial/internal/cache"
	"eventsocial/internal/middleware"
	"eventsocial/internal/models"
	"eventsocial/internal/observability"
	"eventsocial/internal/repository"
)

const (
	maxMessageContentLen = 5000
	chatLockStripes      = 64
)

// ChatService provides the event group chat logic shared by the HTTP API and
// the websocket gateway.
type ChatService struct {
	chatRepo repository.ChatRepository
	postRepo repository.PostRepository
	media    *MediaService
	realtime Realtime
	now      func() time.Time

	// Sends are serialized per chat so persistence order equals broadcast order.
	locks [chatLockStripes]sync.Mutex
}

// SendMessageInput is the input for sending a message.
type SendMessageInput struct {
	SenderID uint
	ChatID   uint
	Content  string
	Type     models.MessageType
	MediaURL string
}

// NewChatService returns a new ChatService.
func NewChatService(
	chatRepo repository.ChatRepository,
	postRepo repository.PostRepository,
	media *MediaService,
	rt Realtime,
) *ChatService {
	return &ChatService{
		chatRepo: chatRepo,
		postRepo: postRepo,
		media:    media,
		realtime: realtimeOrNop(rt),
		now:      time.Now,
	}
}

// JoinPostChat joins userID to the chat of an event post, creating the chat
// on first join. The caller's live connections are subscribed right away.
func (s *ChatService) JoinPostChat(ctx context.Context, postID, userID uint) (*models.Chat, error) {
	post, err := s.postRepo.GetByID(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if !post.IsEvent {
		return nil, models.NewNotFoundMessage("Event post not found")
	}

	res, err := s.chatRepo.JoinPostChat(ctx, post, userID, s.now())
	if err != nil {
		return nil, err
	}
	chat := res.Chat

	s.realtime.SubscribeUserToChat(ctx, userID, chat.ID)
	if res.Created && post.AuthorID != userID {
		s.realtime.SubscribeUserToChat(ctx, post.AuthorID, chat.ID)
	}
	if res.Interested {
		cache.InvalidatePost(ctx, postID)
	}
	s.realtime.PublishUser(ctx, userID, EventChatJoined, chat)

	middleware.Ctx(ctx).Info().
		Uint("chat_id", chat.ID).
		Uint("post_id", postID).
		Bool("created", res.Created).
		Bool("joined", res.Joined).
		Msg("chat joined")
	return chat, nil
}

// ListChats returns the chats userID participates in.
func (s *ChatService) ListChats(ctx context.Context, userID uint) ([]*models.Chat, error) {
	return s.chatRepo.ListForUser(ctx, userID)
}

// ChatIDsForUser lists the chats a connecting user is subscribed to.
func (s *ChatService) ChatIDsForUser(ctx context.Context, userID uint) ([]uint, error) {
	return s.chatRepo.ChatIDsForUser(ctx, userID)
}

// GetChatByPost returns the chat of postID if userID participates in it.
func (s *ChatService) GetChatByPost(ctx context.Context, postID, userID uint) (*models.Chat, error) {
	chat, err := s.chatRepo.GetByPostID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !chat.HasParticipant(userID) {
		return nil, models.NewForbiddenError("You are not a participant of this chat")
	}
	return chat, nil
}

// GetMessages returns the messages of chatID, oldest first.
func (s *ChatService) GetMessages(ctx context.Context, chatID, userID uint, limit, offset int) ([]*models.Message, error) {
	if err := s.requireParticipant(ctx, chatID, userID); err != nil {
		return nil, err
	}
	return s.chatRepo.GetMessages(ctx, chatID, limit, offset)
}

// SendMessage persists a message and broadcasts it to the chat's subscribers.
// Nothing is persisted or broadcast when the sender is not a participant.
func (s *ChatService) SendMessage(ctx context.Context, in SendMessageInput) (*models.Message, error) {
	ctx, span := observability.GetTraceLayer().TraceWebSocket(ctx, "sendMessage", in.ChatID)
	defer span.End()

	if err := validateMessage(&in); err != nil {
		return nil, err
	}

	lock := &s.locks[in.ChatID%chatLockStripes]
	lock.Lock()
	defer lock.Unlock()

	if err := s.requireParticipant(ctx, in.ChatID, in.SenderID); err != nil {
		return nil, err
	}

	msg := &models.Message{
		ChatID:   in.ChatID,
		SenderID: in.SenderID,
		Type:     in.Type,
		Content:  in.Content,
		MediaURL: in.MediaURL,
	}
	if err := s.chatRepo.CreateMessage(ctx, msg); err != nil {
		span.RecordError(err)
		return nil, err
	}
	observability.RecordChatMessage(string(msg.Type))

	s.realtime.PublishChat(ctx, msg.ChatID, EventReceiveMessage, msg)
	return msg, nil
}

// MarkRead marks every message in chatID as read by userID.
func (s *ChatService) MarkRead(ctx context.Context, chatID, userID uint) (int64, error) {
	if err := s.requireParticipant(ctx, chatID, userID); err != nil {
		return 0, err
	}
	return s.chatRepo.MarkChatRead(ctx, chatID, userID)
}

// UploadMedia stores an image or video for use as a message's media reference.
func (s *ChatService) UploadMedia(ctx context.Context, chatID, userID uint, f MediaFile) (*StoredMedia, error) {
	if err := s.requireParticipant(ctx, chatID, userID); err != nil {
		return nil, err
	}
	if s.media == nil {
		return nil, models.NewValidationError("Uploads are not enabled")
	}
	return s.media.Upload(ctx, fmt.Sprintf("%s/%d", FolderChats, chatID), f)
}

// requireParticipant returns NotFound for a missing chat and Forbidden for a
// non-participant.
func (s *ChatService) requireParticipant(ctx context.Context, chatID, userID uint) error {
	ok, err := s.chatRepo.IsParticipant(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if _, err := s.chatRepo.GetByID(ctx, chatID); err != nil {
		return err
	}
	return models.NewForbiddenError("You are not a participant of this chat")
}

func validateMessage(in *SendMessageInput) error {
	if in.ChatID == 0 {
		return models.NewValidationError("conversationId is required")
	}
	if in.Type == "" {
		in.Type = models.MessageTypeText
	}
	if !in.Type.Valid() {
		return models.NewValidationError("type must be text, image or video")
	}
	in.Content = strings.TrimSpace(in.Content)
	in.MediaURL = strings.TrimSpace(in.MediaURL)
	if len([]rune(in.Content)) > maxMessageContentLen {
		return models.NewValidationError(fmt.Sprintf("Message content too long (max %d characters)", maxMessageContentLen))
	}
	switch in.Type {
	case models.MessageTypeText:
		if in.Content == "" {
			return models.NewValidationError("Message content is required")
		}
		in.MediaURL = ""
	default:
		if in.MediaURL == "" {
			return models.NewValidationError("mediaUrl is required for media messages")
		}
	}
	return nil
}

package repository

import (
	"context"
	"errors"
	"time"

	"eventsocial/internal/models"
	"eventsocial/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JoinResult describes the outcome of joining a post's chat.
type JoinResult struct {
	Chat *models.Chat
	// Created is true when this call created the chat.
	Created bool
	// Joined is true when the requester was not a participant before.
	Joined bool
	// Interested is true when the requester was added to the interested set.
	Interested bool
}

// ChatRepository defines the interface for chat data operations
type ChatRepository interface {
	JoinPostChat(ctx context.Context, post *models.Post, userID uint, now time.Time) (*JoinResult, error)
	GetByID(ctx context.Context, id uint) (*models.Chat, error)
	GetByPostID(ctx context.Context, postID uint) (*models.Chat, error)
	ListForUser(ctx context.Context, userID uint) ([]*models.Chat, error)
	ChatIDsForUser(ctx context.Context, userID uint) ([]uint, error)
	IsParticipant(ctx context.Context, chatID, userID uint) (bool, error)
	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessages(ctx context.Context, chatID uint, limit, offset int) ([]*models.Message, error)
	MarkChatRead(ctx context.Context, chatID, userID uint) (int64, error)
}

// chatRepository implements ChatRepository
type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository creates a new chat repository
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

// JoinPostChat finds or creates the chat of post, adds the author and userID
// as participants and, while the event has not started, adds userID to the
// post's interested set. Everything happens in one transaction so the chat
// participant set and the interest set cannot drift apart.
func (r *chatRepository) JoinPostChat(ctx context.Context, post *models.Post, userID uint, now time.Time) (*JoinResult, error) {
	defer observability.TrackQuery("join", "chats")()
	ctx, span := observability.GetTraceLayer().TraceRepositoryMethod(ctx, "JoinPostChat", "chats")
	defer span.End()

	result := &JoinResult{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "post_id"}},
			DoNothing: true,
		}).Create(&models.Chat{PostID: post.ID, GroupName: post.Title})
		if created.Error != nil {
			return created.Error
		}
		result.Created = created.RowsAffected == 1

		// The row may belong to a concurrent creator, so always re-read it.
		var chat models.Chat
		if err := tx.Where("post_id = ?", post.ID).First(&chat).Error; err != nil {
			return err
		}

		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.ChatParticipant{ChatID: chat.ID, UserID: post.AuthorID}).Error; err != nil {
			return err
		}
		joined := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.ChatParticipant{ChatID: chat.ID, UserID: userID})
		if joined.Error != nil {
			return joined.Error
		}
		result.Joined = joined.RowsAffected == 1 && userID != post.AuthorID

		if post.IsEvent && !post.EventStarted(now) {
			added, err := addInterest(tx, post.ID, userID)
			if err != nil {
				return err
			}
			result.Interested = added
		}

		if err := tx.Preload("Participants", publicUser).First(&chat, chat.ID).Error; err != nil {
			return err
		}
		result.Chat = &chat
		return nil
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return result, nil
}

func (r *chatRepository) GetByID(ctx context.Context, id uint) (*models.Chat, error) {
	var chat models.Chat
	err := r.db.WithContext(ctx).
		Preload("Participants", publicUser).
		Preload("LastMessage").
		Preload("LastMessage.Sender", publicUser).
		First(&chat, id).Error
	if err != nil {
		return nil, notFoundOr(err, "Chat", id)
	}
	return &chat, nil
}

func (r *chatRepository) GetByPostID(ctx context.Context, postID uint) (*models.Chat, error) {
	var chat models.Chat
	err := r.db.WithContext(ctx).
		Preload("Participants", publicUser).
		Preload("LastMessage").
		Preload("LastMessage.Sender", publicUser).
		Where("post_id = ?", postID).
		First(&chat).Error
	if err != nil {
		return nil, notFoundOr(err, "Chat for post", postID)
	}
	return &chat, nil
}

// ListForUser returns the chats userID participates in, most recently active first.
func (r *chatRepository) ListForUser(ctx context.Context, userID uint) ([]*models.Chat, error) {
	var chats []*models.Chat
	err := readDB(r.db).WithContext(ctx).
		Joins("JOIN chat_participants cp ON chats.id = cp.chat_id").
		Where("cp.user_id = ?", userID).
		Preload("Participants", publicUser).
		Preload("LastMessage").
		Preload("LastMessage.Sender", publicUser).
		Order("chats.updated_at DESC").
		Find(&chats).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return chats, nil
}

// ChatIDsForUser returns the ids of every chat userID participates in.
func (r *chatRepository) ChatIDsForUser(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.ChatParticipant{}).
		Where("user_id = ?", userID).
		Pluck("chat_id", &ids).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

func (r *chatRepository) IsParticipant(ctx context.Context, chatID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ChatParticipant{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// CreateMessage persists msg, marks it read by its sender and moves the
// chat's last-message pointer, all in one transaction. The sender must be a
// participant; otherwise a Forbidden error is returned and nothing is written.
func (r *chatRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	defer observability.TrackQuery("insert", "messages")()
	ctx, span := observability.GetTraceLayer().TraceRepositoryMethod(ctx, "CreateMessage", "messages")
	defer span.End()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.ChatParticipant{}).
			Where("chat_id = ? AND user_id = ?", msg.ChatID, msg.SenderID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return models.NewForbiddenError("You are not a participant of this chat")
		}

		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		if err := tx.Create(&models.MessageRead{MessageID: msg.ID, UserID: msg.SenderID}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Chat{}).Where("id = ?", msg.ChatID).
			Updates(map[string]interface{}{"last_message_id": msg.ID, "updated_at": msg.CreatedAt}).Error
	})
	if err != nil {
		var appErr *models.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return models.NewInternalError(err)
	}

	var sender models.User
	if err := publicUser(r.db.WithContext(ctx)).First(&sender, msg.SenderID).Error; err == nil {
		msg.Sender = &sender
	}
	msg.ReadBy = []uint{msg.SenderID}
	return nil
}

// GetMessages returns messages of chatID oldest first with their read-by sets.
func (r *chatRepository) GetMessages(ctx context.Context, chatID uint, limit, offset int) ([]*models.Message, error) {
	limit, offset = clampPage(limit, offset)
	db := readDB(r.db)

	var messages []*models.Message
	err := db.WithContext(ctx).
		Preload("Sender", publicUser).
		Where("chat_id = ?", chatID).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if len(messages) == 0 {
		return messages, nil
	}

	ids := make([]uint, 0, len(messages))
	byID := make(map[uint]*models.Message, len(messages))
	for _, m := range messages {
		ids = append(ids, m.ID)
		byID[m.ID] = m
		m.ReadBy = []uint{}
	}

	var reads []models.MessageRead
	if err := db.WithContext(ctx).Where("message_id IN ?", ids).Order("read_at ASC").Find(&reads).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, rd := range reads {
		if m, ok := byID[rd.MessageID]; ok {
			m.ReadBy = append(m.ReadBy, rd.UserID)
		}
	}
	return messages, nil
}

// MarkChatRead marks every message of chatID as read by userID and returns
// the number of newly read messages.
func (r *chatRepository) MarkChatRead(ctx context.Context, chatID, userID uint) (int64, error) {
	res := r.db.WithContext(ctx).Exec(
		`INSERT INTO message_reads (message_id, user_id, read_at)
		 SELECT id, ?, ? FROM messages WHERE chat_id = ?
		 ON CONFLICT DO NOTHING`,
		userID, time.Now().UTC(), chatID,
	)
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

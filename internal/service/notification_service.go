package service

import (
	"context"

	"eventsocial/internal/middleware"
	"eventsocial/internal/models"
	"eventsocial/internal/repository"
)

// NotificationService persists notifications and pushes them to the
// recipient's personal channel.
type NotificationService struct {
	repo     repository.NotificationRepository
	realtime Realtime
}

// NotifyInput describes a notification to create.
type NotifyInput struct {
	RecipientID     uint
	SenderID        *uint
	Type            models.NotificationType
	Message         string
	RelatedEntityID *uint
}

func NewNotificationService(repo repository.NotificationRepository, rt Realtime) *NotificationService {
	return &NotificationService{repo: repo, realtime: realtimeOrNop(rt)}
}

func (s *NotificationService) Notify(ctx context.Context, in NotifyInput) (*models.Notification, error) {
	if in.RecipientID == 0 || in.Message == "" {
		return nil, models.NewValidationError("Notification recipient and message are required")
	}
	n := &models.Notification{
		RecipientID:     in.RecipientID,
		SenderID:        in.SenderID,
		Type:            in.Type,
		Message:         in.Message,
		RelatedEntityID: in.RelatedEntityID,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	s.realtime.PublishUser(ctx, n.RecipientID, EventNotification, n)
	return n, nil
}

// notifyQuietly is used for side-effect notifications whose failure must not
// fail the triggering request.
func (s *NotificationService) notifyQuietly(ctx context.Context, in NotifyInput) {
	if s == nil {
		return
	}
	if _, err := s.Notify(ctx, in); err != nil {
		middleware.Ctx(ctx).Warn().Err(err).
			Uint("recipient_id", in.RecipientID).
			Str("type", string(in.Type)).
			Msg("failed to create notification")
	}
}

func (s *NotificationService) List(ctx context.Context, userID uint, limit, offset int) ([]*models.Notification, error) {
	return s.repo.ListByRecipient(ctx, userID, limit, offset)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID uint) (*models.Notification, error) {
	n, err := s.owned(ctx, userID, notificationID)
	if err != nil {
		return nil, err
	}
	if !n.IsRead {
		if err := s.repo.MarkRead(ctx, n.ID); err != nil {
			return nil, err
		}
		n.IsRead = true
	}
	return n, nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *NotificationService) Delete(ctx context.Context, userID, notificationID uint) error {
	n, err := s.owned(ctx, userID, notificationID)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, n.ID)
}

func (s *NotificationService) owned(ctx context.Context, userID, notificationID uint) (*models.Notification, error) {
	n, err := s.repo.GetByID(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if n.RecipientID != userID {
		return nil, models.NewForbiddenError("Not authorized")
	}
	return n, nil
}

package models

import "time"

// NotificationType is the kind of event a notification describes.
type NotificationType string

const (
	NotificationPostLike      NotificationType = "post_like"
	NotificationNewComment    NotificationType = "new_comment"
	NotificationFollow        NotificationType = "follow"
	NotificationNewMessage    NotificationType = "new_message"
	NotificationEventReminder NotificationType = "event_reminder"
)

// Notification is addressed to a single recipient and can be read or deleted only by them.
type Notification struct {
	ID              uint             `gorm:"primaryKey" json:"id"`
	RecipientID     uint             `gorm:"not null;index" json:"recipient_id"`
	SenderID        *uint            `json:"sender_id"`
	Sender          *User            `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Type            NotificationType `gorm:"type:varchar(32);not null" json:"type"`
	Message         string           `gorm:"not null" json:"message"`
	RelatedEntityID *uint            `json:"related_entity_id"`
	IsRead          bool             `gorm:"not null;default:false" json:"is_read"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

package models

import "time"

// MessageType is the payload kind of a chat message.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeVideo MessageType = "video"
)

// Valid reports whether t is a recognized message type.
func (t MessageType) Valid() bool {
	return t == MessageTypeText || t == MessageTypeImage || t == MessageTypeVideo
}

// Chat is the group conversation of an event post. There is at most one chat per post.
type Chat struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	PostID        uint      `gorm:"not null;uniqueIndex" json:"post_id"`
	GroupName     string    `gorm:"not null" json:"group_name"`
	LastMessageID *uint     `json:"last_message_id"`
	LastMessage   *Message  `gorm:"foreignKey:LastMessageID" json:"last_message,omitempty"`
	Participants  []User    `gorm:"many2many:chat_participants;joinForeignKey:ChatID;joinReferences:UserID" json:"participants,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HasParticipant reports whether userID is among the loaded participants.
func (c *Chat) HasParticipant(userID uint) bool {
	for _, p := range c.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}

// ChatParticipant is the join table between chats and users.
type ChatParticipant struct {
	ChatID   uint      `gorm:"primaryKey;autoIncrement:false" json:"chat_id"`
	UserID   uint      `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

// Message belongs to exactly one chat. Content is immutable after send.
type Message struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	ChatID    uint        `gorm:"not null;index:idx_messages_chat_created,priority:1" json:"chat_id"`
	SenderID  uint        `gorm:"not null;index" json:"sender_id"`
	Sender    *User       `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Type      MessageType `gorm:"type:varchar(10);not null;default:'text'" json:"type"`
	Content   string      `gorm:"type:text" json:"content"`
	MediaURL  string      `json:"media_url,omitempty"`
	ReadBy    []uint      `gorm:"-" json:"read_by"`
	CreatedAt time.Time   `gorm:"index:idx_messages_chat_created,priority:2" json:"created_at"`
}

// MessageRead records that a user has read a message.
type MessageRead struct {
	MessageID uint      `gorm:"primaryKey;autoIncrement:false" json:"message_id"`
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	ReadAt    time.Time `gorm:"autoCreateTime" json:"read_at"`
}

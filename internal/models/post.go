package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Post is authored content. Event posts carry a start time and location and
// track interested and attended users.
type Post struct {
	ID              uint                        `gorm:"primaryKey" json:"id"`
	AuthorID        uint                        `gorm:"not null;index" json:"author_id"`
	Author          *User                       `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Title           string                      `gorm:"size:100;not null" json:"title"`
	Description     string                      `gorm:"size:1000;not null" json:"description"`
	MediaURLs       datatypes.JSONSlice[string] `json:"media_urls"`
	IsEvent         bool                        `gorm:"not null;default:false;index" json:"is_event"`
	EventDateTime   *time.Time                  `gorm:"index" json:"event_date_time"`
	Location        *string                     `json:"location"`
	InterestedCount int                         `gorm:"not null;default:0" json:"interested_count"`
	CommentCount    int                         `gorm:"not null;default:0" json:"comment_count"`

	// Viewer-relative flags, filled by the repository.
	IsInterested bool `gorm:"-" json:"is_interested"`
	HasAttended  bool `gorm:"-" json:"has_attended"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// EventStarted reports whether the post is an event whose start time is at or before now.
func (p *Post) EventStarted(now time.Time) bool {
	return p.IsEvent && p.EventDateTime != nil && !now.Before(*p.EventDateTime)
}

// ClearEventFields nulls event-only attributes on non-event posts.
func (p *Post) ClearEventFields() {
	if !p.IsEvent {
		p.EventDateTime = nil
		p.Location = nil
	}
}

// PostInterest records that a user is interested in an event post.
type PostInterest struct {
	PostID    uint      `gorm:"primaryKey;autoIncrement:false" json:"post_id"`
	UserID    uint      `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// PostAttendance records that a user attended an event post.
type PostAttendance struct {
	PostID    uint      `gorm:"primaryKey;autoIncrement:false" json:"post_id"`
	UserID    uint      `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

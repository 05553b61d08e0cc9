// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// UserType distinguishes personal and corporate accounts.
type UserType string

const (
	UserTypePersonal  UserType = "personal"
	UserTypeCorporate UserType = "corporate"
)

// Valid reports whether t is one of the recognized account types.
func (t UserType) Valid() bool {
	return t == UserTypePersonal || t == UserTypeCorporate
}

// User is an account. It is created unverified on the first registration
// request and promoted to verified once the emailed code is confirmed.
type User struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Email           string     `gorm:"uniqueIndex;not null" json:"email"`
	Username        *string    `gorm:"uniqueIndex;size:30" json:"username"`
	Password        string     `gorm:"column:password_hash" json:"-"`
	UserType        UserType   `gorm:"type:varchar(20)" json:"user_type,omitempty"`
	IsVerified      bool       `gorm:"not null;default:false" json:"is_verified"`
	OTPHash         string     `json:"-"`
	OTPExpiresAt    *time.Time `json:"-"`
	Bio             string     `gorm:"size:200" json:"bio"`
	ProfileImageURL string     `json:"profile_image_url"`

	// Computed per request, never persisted.
	FollowersCount int64 `gorm:"-" json:"followers_count"`
	FollowingCount int64 `gorm:"-" json:"following_count"`
	IsFollowing    bool  `gorm:"-" json:"is_following"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Handle returns the username or an empty string for unverified accounts.
func (u *User) Handle() string {
	if u == nil || u.Username == nil {
		return ""
	}
	return *u.Username
}

// HasPendingCode reports whether a one-time code is stored and unexpired at now.
func (u *User) HasPendingCode(now time.Time) bool {
	return u.OTPHash != "" && u.OTPExpiresAt != nil && now.Before(*u.OTPExpiresAt)
}

// ClearCode drops any stored one-time code.
func (u *User) ClearCode() {
	u.OTPHash = ""
	u.OTPExpiresAt = nil
}

// PublicUserColumns are the columns loaded when a user is embedded as an author or sender.
var PublicUserColumns = []string{"id", "username", "profile_image_url"}

// Follow is one edge of the follow graph. A single row is both the follower's
// following-set entry and the followee's followers-set entry.
type Follow struct {
	FollowerID uint      `gorm:"primaryKey;autoIncrement:false" json:"follower_id"`
	FolloweeID uint      `gorm:"primaryKey;autoIncrement:false;index" json:"followee_id"`
	CreatedAt  time.Time `json:"created_at"`
}

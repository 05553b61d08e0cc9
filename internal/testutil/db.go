// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"eventsocial/internal/database"
	"eventsocial/internal/models"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestPassword is the plain password of users created by CreateUser.
const TestPassword = "secret123"

// NewTestDB opens a migrated in-memory sqlite database private to t. A single
// connection is used so transactions serialize the way row locks would.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: database.NewGormLogger().LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// CreateUser inserts a verified personal user named username.
func CreateUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	require.NoError(t, err)

	name := username
	user := &models.User{
		Email:      username + "@example.com",
		Username:   &name,
		Password:   string(hash),
		UserType:   models.UserTypePersonal,
		IsVerified: true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreatePost inserts a plain post by author.
func CreatePost(t *testing.T, db *gorm.DB, author *models.User, title string) *models.Post {
	t.Helper()

	post := &models.Post{AuthorID: author.ID, Title: title, Description: title + " description"}
	require.NoError(t, db.Create(post).Error)
	return post
}

// CreateEvent inserts an event post by author starting at start.
func CreateEvent(t *testing.T, db *gorm.DB, author *models.User, title string, start time.Time) *models.Post {
	t.Helper()

	start = start.UTC()
	location := "Main hall"
	post := &models.Post{
		AuthorID:      author.ID,
		Title:         title,
		Description:   title + " description",
		IsEvent:       true,
		EventDateTime: &start,
		Location:      &location,
	}
	require.NoError(t, db.Create(post).Error)
	return post
}

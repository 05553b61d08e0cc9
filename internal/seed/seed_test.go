package seed

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"eventsocial/internal/models"
	"eventsocial/internal/testutil"
	"eventsocial/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactory_DryRun(t *testing.T) {
	f := NewFactory(nil, Options{DryRun: true, MaxDays: 30, SkipBcrypt: true, RandomSeed: 7})

	user, err := f.CreateUser()
	require.NoError(t, err)
	assert.Equal(t, uint(1001), user.ID)
	assert.True(t, user.IsVerified)
	assert.NoError(t, validation.ValidateUsername(user.Handle()))

	post, err := f.CreatePost(user)
	require.NoError(t, err)
	assert.Equal(t, uint(1002), post.ID)
	assert.False(t, post.IsEvent)
	assert.Nil(t, post.EventDateTime)
	assert.LessOrEqual(t, time.Since(post.CreatedAt), 31*24*time.Hour)
	assert.LessOrEqual(t, len(post.Title), 100)

	start := f.EventStart(true)
	event, err := f.CreateEvent(user, start)
	require.NoError(t, err)
	require.NotNil(t, event.EventDateTime)
	require.NotNil(t, event.Location)
	assert.True(t, event.IsEvent)
	assert.True(t, event.EventDateTime.After(time.Now()))
	assert.True(t, event.CreatedAt.Before(*event.EventDateTime))
	assert.False(t, event.EventStarted(time.Now()))

	past := f.EventStart(false)
	assert.True(t, past.Before(time.Now()))
}

func TestSeeder_Run(t *testing.T) {
	db := testutil.NewTestDB(t)
	s := NewSeeder(db, Options{
		NumUsers:        6,
		NumPosts:        12,
		EventRatio:      1,
		UpcomingRatio:   0.5,
		FollowsPerUser:  2,
		InterestPerPost: 3,
		CommentsPerPost: 1,
		MessagesPerChat: 2,
		MaxDays:         10,
		SkipBcrypt:      true,
		RandomSeed:      42,
	})

	res, err := s.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 6, res.Users)
	assert.Equal(t, 12, res.Follows)
	assert.Equal(t, 12, res.Posts)
	assert.Equal(t, 12, res.Events)
	assert.Equal(t, 12, res.Comments)

	count := func(model any) int64 {
		var n int64
		require.NoError(t, db.Model(model).Count(&n).Error)
		return n
	}
	assert.EqualValues(t, 6, count(&models.User{}))
	assert.EqualValues(t, 12, count(&models.Follow{}))
	assert.EqualValues(t, 12, count(&models.Comment{}))
	assert.EqualValues(t, res.Chats, count(&models.Chat{}))
	assert.EqualValues(t, res.Messages, count(&models.Message{}))
	assert.EqualValues(t, res.Attended, count(&models.PostAttendance{}))

	// Denormalized counters agree with the join tables.
	var interested, comments int64
	require.NoError(t, db.Model(&models.Post{}).Select("COALESCE(SUM(interested_count), 0)").Scan(&interested).Error)
	require.NoError(t, db.Model(&models.Post{}).Select("COALESCE(SUM(comment_count), 0)").Scan(&comments).Error)
	assert.Equal(t, count(&models.PostInterest{}), interested)
	assert.EqualValues(t, 12, comments)

	// Only upcoming events get chats.
	var chats []models.Chat
	require.NoError(t, db.Find(&chats).Error)
	for _, c := range chats {
		var post models.Post
		require.NoError(t, db.First(&post, c.PostID).Error)
		assert.False(t, post.EventStarted(time.Now()), "chat %d on started event", c.ID)
	}

	require.NoError(t, s.ClearAll())
	for _, m := range []any{&models.User{}, &models.Post{}, &models.Chat{}, &models.Message{}, &models.Follow{}} {
		assert.Zero(t, count(m), "%T", m)
	}
}

func TestSeeder_DryRunWritesNothing(t *testing.T) {
	db := testutil.NewTestDB(t)
	opts := Presets["minimal"]
	opts.DryRun = true

	res, err := NewSeeder(db, opts).Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, opts.NumUsers, res.Users)
	assert.Equal(t, opts.NumPosts, res.Posts)
	assert.Zero(t, res.Follows)

	var users int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.Zero(t, users)
}

func TestPreset(t *testing.T) {
	opts, err := Preset("Minimal")
	require.NoError(t, err)
	assert.Equal(t, 5, opts.NumUsers)

	_, err = Preset("nope")
	assert.ErrorContains(t, err, "busy, demo, minimal")

	path := filepath.Join(t.TempDir(), "small.yaml")
	require.NoError(t, os.WriteFile(path, []byte("users: 3\nevent_ratio: 0.25\nclean: false\n"), 0o600))
	opts, err = Preset(path)
	require.NoError(t, err)
	assert.Equal(t, 3, opts.NumUsers)
	assert.InDelta(t, 0.25, opts.EventRatio, 1e-9)
	assert.False(t, opts.ShouldClean)
	assert.Equal(t, DefaultOptions().NumPosts, opts.NumPosts)
}

func TestParsePreset_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":       "users: [",
		"negative users": "users: -1",
		"ratio above 1":  "event_ratio: 1.5",
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParsePreset([]byte(raw))
			assert.Error(t, err)
		})
	}
}

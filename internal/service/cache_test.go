package service

import (
	"context"
	"testing"
	"time"

	"eventsocial/internal/cache"
	"eventsocial/internal/models"
	"eventsocial/internal/repository"
	"eventsocial/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// useTestCache points the cache package at a fresh miniredis for one test.
// Tests that call it must not run in parallel.
func useTestCache(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache.SetClient(rdb)
	t.Cleanup(func() {
		cache.SetClient(nil)
		_ = rdb.Close()
	})
	return mr
}

func TestPostService_GetPostServesFromCache(t *testing.T) {
	mr := useTestCache(t)
	db := testutil.NewTestDB(t)
	author := testutil.CreateUser(t, db, "bob")
	guest := testutil.CreateUser(t, db, "carol")
	event := testutil.CreateEvent(t, db, author, "Concert", time.Now().Add(24*time.Hour))
	ctx := context.Background()

	posts := repository.NewPostRepository(db)
	svc := NewPostService(posts, repository.NewUserRepository(db), nil)
	comments := NewCommentService(repository.NewCommentRepository(db), posts,
		NewNotificationService(repository.NewNotificationRepository(db), newRecordingRealtime()))

	first, err := svc.GetPost(ctx, event.ID, guest.ID)
	require.NoError(t, err)
	assert.Equal(t, "Concert", first.Title)
	assert.True(t, mr.Exists(cache.PostKey(event.ID)))

	// A write that bypasses the services is invisible until the key goes.
	require.NoError(t, db.Model(&models.Post{}).Where("id = ?", event.ID).Update("title", "Renamed").Error)
	cached, err := svc.GetPost(ctx, event.ID, guest.ID)
	require.NoError(t, err)
	assert.Equal(t, "Concert", cached.Title)

	_, err = comments.CreateComment(ctx, CreateCommentInput{UserID: guest.ID, PostID: event.ID, Content: "count me in"})
	require.NoError(t, err)
	assert.False(t, mr.Exists(cache.PostKey(event.ID)))

	fresh, err := svc.GetPost(ctx, event.ID, guest.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", fresh.Title)
	assert.Equal(t, 1, fresh.CommentCount)
}

func TestPostService_GetPostAppliesViewerFlagsOverCache(t *testing.T) {
	mr := useTestCache(t)
	db := testutil.NewTestDB(t)
	author := testutil.CreateUser(t, db, "bob")
	guest := testutil.CreateUser(t, db, "carol")
	event := testutil.CreateEvent(t, db, author, "Concert", time.Now().Add(24*time.Hour))
	ctx := context.Background()

	posts := repository.NewPostRepository(db)
	svc := NewPostService(posts, repository.NewUserRepository(db), nil)

	_, err := svc.GetPost(ctx, event.ID, author.ID)
	require.NoError(t, err)
	require.True(t, mr.Exists(cache.PostKey(event.ID)))

	res, err := svc.ToggleInterest(ctx, event.ID, guest.ID)
	require.NoError(t, err)
	require.True(t, res.Interested)
	assert.False(t, mr.Exists(cache.PostKey(event.ID)))

	asGuest, err := svc.GetPost(ctx, event.ID, guest.ID)
	require.NoError(t, err)
	assert.True(t, asGuest.IsInterested)
	assert.Equal(t, 1, asGuest.InterestedCount)

	// The same cached entry serves other viewers with their own flags.
	asAuthor, err := svc.GetPost(ctx, event.ID, author.ID)
	require.NoError(t, err)
	assert.False(t, asAuthor.IsInterested)
	assert.Equal(t, 1, asAuthor.InterestedCount)

	anonymous, err := svc.GetPost(ctx, event.ID, 0)
	require.NoError(t, err)
	assert.False(t, anonymous.IsInterested)
	assert.False(t, anonymous.HasAttended)

	// Attendance after the start is reflected without touching the cache.
	require.NoError(t, db.Model(&models.Post{}).Where("id = ?", event.ID).
		Update("event_date_time", time.Now().Add(-time.Hour).UTC()).Error)
	_, err = posts.AddAttendance(ctx, event.ID, guest.ID)
	require.NoError(t, err)
	attended, err := svc.GetPost(ctx, event.ID, guest.ID)
	require.NoError(t, err)
	assert.True(t, attended.HasAttended)
	assert.True(t, attended.IsInterested)
}

func TestPostService_GetPostMissingIsNotCached(t *testing.T) {
	mr := useTestCache(t)
	db := testutil.NewTestDB(t)
	svc := NewPostService(repository.NewPostRepository(db), repository.NewUserRepository(db), nil)

	_, err := svc.GetPost(context.Background(), 4242, 0)
	assertNotFoundError(t, err)
	assert.False(t, mr.Exists(cache.PostKey(4242)))
}

func TestAuthService_ConfirmRegistrationDropsCachedProfile(t *testing.T) {
	mr := useTestCache(t)
	svc, m, users := newAuthFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.RequestRegistration(ctx, "pending@x.com"))
	pending, err := users.GetByEmail(ctx, "pending@x.com")
	require.NoError(t, err)
	require.NotNil(t, pending)

	// A profile read while unverified leaves a stale entry behind.
	require.NoError(t, cache.SetJSON(ctx, cache.UserKey(pending.ID), pending, cache.UserTTL))
	require.True(t, mr.Exists(cache.UserKey(pending.ID)))

	code, ok := m.LastCode("pending@x.com")
	require.True(t, ok)
	_, err = svc.ConfirmRegistration(ctx, confirmInput("pending@x.com", code))
	require.NoError(t, err)
	assert.False(t, mr.Exists(cache.UserKey(pending.ID)))
}

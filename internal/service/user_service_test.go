package service

import (
	"context"
	"strings"
	"testing"

	"eventsocial/internal/config"
	"eventsocial/internal/models"
	"eventsocial/internal/repository"
	"eventsocial/internal/storage"
	"eventsocial/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newUserFixture(t *testing.T) (*UserService, *recordingRealtime, *gorm.DB) {
	t.Helper()
	db := testutil.NewTestDB(t)
	rt := newRecordingRealtime()
	store, err := storage.NewLocalStore(t.TempDir(), "http://localhost/media")
	require.NoError(t, err)
	notifications := NewNotificationService(repository.NewNotificationRepository(db), rt)
	svc := NewUserService(repository.NewUserRepository(db), NewMediaService(store, &config.Config{}), notifications)
	return svc, rt, db
}

func TestUserService_FollowUnfollow(t *testing.T) {
	svc, rt, db := newUserFixture(t)
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	ctx := context.Background()

	assertValidationError(t, svc.Follow(ctx, alice.ID, alice.ID))
	assertNotFoundError(t, svc.Follow(ctx, alice.ID, 9999))

	require.NoError(t, svc.Follow(ctx, alice.ID, bob.ID))
	assertConflictError(t, svc.Follow(ctx, alice.ID, bob.ID))

	profile, err := svc.GetProfile(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), profile.FollowersCount)
	assert.True(t, profile.IsFollowing)

	followers, err := svc.ListFollowers(ctx, bob.ID, 20, 0)
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, alice.ID, followers[0].ID)

	following, err := svc.ListFollowing(ctx, alice.ID, 20, 0)
	require.NoError(t, err)
	require.Len(t, following, 1)
	assert.Equal(t, bob.ID, following[0].ID)

	// The followee is notified in real time.
	events := rt.eventsNamed(EventNotification)
	require.Len(t, events, 1)
	assert.Equal(t, bob.ID, events[0].ID)
	n := events[0].Payload.(*models.Notification)
	assert.Equal(t, models.NotificationFollow, n.Type)
	assert.Contains(t, n.Message, "alice")

	require.NoError(t, svc.Unfollow(ctx, alice.ID, bob.ID))
	assertConflictError(t, svc.Unfollow(ctx, alice.ID, bob.ID))

	profile, err = svc.GetProfile(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), profile.FollowersCount)
	assert.False(t, profile.IsFollowing)
}

func TestUserService_UpdateProfile(t *testing.T) {
	svc, _, db := newUserFixture(t)
	alice := testutil.CreateUser(t, db, "alice")
	testutil.CreateUser(t, db, "bob")
	ctx := context.Background()

	str := func(s string) *string { return &s }

	_, err := svc.UpdateProfile(ctx, UpdateProfileInput{ActorID: alice.ID + 1, UserID: alice.ID, Bio: str("hi")})
	assertForbiddenError(t, err)

	_, err = svc.UpdateProfile(ctx, UpdateProfileInput{ActorID: alice.ID, UserID: alice.ID, Bio: str(strings.Repeat("x", 201))})
	assertValidationError(t, err)

	_, err = svc.UpdateProfile(ctx, UpdateProfileInput{ActorID: alice.ID, UserID: alice.ID, Username: str("bob")})
	assertConflictError(t, err)

	user, err := svc.UpdateProfile(ctx, UpdateProfileInput{
		ActorID:  alice.ID,
		UserID:   alice.ID,
		Username: str("alice_2"),
		Bio:      str("  hello there "),
		ProfileImage: &MediaFile{
			Filename:    "me.png",
			ContentType: "image/png",
			Data:        testutil.PNGBytes(t, 64, 64),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "alice_2", user.Handle())
	assert.Equal(t, "hello there", user.Bio)
	assert.True(t, strings.HasPrefix(user.ProfileImageURL, "http://localhost/media/profiles/"))
	assert.True(t, strings.HasSuffix(user.ProfileImageURL, ".webp"))
}

func TestUserService_GetProfileNotFound(t *testing.T) {
	svc, _, _ := newUserFixture(t)
	_, err := svc.GetProfile(context.Background(), 4242, 0)
	assertNotFoundError(t, err)
}

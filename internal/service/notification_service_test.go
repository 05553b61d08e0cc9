package service

import (
	"context"
	"testing"

	"eventsocial/internal/models"
	"eventsocial/internal/repository"
	"eventsocial/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationService_RecipientOnly(t *testing.T) {
	db := testutil.NewTestDB(t)
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	rt := newRecordingRealtime()
	svc := NewNotificationService(repository.NewNotificationRepository(db), rt)
	ctx := context.Background()

	n, err := svc.Notify(ctx, NotifyInput{RecipientID: alice.ID, SenderID: &bob.ID, Type: models.NotificationFollow, Message: "bob followed you"})
	require.NoError(t, err)
	require.NotNil(t, n.Sender)
	assert.Equal(t, "bob", n.Sender.Handle())
	require.Len(t, rt.eventsNamed(EventNotification), 1)

	_, err = svc.MarkRead(ctx, bob.ID, n.ID)
	assertForbiddenError(t, err)
	assertForbiddenError(t, svc.Delete(ctx, bob.ID, n.ID))

	count, err := svc.UnreadCount(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	read, err := svc.MarkRead(ctx, alice.ID, n.ID)
	require.NoError(t, err)
	assert.True(t, read.IsRead)

	count, err = svc.UnreadCount(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	require.NoError(t, svc.Delete(ctx, alice.ID, n.ID))
	_, err = svc.MarkRead(ctx, alice.ID, n.ID)
	assertNotFoundError(t, err)
}

func TestNotificationService_MarkAllRead(t *testing.T) {
	db := testutil.NewTestDB(t)
	alice := testutil.CreateUser(t, db, "alice")
	svc := NewNotificationService(repository.NewNotificationRepository(db), nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Notify(ctx, NotifyInput{RecipientID: alice.ID, Type: models.NotificationEventReminder, Message: "soon"})
		require.NoError(t, err)
	}
	_, err := svc.Notify(ctx, NotifyInput{RecipientID: alice.ID})
	assertValidationError(t, err)

	n, err := svc.MarkAllRead(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	list, err := svc.List(ctx, alice.ID, 20, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for _, item := range list {
		assert.True(t, item.IsRead)
	}
}

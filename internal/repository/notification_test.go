package repository

import (
	"context"
	"testing"

	"eventsocial/internal/models"
	"eventsocial/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationRepository(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewNotificationRepository(db)
	ctx := context.Background()

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")

	n := &models.Notification{
		RecipientID: alice.ID,
		SenderID:    &bob.ID,
		Type:        models.NotificationFollow,
		Message:     "bob started following you",
	}
	require.NoError(t, repo.Create(ctx, n))
	require.NotNil(t, n.Sender)
	assert.Equal(t, "bob", n.Sender.Handle())

	require.NoError(t, repo.Create(ctx, &models.Notification{
		RecipientID: alice.ID,
		Type:        models.NotificationEventReminder,
		Message:     "Your event starts soon",
	}))

	unread, err := repo.CountUnread(ctx, alice.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, unread)

	require.NoError(t, repo.MarkRead(ctx, n.ID))
	unread, err = repo.CountUnread(ctx, alice.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, unread)

	marked, err := repo.MarkAllRead(ctx, alice.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, marked)

	list, err := repo.ListByRecipient(ctx, alice.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, models.NotificationEventReminder, list[0].Type)
	assert.Nil(t, list[0].Sender)
	require.NotNil(t, list[1].Sender)

	require.NoError(t, repo.Delete(ctx, n.ID))
	_, err = repo.GetByID(ctx, n.ID)
	assert.Equal(t, models.CodeNotFound, models.ErrorCode(err))
}

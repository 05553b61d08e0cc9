package service

import (
	"context"
	"testing"
	"time"

	"eventsocial/internal/repository"
	"eventsocial/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOTPSweeper_Sweep(t *testing.T) {
	db := testutil.NewTestDB(t)
	users := repository.NewUserRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := users.UpsertPendingCode(ctx, "old@x.com", "hash", now.Add(-time.Minute))
	require.NoError(t, err)
	_, err = users.UpsertPendingCode(ctx, "fresh@x.com", "hash", now.Add(5*time.Minute))
	require.NoError(t, err)

	sweeper := NewOTPSweeper(users, "")
	sweeper.now = fixedClock(now)

	n, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	old, err := users.GetByEmail(ctx, "old@x.com")
	require.NoError(t, err)
	assert.Empty(t, old.OTPHash)
	assert.Nil(t, old.OTPExpiresAt)

	fresh, err := users.GetByEmail(ctx, "fresh@x.com")
	require.NoError(t, err)
	assert.True(t, fresh.HasPendingCode(now))
}

func TestOTPSweeper_StartRejectsBadSchedule(t *testing.T) {
	sweeper := NewOTPSweeper(nil, "not a schedule")
	assert.Error(t, sweeper.Start())

	ok := NewOTPSweeper(nil, "@every 1h")
	require.NoError(t, ok.Start())
	ok.Stop()
}

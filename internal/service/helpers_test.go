package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"eventsocial/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	bcryptCost = bcrypt.MinCost
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code, appErr.Message)
}

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertCode(t, err, models.CodeValidation)
}

func assertForbiddenError(t *testing.T, err error) {
	t.Helper()
	assertCode(t, err, models.CodeForbidden)
}

func assertNotFoundError(t *testing.T, err error) {
	t.Helper()
	assertCode(t, err, models.CodeNotFound)
}

func assertConflictError(t *testing.T, err error) {
	t.Helper()
	assertCode(t, err, models.CodeConflict)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

type publishedEvent struct {
	Target  string
	ID      uint
	Event   string
	Payload interface{}
}

// recordingRealtime captures everything services push to the gateway.
type recordingRealtime struct {
	mu            sync.Mutex
	events        []publishedEvent
	subscriptions map[uint][]uint
}

func newRecordingRealtime() *recordingRealtime {
	return &recordingRealtime{subscriptions: map[uint][]uint{}}
}

func (r *recordingRealtime) PublishUser(_ context.Context, userID uint, event string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, publishedEvent{Target: "user", ID: userID, Event: event, Payload: payload})
}

func (r *recordingRealtime) PublishChat(_ context.Context, chatID uint, event string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, publishedEvent{Target: "chat", ID: chatID, Event: event, Payload: payload})
}

func (r *recordingRealtime) SubscribeUserToChat(_ context.Context, userID, chatID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscriptions[userID] = append(r.subscriptions[userID], chatID)
}

func (r *recordingRealtime) eventsNamed(name string) []publishedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []publishedEvent
	for _, e := range r.events {
		if e.Event == name {
			out = append(out, e)
		}
	}
	return out
}

func (r *recordingRealtime) chatsOf(userID uint) []uint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint(nil), r.subscriptions[userID]...)
}

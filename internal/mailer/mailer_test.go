package mailer

import (
	"context"
	"errors"
	"testing"

	"eventsocial/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, m...)
	return nil
}

func TestNew_FallsBackToLogMailer(t *testing.T) {
	_, ok := New(&config.Config{}).(*LogMailer)
	assert.True(t, ok)

	_, ok = New(&config.Config{SMTPHost: "smtp.example.com", SMTPPort: 587}).(*SMTPMailer)
	assert.True(t, ok)
}

func TestSMTPMailer_SendOTP(t *testing.T) {
	d := &fakeDialer{}
	m := &SMTPMailer{from: "no-reply@example.com", dialer: d}

	require.NoError(t, m.SendOTP(context.Background(), "a@x.com", "123456"))
	require.Len(t, d.sent, 1)
	assert.Equal(t, []string{"a@x.com"}, d.sent[0].GetHeader("To"))
	assert.Equal(t, []string{otpSubject}, d.sent[0].GetHeader("Subject"))
}

func TestSMTPMailer_SendOTPError(t *testing.T) {
	m := &SMTPMailer{from: "no-reply@example.com", dialer: &fakeDialer{err: errors.New("connection refused")}}

	err := m.SendOTP(context.Background(), "a@x.com", "123456")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestLogMailer_RemembersLastCode(t *testing.T) {
	m := &LogMailer{}
	_, ok := m.LastCode("a@x.com")
	assert.False(t, ok)

	require.NoError(t, m.SendOTP(context.Background(), "a@x.com", "111111"))
	require.NoError(t, m.SendOTP(context.Background(), "a@x.com", "222222"))

	code, ok := m.LastCode("a@x.com")
	assert.True(t, ok)
	assert.Equal(t, "222222", code)
}

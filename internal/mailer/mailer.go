// Package mailer delivers one-time registration codes by email.
package mailer

import (
	"context"
	"fmt"
	"sync"

	"eventsocial/internal/config"
	"eventsocial/internal/middleware"

	"gopkg.in/gomail.v2"
)

const otpSubject = "Your Registration OTP"

// Mailer sends registration codes. Implementations must be safe for concurrent use.
type Mailer interface {
	SendOTP(ctx context.Context, email, code string) error
}

// New returns an SMTP mailer when SMTP_HOST is configured, otherwise a
// LogMailer that only writes the code to the log.
func New(cfg *config.Config) Mailer {
	if cfg == nil || cfg.SMTPHost == "" {
		return &LogMailer{}
	}
	return NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer sends mail through an SMTP relay.
type SMTPMailer struct {
	from   string
	dialer dialer
}

func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	return &SMTPMailer{
		from:   from,
		dialer: gomail.NewDialer(host, port, username, password),
	}
}

func (m *SMTPMailer) SendOTP(ctx context.Context, email, code string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", otpSubject)
	msg.SetBody("text/plain", otpText(code))
	msg.AddAlternative("text/html", otpHTML(code))

	if err := m.dialer.DialAndSend(msg); err != nil {
		middleware.Ctx(ctx).Error().Err(err).Str("email", email).Msg("failed to send otp email")
		return fmt.Errorf("send otp email: %w", err)
	}
	middleware.Ctx(ctx).Info().Str("email", email).Msg("otp email sent")
	return nil
}

func otpText(code string) string {
	return fmt.Sprintf("Your one-time registration code is %s. It expires in 10 minutes.", code)
}

func otpHTML(code string) string {
	return fmt.Sprintf(`<h2>Email Verification</h2>
<p>Your one-time registration code is:</p>
<h1>%s</h1>
<p>This code expires in 10 minutes.</p>`, code)
}

// LogMailer logs codes instead of sending them. It also remembers the last
// code per address, which tests and local tooling read back.
type LogMailer struct {
	mu   sync.Mutex
	sent map[string]string
}

func (m *LogMailer) SendOTP(ctx context.Context, email, code string) error {
	m.mu.Lock()
	if m.sent == nil {
		m.sent = make(map[string]string)
	}
	m.sent[email] = code
	m.mu.Unlock()

	middleware.Ctx(ctx).Info().Str("email", email).Str("otp", code).Msg("otp email (not sent, no SMTP configured)")
	return nil
}

// LastCode returns the most recent code sent to email.
func (m *LogMailer) LastCode(email string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	code, ok := m.sent[email]
	return code, ok
}

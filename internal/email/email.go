// Package email delivers verification codes.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/resend/resend-go/v2"
)

const codeSubject = "Your OTP for Notes App"

type Sender interface {
	SendCode(ctx context.Context, to, code string) error
}

// LogSender logs codes instead of sending them. Used in ENV=local only: the
// code ends up in the log, which is the point during development.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendCode(_ context.Context, to, code string) error {
	s.logger.Info("verification code email (local dev)", "to", to, "subject", codeSubject, "code", code)
	return nil
}

// emailsAPI is the slice of resend's Emails service we use.
type emailsAPI interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// ResendSender sends codes via the Resend API. Used in staging/production.
type ResendSender struct {
	emails emailsAPI
	from   string
	ttl    time.Duration // how long a code lives, quoted in the message
}

func NewResendSender(apiKey, from string, ttl time.Duration) *ResendSender {
	return &ResendSender{
		emails: resend.NewClient(apiKey).Emails,
		from:   from,
		ttl:    ttl,
	}
}

func (s *ResendSender) SendCode(ctx context.Context, to, code string) error {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: codeSubject,
		Text:    codeText(code, s.ttl),
		Html:    codeHTML(code, s.ttl),
	}
	if _, err := s.emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func codeText(code string, ttl time.Duration) string {
	return fmt.Sprintf("Your OTP is: %s. It will expire in %s.", code, expiryPhrase(ttl))
}

func codeHTML(code string, ttl time.Duration) string {
	return fmt.Sprintf("<p>Your OTP is: <strong>%s</strong></p><p>It will expire in %s.</p>", code, expiryPhrase(ttl))
}

// expiryPhrase renders a TTL for humans: "5 minutes", "1 minute", "90 seconds".
func expiryPhrase(ttl time.Duration) string {
	switch {
	case ttl <= 0:
		return "a few minutes"
	case ttl%time.Minute != 0:
		return fmt.Sprintf("%d seconds", int(ttl/time.Second))
	case ttl == time.Minute:
		return "1 minute"
	default:
		return fmt.Sprintf("%d minutes", int(ttl/time.Minute))
	}
}

// NewSender returns a LogSender for ENV=local, ResendSender otherwise.
func NewSender(env, apiKey, from string, ttl time.Duration, logger *slog.Logger) Sender {
	if env == "local" {
		return NewLogSender(logger)
	}
	return NewResendSender(apiKey, from, ttl)
}

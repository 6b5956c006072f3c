// Package notify is the outbound message boundary. The gate depends only
// on the Sender port; delivery failures are reported to callers but are
// never fatal to the flow that triggered them.
package notify

import (
	"context"
	"log/slog"
)

//go:generate mockgen -source=sender.go -destination=mocks/sender_mock.go -package=mocks Sender

// Sender delivers a message to a recipient.
type Sender interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// LogSender writes messages to the log instead of delivering them.
// Dev-only fallback when no SMTP host is configured.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, recipient, subject, body string) error {
	s.logger.InfoContext(ctx, "outbound message (log sender)",
		"recipient", recipient,
		"subject", subject,
		"body", body,
	)
	return nil
}

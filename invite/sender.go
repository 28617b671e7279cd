// Package invite hands personal view links to a delivery channel.
package invite

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Invite is one personal link to deliver.
type Invite struct {
	To         string
	PitchTitle string
	ViewURL    string
	Message    string
	ExpiresAt  *time.Time
}

// Sender delivers invites. Implementations may be slow; they are called after
// the token is minted and a failure does not revoke it.
type Sender interface {
	Send(ctx context.Context, inv Invite) error
}

// LogSender records invites in the log instead of sending mail.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger.With(zap.String("component", "invite"))}
}

func (s *LogSender) Send(_ context.Context, inv Invite) error {
	fields := []zap.Field{
		zap.String("to", inv.To),
		zap.String("pitch", inv.PitchTitle),
		zap.String("url", inv.ViewURL),
	}
	if inv.ExpiresAt != nil {
		fields = append(fields, zap.Time("expires_at", *inv.ExpiresAt))
	}
	s.logger.Info("invite ready", fields...)
	return nil
}

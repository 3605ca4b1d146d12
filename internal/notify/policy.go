package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/confluencebot/internal/domain"
)

// NightMode suppresses info notifications while the trading window is
// closed. Warnings and criticals always pass.
type NightMode struct {
	next     domain.NotificationSink
	inWindow func(time.Time) bool
	now      func() time.Time
	logger   *slog.Logger
}

var _ domain.NotificationSink = (*NightMode)(nil)

// NewNightMode wraps next. inWindow reports whether the trading window is
// open at the given instant.
func NewNightMode(next domain.NotificationSink, inWindow func(time.Time) bool, logger *slog.Logger) *NightMode {
	return &NightMode{
		next:     next,
		inWindow: inWindow,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger.With(slog.String("component", "night_mode")),
	}
}

func (n *NightMode) Send(ctx context.Context, message string, severity domain.Severity) error {
	if severity == domain.SeverityInfo && !n.inWindow(n.now()) {
		n.logger.DebugContext(ctx, "info notification suppressed outside trading window")
		return nil
	}
	return n.next.Send(ctx, message, severity)
}

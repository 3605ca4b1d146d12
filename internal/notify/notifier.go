// Package notify delivers operator notifications to one or more channels
// (Discord, Telegram). Notifications carry a severity, and the set of
// severities forwarded can be restricted.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/confluencebot/internal/domain"
)

// Message is one rendered notification.
type Message struct {
	Title    string
	Body     string
	Severity domain.Severity
	At       time.Time
}

// Sender is implemented by each notification channel.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// Notifier fans a notification out to every Sender. Only severities in the
// allowed set are forwarded; an empty set allows all.
type Notifier struct {
	senders []Sender
	allowed map[domain.Severity]bool
	logger  *slog.Logger
	now     func() time.Time
}

var _ domain.NotificationSink = (*Notifier)(nil)

// NewNotifier creates a Notifier. severities holds severity names ("info",
// "warning", "critical"); unknown names are ignored.
func NewNotifier(senders []Sender, severities []string, logger *slog.Logger) *Notifier {
	allowed := make(map[domain.Severity]bool, len(severities))
	for _, s := range severities {
		if sev, ok := ParseSeverity(s); ok {
			allowed[sev] = true
		}
	}
	return &Notifier{
		senders: senders,
		allowed: allowed,
		logger:  logger.With(slog.String("component", "notifier")),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ParseSeverity maps a severity name to its value.
func ParseSeverity(s string) (domain.Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info":
		return domain.SeverityInfo, true
	case "warning", "warn":
		return domain.SeverityWarning, true
	case "critical":
		return domain.SeverityCritical, true
	}
	return domain.SeverityInfo, false
}

// Send delivers message to every sender. A failing sender does not prevent
// delivery to the others; all failures are returned joined.
func (n *Notifier) Send(ctx context.Context, message string, severity domain.Severity) error {
	if len(n.allowed) > 0 && !n.allowed[severity] {
		n.logger.DebugContext(ctx, "notification filtered out",
			slog.String("severity", severity.String()),
		)
		return nil
	}
	if len(n.senders) == 0 {
		return nil
	}

	msg := Message{
		Title:    title(severity),
		Body:     message,
		Severity: severity,
		At:       n.now(),
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, msg); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("severity", severity.String()),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

func title(sev domain.Severity) string {
	switch sev {
	case domain.SeverityCritical:
		return "CRITICAL"
	case domain.SeverityWarning:
		return "Warning"
	default:
		return "Trade update"
	}
}

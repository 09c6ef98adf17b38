// Package notify delivers operator alerts for trading events. The
// engine fires notifications for placed trades, failed legs, resolved
// rounds, abandoned batches, and redemptions; a Notifier fans each one
// out to its configured senders. A Notifier with no senders swallows
// everything, so callers never need a nil check.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Sender is one delivery channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier dispatches alerts to its senders. When an allow-list of
// event types is configured, Notify drops events outside it.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// New creates a Notifier. events is the allow-list of event types; an
// empty list allows everything.
func New(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Noop returns a Notifier that delivers nowhere.
func Noop(logger *slog.Logger) *Notifier {
	return New(nil, nil, logger)
}

// Notify delivers one alert to every sender, subject to the event
// allow-list. Sender failures are logged and collected; one bad channel
// never blocks the others.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		return nil
	}
	if len(n.senders) == 0 {
		return nil
	}

	var failed []string
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.Warn("alert delivery failed",
				slog.String("sender", s.Name()),
				slog.String("event", event),
				slog.String("error", err.Error()))
			failed = append(failed, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		n.logger.Debug("alert sent",
			slog.String("sender", s.Name()),
			slog.String("event", event))
	}

	if len(failed) > 0 {
		return fmt.Errorf("notify: %s", strings.Join(failed, "; "))
	}
	return nil
}

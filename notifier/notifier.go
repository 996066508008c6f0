// notifier/notifier.go
package notifier

import (
	"context"
	"log/slog"
)

// Notifier delivers a plain-text message to the operator.
type Notifier interface {
	Send(ctx context.Context, message string) error
}

// LogNotifier writes messages to the log. It is used when no chat channel
// is configured.
type LogNotifier struct{}

func (LogNotifier) Send(ctx context.Context, message string) error {
	slog.InfoContext(ctx, "Notifier: message", "content", message)
	return nil
}

// Deliver sends message and only logs a failure. Notifications never block
// or undo ledger writes.
func Deliver(ctx context.Context, n Notifier, message string) {
	if n == nil {
		return
	}
	if err := n.Send(ctx, message); err != nil {
		slog.ErrorContext(ctx, "Notifier: delivery failed", "err", err)
	}
}

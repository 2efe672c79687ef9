package notify

import "context"

// Notifier delivers a user-facing message. Delivery is best-effort: callers
// log failures and never let them affect the state transition that triggered
// the notification.
type Notifier interface {
	Notify(ctx context.Context, userID, title, body string) error
}

// Noop discards every notification. Used in tests and when no broker is
// configured.
type Noop struct{}

func (Noop) Notify(context.Context, string, string, string) error {
	return nil
}

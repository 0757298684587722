package automation

import "log/slog"

// Notifier receives short human-readable status strings: run start,
// per-item outcome, run end. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(string)

func (f NotifierFunc) Notify(message string) { f(message) }

// SlogNotifier surfaces notifications through the structured log.
type SlogNotifier struct{}

func (SlogNotifier) Notify(message string) {
	slog.Info("notification", slog.String("message", message))
}

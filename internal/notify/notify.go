// Package notify decouples user-visible notifications from the storage and
// sync layers. The core calls sink.Notify(kind, message); what happens to
// the message (toast, console, nothing) is the embedder's choice.
package notify

import "log/slog"

// Kind is the severity of a notification.
type Kind int

const (
	Info Kind = iota
	Warning
	Error
)

func (k Kind) String() string {
	switch k {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	}
	return "unknown"
}

// Sink receives user-visible notifications.
type Sink interface {
	Notify(kind Kind, message string)
}

// Console logs notifications through slog.
type Console struct {
	log *slog.Logger
}

var _ Sink = (*Console)(nil)

// NewConsole returns a sink that logs through the given logger,
// or slog.Default() if logger is nil.
func NewConsole(logger *slog.Logger) *Console {
	if logger == nil {
		logger = slog.Default()
	}
	return &Console{log: logger}
}

func (c *Console) Notify(kind Kind, message string) {
	switch kind {
	case Error:
		c.log.Error(message, "notification", kind.String())
	case Warning:
		c.log.Warn(message, "notification", kind.String())
	default:
		c.log.Info(message, "notification", kind.String())
	}
}

// Nop discards all notifications. Used in tests.
type Nop struct{}

var _ Sink = Nop{}

func (Nop) Notify(Kind, string) {}

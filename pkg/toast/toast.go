package toast

import "log/slog"

// Level classifies a toast notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

// Notifier receives toast events. Implementations must be safe for
// concurrent use and must not block.
type Notifier interface {
	Notify(level Level, message string)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(level Level, message string)

// Notify implements Notifier.
func (f NotifierFunc) Notify(level Level, message string) {
	f(level, message)
}

// Logger returns a Notifier that writes events to a structured logger.
// Useful as a default sink when no UI is attached.
func Logger(log *slog.Logger) Notifier {
	if log == nil {
		log = slog.Default()
	}
	return NotifierFunc(func(level Level, message string) {
		switch level {
		case LevelError:
			log.Error(message, "toast", string(level))
		case LevelWarning:
			log.Warn(message, "toast", string(level))
		default:
			log.Info(message, "toast", string(level))
		}
	})
}

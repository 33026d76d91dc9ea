// Package log wires slog into the request pipeline. Loggers are tagged with
// a component attribute at construction and travel through the request
// context, so handlers never rebuild attribution by hand.
package log

import (
	"log/slog"
	"os"
)

// Logger is a slog.Logger with a component attribute baked in.
type Logger struct {
	*slog.Logger
}

// Config controls the handler and the component attribute attached to every
// record. A nil Handler falls back to text on stdout at the given level.
type Config struct {
	Level     slog.Level
	Component string
	Handler   slog.Handler
}

// New builds a component-tagged logger.
func New(config Config) *Logger {
	handler := config.Handler
	if handler == nil {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: config.Level})
	}
	return &Logger{Logger: slog.New(handler).With(FieldComponent, config.Component)}
}

// With returns a logger carrying the extra attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

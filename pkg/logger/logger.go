package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a zerolog.Logger tagged with the service name
type Logger struct {
	zerolog.Logger
}

// New logs human-readable debug output in development and JSON lines at
// info level everywhere else
func New(serviceName string, environment string) *Logger {
	if environment == "development" {
		w := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return build(w, serviceName, zerolog.DebugLevel)
	}
	return build(os.Stdout, serviceName, zerolog.InfoLevel)
}

// NewWithWriter logs JSON lines to w at debug level. Tests use it to
// capture or discard output.
func NewWithWriter(w io.Writer, serviceName string) *Logger {
	return build(w, serviceName, zerolog.DebugLevel)
}

func build(w io.Writer, serviceName string, level zerolog.Level) *Logger {
	return &Logger{
		Logger: zerolog.New(w).Level(level).With().
			Timestamp().
			Str("service", serviceName).
			Logger(),
	}
}

func (l *Logger) with(key, value string) *Logger {
	return &Logger{Logger: l.Logger.With().Str(key, value).Logger()}
}

// WithComponent tags entries with the emitting component, e.g. "scheduler"
func (l *Logger) WithComponent(component string) *Logger {
	return l.with("component", component)
}

// WithKitchenID scopes entries to one kitchen
func (l *Logger) WithKitchenID(kitchenID string) *Logger {
	return l.with("kitchen_id", kitchenID)
}

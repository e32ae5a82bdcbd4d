// Package logger configures the zerolog logger shared by the pharmacy service.
package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger
type Logger struct {
	zerolog.Logger
}

// defaultLevels picks a level per environment. Anything not listed logs at info.
var defaultLevels = map[string]zerolog.Level{
	"development": zerolog.DebugLevel,
	"test":        zerolog.WarnLevel,
}

// New returns a JSON logger tagged with serviceName.
// Development gets human-readable console output.
func New(serviceName, environment string) *Logger {
	var out io.Writer = os.Stdout
	if environment == "development" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	level, ok := defaultLevels[environment]
	if !ok {
		level = zerolog.InfoLevel
	}

	return &Logger{
		Logger: zerolog.New(out).Level(level).With().
			Timestamp().
			Str("service", serviceName).
			Str("env", environment).
			Logger(),
	}
}

// NewWithWriter creates a logger that writes JSON lines to w
func NewWithWriter(serviceName string, w io.Writer) *Logger {
	return &Logger{
		Logger: zerolog.New(w).With().Timestamp().Str("service", serviceName).Logger(),
	}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// WithLevel overrides the level, e.g. "debug" in a production incident
func (l *Logger) WithLevel(name string) (*Logger, error) {
	level, err := zerolog.ParseLevel(name)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", name, err)
	}
	return &Logger{Logger: l.Logger.Level(level)}, nil
}

func (l *Logger) WithUserID(userID string) *Logger {
	return &Logger{Logger: l.Logger.With().Str("user_id", userID).Logger()}
}

func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.Logger.With().Str("component", component).Logger()}
}

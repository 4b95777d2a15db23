package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// NewLogger creates a new zerolog logger with console output
func NewLogger() zerolog.Logger {
	return newConsoleLogger(os.Stderr)
}

// NewLoggerWithLevel creates a console logger at the named level. Empty or unknown names fall
// back to info.
func NewLoggerWithLevel(level string) zerolog.Logger {
	return NewLogger().Level(ParseLevel(level))
}

func ParseLevel(level string) zerolog.Level {
	if level == "" {
		return zerolog.InfoLevel
	}
	l, err := zerolog.ParseLevel(level)
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}

func newConsoleLogger(w io.Writer) zerolog.Logger {
	output := zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	return log.Output(output).With().Timestamp().Logger()
}

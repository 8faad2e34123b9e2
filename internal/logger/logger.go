// Package logger holds the process-wide structured logger.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var (
	// Log is the global logger instance
	Log zerolog.Logger
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	Log = newLogger(consoleWriter(os.Stderr), zerolog.InfoLevel)
}

func consoleWriter(out io.Writer) io.Writer {
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "2006-01-02 15:04:05",
	}
}

func newLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// SetLevel sets the log level
func SetLevel(levelStr string) {
	level, err := zerolog.ParseLevel(levelStr)
	if err != nil || levelStr == "" {
		Log.Warn().Str("level", levelStr).Msg("invalid log level, defaulting to info")
		level = zerolog.InfoLevel
	}
	Log = Log.Level(level)
}

// SetFormat switches between human readable console output and JSON lines.
func SetFormat(format string) {
	SetOutput(os.Stderr, format)
}

// SetOutput redirects the logger, keeping the current level.
func SetOutput(w io.Writer, format string) {
	level := Log.GetLevel()
	if format == "json" {
		Log = newLogger(w, level)
		return
	}
	Log = newLogger(consoleWriter(w), level)
}

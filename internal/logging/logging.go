// Package logging builds the process-wide zerolog logger from LOG_LEVEL and
// LOG_FORMAT. The level set (trace/debug/info/warn/error) matches the
// forwarder's config surface field for field.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New builds a logger for the given level name and format ("console" or
// "json"). An unrecognized level falls back to info; an unrecognized format
// falls back to console.
func New(level, format string) zerolog.Logger {
	var w io.Writer = os.Stderr
	if strings.ToLower(format) != "json" {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	}

	zerolog.SetGlobalLevel(parseLevel(level))
	return zerolog.New(w).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

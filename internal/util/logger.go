package util

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitializeLogger sets up the global logger. level is one of debug, info,
// warn or error; format is "json" or "console".
func InitializeLogger(level, format string) {
	InitializeLoggerTo(os.Stdout, level, format)
}

// InitializeLoggerTo is InitializeLogger writing to out.
func InitializeLoggerTo(out io.Writer, level, format string) {
	zerolog.TimeFieldFormat = time.RFC3339

	lvl := ParseLevel(level)
	zerolog.SetGlobalLevel(lvl)

	if format != "json" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(out).With().Timestamp()
	if lvl == zerolog.DebugLevel {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger()
	log.Debug().Str("level", lvl.String()).Str("format", format).Msg("Logger initialized")
}

// ParseLevel maps a level name to a zerolog level. Unknown names mean info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// GetLogger returns a configured logger for a specific component
func GetLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

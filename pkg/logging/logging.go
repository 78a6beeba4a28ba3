// Package logging configures the global zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// logWriter stores the current log writer globally. Results print to stdout,
// so diagnostics go to stderr.
var logWriter io.Writer = zerolog.ConsoleWriter{
	Out:        os.Stderr,
	TimeFormat: time.RFC3339,
}

// ConfigureGlobalLogging sets the global log level and installs the writer.
func ConfigureGlobalLogging(levelStr string) {
	level := parseLogLevel(levelStr)
	zerolog.SetGlobalLevel(level)

	logContext := zerolog.New(logWriter).With().Timestamp()
	if level <= zerolog.DebugLevel {
		logContext = logContext.Caller()
	}

	log.Logger = logContext.Logger().Level(level)
	zerolog.DefaultContextLogger = &log.Logger
}

// SetLogWriter overrides the log writer; used by tests.
func SetLogWriter(w io.Writer) {
	logWriter = w
}

// parseLogLevel converts a string log level to zerolog.Level, defaulting to
// info on bad input.
func parseLogLevel(levelStr string) zerolog.Level {
	if levelStr == "" {
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(levelStr))
	if err != nil {
		log.Error().Err(err).Str("logLevel", levelStr).Msg("Invalid log level provided. Defaulting to info level.")
		return zerolog.InfoLevel
	}
	return level
}

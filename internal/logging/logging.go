// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetupLogger configures the global logger based on verbosity level.
// Output goes to stderr so stdout stays free for command results and the
// MCP stdio transport.
func SetupLogger(verbosity int, quiet bool) {
	SetupLoggerTo(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.Kitchen,
	}, verbosity, quiet)
}

// SetupLoggerTo is SetupLogger with an explicit writer.
func SetupLoggerTo(w io.Writer, verbosity int, quiet bool) {
	zerolog.SetGlobalLevel(Level(verbosity, quiet))

	log.Logger = zerolog.New(w).With().Timestamp().Logger()

	// Add caller information for debug and trace levels
	if verbosity >= 2 && !quiet {
		log.Logger = log.Logger.With().Caller().Logger()
	}

	log.Debug().Int("verbosity", verbosity).Msg("Logger initialized")
}

// Level maps a -v count onto a zerolog level.
func Level(verbosity int, quiet bool) zerolog.Level {
	if quiet {
		return zerolog.ErrorLevel
	}
	switch verbosity {
	case 0:
		return zerolog.WarnLevel
	case 1:
		return zerolog.InfoLevel
	case 2:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}

// GetLogger returns a contextualized logger with the given component name.
func GetLogger(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// LogDuration logs the duration of an operation.
func LogDuration(logger zerolog.Logger, start time.Time, operation string) {
	logger.Debug().
		Str("operation", operation).
		Dur("duration", time.Since(start)).
		Msg("Operation completed")
}

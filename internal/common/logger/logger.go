package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global logger. Debug mode writes human-readable console
// lines, otherwise JSON lines are written to stdout.
func Init(serviceName string, debug bool) {
	initWithWriter(serviceName, debug, os.Stdout)
}

func initWithWriter(serviceName string, debug bool, out io.Writer) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFieldName = "timestamp"
	zerolog.MessageFieldName = "message"

	var w io.Writer = out
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
		w = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			FormatLevel: func(i interface{}) string {
				return fmt.Sprintf("| %-6s|", i)
			},
			FormatMessage: func(i interface{}) string {
				return fmt.Sprintf("| %s", i)
			},
			FormatFieldName: func(i interface{}) string {
				return fmt.Sprintf("%s:", i)
			},
		}
	}

	log.Logger = zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()

	log.Info().Bool("debug", debug).Msg("Logger initialized")
}

// Debug logs a debug message
func Debug() *zerolog.Event {
	return log.Debug()
}

// Info logs an info message
func Info() *zerolog.Event {
	return log.Info()
}

// Warn logs a warning message
func Warn() *zerolog.Event {
	return log.Warn()
}

// Error logs an error message
func Error() *zerolog.Event {
	return log.Error()
}

// Fatal logs a fatal message and exits
func Fatal() *zerolog.Event {
	return log.Fatal()
}

// Step returns a sub-logger for one stage of a wallet's sign-in flow.
func Step(wallet, step string) zerolog.Logger {
	return log.With().Str("wallet", wallet).Str("step", step).Logger()
}

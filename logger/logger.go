package logger

import (
	"io"
	"os"
	"runtime"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

var Log = zerolog.New(os.Stderr).With().Timestamp().Logger()

// enable pretty printing for interactive terminals and json for production.
func init() {
	if isatty.IsTerminal(os.Stdout.Fd()) && runtime.GOOS != "windows" {
		Log = Log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		// UNIX time is smaller and faster to emit than a formatted timestamp.
		zerolog.TimeFieldFormat = ""
	}
	SetLogLevel(zerolog.WarnLevel)
}

func SetLogLevel(l zerolog.Level) {
	Log = Log.Level(l)
}

func SetLogOutput(w io.Writer) {
	Log = Log.Output(w)
}

// WithSession returns a logger that tags every message with the gateway
// session handle.
func WithSession(session string) zerolog.Logger {
	return Log.With().Str("session", session).Logger()
}

// WithOperation returns a logger scoped to one submitted statement.
func WithOperation(session, operation string) zerolog.Logger {
	return Log.With().Str("session", session).Str("operation", operation).Logger()
}

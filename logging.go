package factum

import (
	"os"

	"github.com/rs/zerolog"
)

// Log is the package-level structured logger. It defaults to a
// human-readable console writer; callers embedding factum in a service
// can replace it with their own zerolog.Logger (e.g. a JSON sink) via
// SetLogger.
var Log zerolog.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
	With().Timestamp().Str("component", "factum").Logger()

// SetLogger replaces the package-level logger.
func SetLogger(l zerolog.Logger) {
	Log = l
}

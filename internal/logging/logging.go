// Package logging configures the structured logger shared by every
// component of the control plane.
package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New builds a component-scoped zerolog.Logger writing to stderr, with the
// level parsed from the given string (defaulting to info on parse failure).
func New(component, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		Level(lvl).
		With().
		Timestamp().
		Str("component", component).
		Logger()
}

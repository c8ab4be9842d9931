// Package logging configures the global zerolog logger for the CLI.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DebugEnv turns on debug logging when set to a non-empty value other than "0" or "false".
const DebugEnv = "DEBUG"

// Setup routes the global logger to w as human-readable console output.
// The level is Warn unless verbose is set or DebugEnv is on.
func Setup(w io.Writer, verbose bool) zerolog.Level {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level := zerolog.WarnLevel
	if verbose || DebugEnabled(os.Getenv(DebugEnv)) {
		level = zerolog.DebugLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    os.Getenv("NO_COLOR") != "",
		TimeFormat: "15:04:05",
	}).Level(level).With().Timestamp().Logger()
	return level
}

// Verbose reports whether the global logger emits debug output.
func Verbose() bool {
	return log.Logger.GetLevel() <= zerolog.DebugLevel
}

// DebugEnabled interprets the value of DebugEnv.
func DebugEnabled(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "0", "false", "no", "off":
		return false
	default:
		return true
	}
}

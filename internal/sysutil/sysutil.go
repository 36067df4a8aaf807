// Package sysutil holds process-level helpers shared by the tracker commands.
package sysutil

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LoggerOptions shapes the process logger.
type LoggerOptions struct {
	// Pretty switches to the colored console format; otherwise one JSON
	// object is written per line.
	Pretty  bool
	Service string
	Version string
}

// ConfigureLogger replaces the global zerolog logger with one writing to
// stdout. Color is dropped when NO_COLOR is set.
func ConfigureLogger(opts LoggerOptions) {
	if NoColor() {
		opts.Pretty = false
	}
	log.Logger = NewLogger(os.Stdout, opts)
}

// NewLogger builds a timestamped logger writing to w.
func NewLogger(w io.Writer, opts LoggerOptions) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if opts.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	lc := zerolog.New(w).With().Timestamp()
	if opts.Service != "" {
		lc = lc.Str("service", opts.Service)
	}
	if opts.Version != "" {
		lc = lc.Str("version", opts.Version)
	}
	return lc.Logger()
}

// SetLogLevel sets the global level from its name. "warning" is accepted
// for warn and a blank name means info. Unknown names leave the level at
// info and return an error.
func SetLogLevel(name string) (zerolog.Level, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "":
		name = "info"
	case "warning":
		name = "warn"
	}
	lvl, err := zerolog.ParseLevel(name)
	if err != nil || lvl == zerolog.NoLevel {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", name)
	}
	zerolog.SetGlobalLevel(lvl)
	return lvl, nil
}

// NoColor follows the no-color.org convention: any non-empty NO_COLOR
// disables colored output.
func NoColor() bool {
	return os.Getenv("NO_COLOR") != ""
}

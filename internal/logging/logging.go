// Package logging builds the zerolog logger shared by the binaries.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hailam/chesscore/internal/config"
)

// New returns a logger writing to w (stderr when nil) with the configured style and level.
// Standard output is reserved for protocol traffic and is never used here.
func New(cfg config.LogConfig, w io.Writer) (zerolog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}

	level := zerolog.InfoLevel
	if cfg.Level != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("log level: %w", err)
		}
		level = l
	}

	if cfg.Style == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}

// Must is New for binaries: on error it falls back to an info logger on stderr
// and logs the problem.
func Must(cfg config.LogConfig) zerolog.Logger {
	l, err := New(cfg, nil)
	if err != nil {
		l = zerolog.New(os.Stderr).With().Timestamp().Logger()
		l.Warn().Err(err).Msg("invalid log configuration")
	}
	return l
}

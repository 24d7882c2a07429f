// internal/logging/logging.go
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	cfg "github.com/tamzrod/modbus-sensorbridge/internal/config"
)

// New builds the root logger. Component loggers derive from it.
func New(c cfg.LogConfig, w io.Writer) (zerolog.Logger, error) {
	level, err := ParseLevel(c.Level)
	if err != nil {
		return zerolog.Nop(), err
	}

	var out io.Writer
	switch c.Format {
	case "", "console":
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	case "json":
		out = w
	default:
		return zerolog.Nop(), fmt.Errorf("logging: unknown format %q", c.Format)
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger(), nil
}

// ParseLevel accepts debug|info|warn|error; empty means info.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("logging: unknown level %q", s)
	}
}

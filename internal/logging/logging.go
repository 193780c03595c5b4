// Package logging builds zerolog loggers for savectl and the save engine.
package logging

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/rs/zerolog"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Standard field keys shared by every component.
const (
	FieldComponent = "component"
	FieldSlot      = "slot"
	FieldPath      = "path"
	FieldKey       = "key"
	FieldIndex     = "index"
	FieldStep      = "step"
)

// Config controls logger construction.
type Config struct {
	Level     string
	Format    string
	NoColor   bool
	Timestamp bool
}

// ApplyDefaults fills empty fields.
func (c *Config) ApplyDefaults() {
	if c.Level == "" {
		c.Level = "warn"
	}

	if c.Format == "" {
		c.Format = FormatConsole
	}
}

// Validate reports an unknown level or format.
func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Level)); err != nil || c.Level == "" {
		return fmt.Errorf("log level must be one of %v (got: %q)", validLevels, c.Level)
	}

	if !slices.Contains([]string{FormatConsole, FormatJSON}, strings.ToLower(c.Format)) {
		return fmt.Errorf("log format must be %q or %q (got: %q)", FormatConsole, FormatJSON, c.Format)
	}

	return nil
}

var validLevels = []string{"trace", "debug", "info", "warn", "error", "disabled"}

// New returns a logger writing to out. Invalid levels fall back to warn.
func New(cfg Config, out io.Writer) zerolog.Logger {
	cfg.ApplyDefaults()

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.WarnLevel
	}

	var zl zerolog.Logger

	if strings.ToLower(cfg.Format) == FormatJSON {
		zl = zerolog.New(out)
	} else {
		zl = zerolog.New(zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "15:04:05",
			NoColor:    cfg.NoColor,
		})
	}

	if cfg.Timestamp {
		zl = zl.With().Timestamp().Logger()
	}

	return zl.Level(level)
}

// WithComponent tags l with a component name.
func WithComponent(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str(FieldComponent, name).Logger()
}

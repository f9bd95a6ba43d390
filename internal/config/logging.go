package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	EnvLoggingLevel  = "INVOICE_LOG_LEVEL"
	EnvLoggingFormat = "INVOICE_LOG_FORMAT"
)

// LoggingConfig selects the slog level and handler.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *LoggingConfig) Finalize() error {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "text"
	}
	if v := os.Getenv(EnvLoggingLevel); v != "" {
		c.Level = v
	}
	if v := os.Getenv(EnvLoggingFormat); v != "" {
		c.Format = v
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return fmt.Errorf("invalid level: %w", err)
	}
	switch strings.ToLower(c.Format) {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("invalid format %q (want text or json)", c.Format)
	}
}

// Merge overwrites non-zero fields from overlay.
func (c *LoggingConfig) Merge(overlay *LoggingConfig) {
	if overlay.Level != "" {
		c.Level = overlay.Level
	}
	if overlay.Format != "" {
		c.Format = overlay.Format
	}
}

// NewLogger builds a logger writing to w. Call after Finalize.
func (c *LoggingConfig) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	level.UnmarshalText([]byte(c.Level))

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

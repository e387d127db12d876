// Package config loads storyviz settings from STORYVIZ_* environment
// variables and builds the process logger.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/roach88/storyviz/internal/ir"
	"github.com/roach88/storyviz/internal/narration"
)

// Config holds environment settings. CLI flags override them.
type Config struct {
	Mode         ir.Mode    `env:"STORYVIZ_MODE"` // empty keeps each scene's own mode
	Narration    bool       `env:"STORYVIZ_NARRATION"      envDefault:"true"`
	NarrationWPM float64    `env:"STORYVIZ_NARRATION_WPM"  envDefault:"150"`
	DB           string     `env:"STORYVIZ_DB"`
	LogLevel     slog.Level `env:"STORYVIZ_LOG_LEVEL"      envDefault:"info"`
	LogFormat    string     `env:"STORYVIZ_LOG_FORMAT"     envDefault:"text"`
	MaxEvents    int        `env:"STORYVIZ_MAX_EVENTS"     envDefault:"100000"`
	OTelEndpoint string     `env:"STORYVIZ_OTEL_ENDPOINT"`
	OTelEnabled  bool       `env:"STORYVIZ_OTEL_ENABLED"   envDefault:"true"`
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges that the parser cannot.
func (c Config) Validate() error {
	if c.Mode != "" && !ir.ValidModes[c.Mode] {
		return fmt.Errorf("STORYVIZ_MODE: %q is not one of draft, normal, fast", c.Mode)
	}
	if c.NarrationWPM <= 0 {
		return fmt.Errorf("STORYVIZ_NARRATION_WPM: must be positive, got %v", c.NarrationWPM)
	}
	if c.MaxEvents <= 0 {
		return fmt.Errorf("STORYVIZ_MAX_EVENTS: must be positive, got %d", c.MaxEvents)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("STORYVIZ_LOG_FORMAT: %q is not one of text, json", c.LogFormat)
	}
	return nil
}

// Narrator returns the word-rate narration provider, or nil when narration
// is disabled.
func (c Config) Narrator() narration.Provider {
	if !c.Narration {
		return nil
	}
	return narration.NewWordRate(c.NarrationWPM)
}

// NewLogger builds a text or JSON slog logger writing to w.
func NewLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

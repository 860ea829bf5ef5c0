package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvConfig holds settings read from XPCSPY_* environment variables.
type EnvConfig struct {
	// DecoderCommand is run for tagged payloads with no built-in decoder.
	// The raw bytes go to its stdin; JSON on stdout becomes structured.
	DecoderCommand string `env:"XPCSPY_DECODER_COMMAND"`
	// DecoderTags are the tags routed to DecoderCommand.
	DecoderTags []string `env:"XPCSPY_DECODER_TAGS" envSeparator:"," envDefault:"bplist17"`

	DecodeTimeout  time.Duration `env:"XPCSPY_DECODE_TIMEOUT" envDefault:"2s"`
	MaxPending     int           `env:"XPCSPY_MAX_PENDING" envDefault:"10000"`
	PendingTimeout time.Duration `env:"XPCSPY_PENDING_TIMEOUT" envDefault:"0s"`
	ExpireInterval time.Duration `env:"XPCSPY_EXPIRE_INTERVAL" envDefault:"1s"`

	MetricsAddr string `env:"XPCSPY_METRICS_ADDR"`
	Timezone    string `env:"XPCSPY_TIMEZONE" envDefault:"Local"`
	LogLevel    string `env:"XPCSPY_LOG_LEVEL" envDefault:"info"`

	Attributes string   `env:"XPCSPY_ATTRIBUTES"`
	Filter     []string `env:"XPCSPY_FILTER" envSeparator:","`
	TraceID    string   `env:"XPCSPY_TRACE_ID"`
	ParentID   string   `env:"XPCSPY_PARENT_ID"`
}

// ParseEnvConfig parses and validates XPCSPY_* environment variables.
func ParseEnvConfig() (*EnvConfig, error) {
	var cfg EnvConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment config: %w", err)
	}

	if cfg.MaxPending < 0 {
		return nil, fmt.Errorf("XPCSPY_MAX_PENDING must not be negative, got %d", cfg.MaxPending)
	}
	if cfg.DecodeTimeout < 0 || cfg.PendingTimeout < 0 || cfg.ExpireInterval < 0 {
		return nil, fmt.Errorf("durations must not be negative")
	}
	if _, err := cfg.SlogLevel(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// SlogLevel converts LogLevel to a slog level.
func (c *EnvConfig) SlogLevel() (slog.Level, error) {
	text := strings.TrimSpace(c.LogLevel)
	if text == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(text)); err != nil {
		return 0, fmt.Errorf("invalid XPCSPY_LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return level, nil
}

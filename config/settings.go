package config

import (
	"fmt"
	"log/slog"

	"github.com/gossip-lsp/lspframe/transport"
)

// Settings are the tunables of an lspframe process. ReadPolicy is "once" or
// "until-blocked"; LogLevel is a slog level name; a non-empty MetricsAddr
// serves /metrics and /healthz.
type Settings struct {
	ReadSize    int    `toml:"read_size" yaml:"read_size"`
	ReadPolicy  string `toml:"read_policy" yaml:"read_policy"`
	LogLevel    string `toml:"log_level" yaml:"log_level"`
	MetricsAddr string `toml:"metrics_addr" yaml:"metrics_addr"`
}

// DefaultSettings returns the built-in settings.
func DefaultSettings() *Settings {
	return &Settings{
		ReadSize:   transport.DefaultReadSize,
		ReadPolicy: transport.ReadOnce.String(),
		LogLevel:   "info",
	}
}

// Validate implements Validatable.
func (s *Settings) Validate() error {
	if s.ReadSize <= 0 {
		return fmt.Errorf("read_size must be positive, got %d", s.ReadSize)
	}
	if _, err := transport.ParseReadPolicy(s.ReadPolicy); err != nil {
		return err
	}
	if _, err := ParseLevel(s.LogLevel); err != nil {
		return err
	}
	return nil
}

// Policy returns the parsed read policy. Call Validate first.
func (s *Settings) Policy() transport.ReadPolicy {
	p, _ := transport.ParseReadPolicy(s.ReadPolicy)
	return p
}

// Level returns the parsed log level, defaulting to info.
func (s *Settings) Level() slog.Level {
	l, err := ParseLevel(s.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

// ParseLevel parses a slog level name. The empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config: invalid log level %q", s)
	}
	return l, nil
}

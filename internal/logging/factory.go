package logging

import (
	"os"
	"strings"
)

// LogFormat is the log output format.
type LogFormat string

const (
	// FormatText is the traditional text format.
	FormatText LogFormat = "text"
	// FormatJSON is structured JSON format.
	FormatJSON LogFormat = "json"
)

// Config is the logging configuration.
type Config struct {
	Level   string
	Format  LogFormat
	Service string
	Version string
	Prefix  string
}

// NewLoggerFromConfig creates a logger based on configuration.
// The CHESSLENS_LOG_FORMAT environment variable overrides an empty format.
func NewLoggerFromConfig(cfg *Config) ContextLogger {
	format := cfg.Format
	if format == "" {
		if envFormat := os.Getenv("CHESSLENS_LOG_FORMAT"); envFormat != "" {
			format = LogFormat(strings.ToLower(envFormat))
		} else {
			format = FormatText
		}
	}

	switch format {
	case FormatJSON:
		return NewStructuredLogger(cfg.Service, cfg.Version, cfg.Level)
	default:
		return NewLogger(cfg.Prefix, cfg.Level)
	}
}

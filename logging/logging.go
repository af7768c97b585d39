// Package logging provides configurable zap logger creation for the
// untex CLI and library.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Style selects the log output encoding.
type Style string

const (
	StyleTerminal Style = "terminal"
	StyleJson     Style = "json"
	StyleNoop     Style = "noop"
)

// Config controls logger construction.
type Config struct {
	Style Style  `yaml:"style" json:"style"`
	Level string `yaml:"level" json:"level"`
}

// NewLogger creates a zap logger based on the Config settings. A nil
// config or empty fields fall back to terminal style at info level; an
// unknown style is an error so callers can surface it instead of
// logging through a misconfigured logger.
func NewLogger(c *Config) (*zap.Logger, error) {
	loggingStyle := StyleTerminal
	logLevel := zapcore.InfoLevel

	if c != nil {
		if c.Style != "" {
			loggingStyle = c.Style
		}
		if c.Level != "" {
			lvl, parseErr := zapcore.ParseLevel(c.Level)
			if parseErr == nil {
				logLevel = lvl
			}
		}
	}

	var cfg zap.Config
	switch loggingStyle {
	case StyleNoop:
		return zap.NewNop(), nil
	case StyleJson:
		cfg = zap.NewProductionConfig()
	case StyleTerminal:
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf(
			"invalid logging style %q: must be one of: terminal, json, noop",
			loggingStyle,
		)
	}

	cfg.Level = zap.NewAtomicLevelAt(logLevel)
	logger, err := cfg.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zap.ErrorLevel),
	)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	return logger, nil
}

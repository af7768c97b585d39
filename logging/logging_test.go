package logging

import (
	"strings"
	"testing"
)

func TestNewLoggerStyles(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{name: "nil config", cfg: nil},
		{name: "terminal", cfg: &Config{Style: StyleTerminal, Level: "debug"}},
		{name: "json", cfg: &Config{Style: StyleJson}},
		{name: "noop", cfg: &Config{Style: StyleNoop}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.cfg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if logger == nil {
				t.Fatal("expected a logger")
			}
		})
	}
}

func TestNewLoggerInvalidStyle(t *testing.T) {
	_, err := NewLogger(&Config{Style: "syslog"})
	if err == nil {
		t.Fatal("expected an error for an unknown style")
	}
	if !strings.Contains(err.Error(), "syslog") {
		t.Errorf("error should name the rejected style, got %q", err)
	}
}

func TestNewLoggerUnparseableLevelFallsBack(t *testing.T) {
	logger, err := NewLogger(&Config{Style: StyleNoop, Level: "chatty"})
	if err != nil {
		t.Fatalf("unparseable level should fall back, got %v", err)
	}
	if logger == nil {
		t.Fatal("expected a logger")
	}
}

package convert

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/untex/untex/fontdb"
	"github.com/untex/untex/latexgen"
	"github.com/untex/untex/layout"
	"github.com/untex/untex/logging"
	"github.com/untex/untex/recognize"
)

// Config represents the conversion configuration.
type Config struct {
	// Version of the config format
	Version int `yaml:"version" json:"version"`

	// FontDir overrides the default font database directory.
	FontDir string `yaml:"font_dir,omitempty" json:"font_dir,omitempty"`

	// Recognition tunes the glyph matcher.
	Recognition RecognitionConfig `yaml:"recognition" json:"recognition"`

	// Layout holds the line/word/paragraph grouping thresholds.
	Layout layout.Config `yaml:"layout" json:"layout"`

	// Generator configures LaTeX serialization.
	Generator GeneratorConfig `yaml:"generator" json:"generator"`

	// Execution configures execution behavior.
	Execution ExecutionConfig `yaml:"execution" json:"execution"`

	// Output configures report format and destination.
	Output OutputConfig `yaml:"output" json:"output"`

	// Logging configures the logger.
	Logging logging.Config `yaml:"logging" json:"logging"`
}

// RecognitionConfig tunes the nearest-neighbour glyph matcher.
type RecognitionConfig struct {
	// DistanceCeiling is the descriptor distance at which confidence
	// reaches zero.
	DistanceCeiling float64 `yaml:"distance_ceiling,omitempty" json:"distance_ceiling,omitempty"`

	// ConfidenceThreshold is the minimum confidence for a match to be
	// accepted.
	ConfidenceThreshold float64 `yaml:"confidence_threshold,omitempty" json:"confidence_threshold,omitempty"`

	// TieEpsilon is the distance band within which candidates count as
	// tied.
	TieEpsilon float64 `yaml:"tie_epsilon,omitempty" json:"tie_epsilon,omitempty"`

	// Hint restricts matching to one font family (e.g. "cmr").
	Hint string `yaml:"hint,omitempty" json:"hint,omitempty"`
}

// GeneratorConfig configures LaTeX serialization.
type GeneratorConfig struct {
	// Placeholder is the token emitted for unrecognized glyphs.
	Placeholder string `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`

	// MarginInches sets the geometry package margin.
	MarginInches float64 `yaml:"margin_inches,omitempty" json:"margin_inches,omitempty"`

	// BodyOnly suppresses the documentclass wrapper.
	BodyOnly bool `yaml:"body_only,omitempty" json:"body_only,omitempty"`
}

// ExecutionConfig configures execution behavior.
type ExecutionConfig struct {
	// Workers limits the number of pages processed concurrently.
	Workers int `yaml:"workers" json:"workers"`

	// RateLimitPerMinute limits page starts per minute (0 = unlimited).
	// Useful when the renderer competes with other work on the host.
	RateLimitPerMinute int `yaml:"rate_limit_per_minute" json:"rate_limit_per_minute"`
}

// OutputConfig configures the conversion report destination.
type OutputConfig struct {
	// Format is the report format ("json", "yaml", "markdown").
	Format string `yaml:"format" json:"format"`

	// Path is the report file path. Empty disables report output.
	Path string `yaml:"path" json:"path"`

	// Pretty enables pretty-printing for JSON output.
	Pretty bool `yaml:"pretty" json:"pretty"`
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return LoadConfigFromBytes(data)
}

// LoadConfigFromBytes loads configuration from YAML bytes.
func LoadConfigFromBytes(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	config.applyDefaults()
	return &config, nil
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.Execution.Workers == 0 {
		c.Execution.Workers = 4
	}
	if c.Generator.Placeholder == "" {
		c.Generator.Placeholder = latexgen.DefaultPlaceholder
	}
	if c.Output.Format == "" {
		c.Output.Format = "json"
	}
}

// RecognizerOptions translates the recognition section into the
// matcher's option struct. An invalid hint family is rejected rather
// than silently widened to all families.
func (c *Config) RecognizerOptions() (recognize.Options, error) {
	opts := recognize.Options{
		DistanceCeiling:     c.Recognition.DistanceCeiling,
		ConfidenceThreshold: c.Recognition.ConfidenceThreshold,
		TieEpsilon:          c.Recognition.TieEpsilon,
	}
	if c.Recognition.Hint != "" {
		code, err := fontdb.ParseCode(c.Recognition.Hint)
		if err != nil {
			return opts, err
		}
		opts.Hint = code
	}
	return opts, nil
}

package config

import (
	"github.com/bmatcuk/doublestar/v4"
	"github.com/spanview/nounscan/pkg/ner"
	"github.com/spanview/nounscan/pkg/report"
	"gitlab.com/tozd/go/errors"
)

// DefaultPath is the config file looked up when none is given. A missing
// file at this path is not an error; defaults apply.
const DefaultPath = ".nounscan.yaml"

// ModelArgs configures the entity-recognition pipeline.
type ModelArgs struct {
	Dir      string   `json:"dir,omitempty" yaml:"dir,omitempty"`
	MinScore float64  `json:"min_score,omitempty" yaml:"min_score,omitempty"`
	Labels   []string `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// OutputArgs configures result table rendering.
type OutputArgs struct {
	TextWidth    int `json:"text_width,omitempty" yaml:"text_width,omitempty"`
	ContextWidth int `json:"context_width,omitempty" yaml:"context_width,omitempty"`
}

// Config is the complete tool configuration.
type Config struct {
	Model  ModelArgs  `json:"model,omitempty" yaml:"model,omitempty"`
	Output OutputArgs `json:"output,omitempty" yaml:"output,omitempty"`

	// Protect lists glob patterns for files the replace engine must
	// refuse to rewrite.
	Protect []string `json:"protect,omitempty" yaml:"protect,omitempty"`

	location string // path the config was loaded from, if any
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		Model: ModelArgs{
			MinScore: 0.5,
		},
		Output: OutputArgs{
			TextWidth:    report.DefaultTextWidth,
			ContextWidth: report.DefaultContextWidth,
		},
		// Never rewrite our own backups.
		Protect: []string{"**/*_backup_*"},
	}
}

// Location returns the path the config was loaded from, or "" for
// defaults.
func (c *Config) Location() string {
	return c.location
}

// Validate checks field ranges and pattern syntax.
func Validate(cfg *Config) error {
	if cfg.Model.MinScore < 0 || cfg.Model.MinScore > 1 {
		return errors.Errorf("model.min_score %v out of range [0, 1]", cfg.Model.MinScore)
	}
	for _, label := range cfg.Model.Labels {
		if !ner.IsReportable(label) {
			return errors.Errorf("model.labels: unknown label %q", label)
		}
	}
	for _, pattern := range cfg.Protect {
		if !doublestar.ValidatePattern(pattern) {
			return errors.Errorf("protect: invalid glob pattern %q", pattern)
		}
	}
	if cfg.Output.TextWidth < 0 || cfg.Output.ContextWidth < 0 {
		return errors.New("output widths must not be negative")
	}
	return nil
}

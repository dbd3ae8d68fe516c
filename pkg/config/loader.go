package config

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// Load reads a configuration file. The format follows the extension:
// .json, .yaml/.yml, or .hcl; a bare .nounscan file is tried as YAML
// then HCL. When path is DefaultPath and the file does not exist, the
// defaults are returned instead of an error.
func Load(ctx context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && path == DefaultPath {
			return Default(), nil
		}
		return nil, errors.Errorf("reading config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	var cfg *Config

	if ext == ".nounscan" || filepath.Base(path) == ".nounscan" {
		cfg, err = loadYAML(data)
		if err != nil {
			cfg, err = loadHCL(data, path)
		}
		if err != nil {
			return nil, errors.Errorf("parsing %s as YAML or HCL: %w", path, err)
		}
	} else {
		switch ext {
		case ".json":
			cfg, err = loadJSON(data)
		case ".yaml", ".yml":
			cfg, err = loadYAML(data)
		case ".hcl":
			cfg, err = loadHCL(data, path)
		default:
			return nil, errors.Errorf("unsupported config extension %q", ext)
		}
		if err != nil {
			return nil, err
		}
	}

	applyDefaults(cfg)
	cfg.location = path
	if err := Validate(cfg); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// applyDefaults fills zero-valued fields from Default.
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Model.MinScore == 0 {
		cfg.Model.MinScore = def.Model.MinScore
	}
	if cfg.Output.TextWidth == 0 {
		cfg.Output.TextWidth = def.Output.TextWidth
	}
	if cfg.Output.ContextWidth == 0 {
		cfg.Output.ContextWidth = def.Output.ContextWidth
	}
	if cfg.Protect == nil {
		cfg.Protect = def.Protect
	}
}

func loadJSON(data []byte) (*Config, error) {
	var cfg Config
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&cfg); err != nil {
		return nil, errors.Errorf("parsing JSON: %w", err)
	}
	return &cfg, nil
}

func loadYAML(data []byte) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, errors.Errorf("parsing YAML: %w", err)
	}
	return &cfg, nil
}

// hclConfig is the HCL-specific schema, converted to Config after
// decoding.
type hclConfig struct {
	Model *struct {
		Dir      string   `hcl:"dir,optional"`
		MinScore float64  `hcl:"min_score,optional"`
		Labels   []string `hcl:"labels,optional"`
	} `hcl:"model,block"`
	Output *struct {
		TextWidth    int `hcl:"text_width,optional"`
		ContextWidth int `hcl:"context_width,optional"`
	} `hcl:"output,block"`
	Protect []string `hcl:"protect,optional"`
}

func loadHCL(data []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, errors.Errorf("parsing HCL: %s", diags.Error())
	}

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{},
	}

	var hclCfg hclConfig
	if diags := gohcl.DecodeBody(file.Body, evalCtx, &hclCfg); diags.HasErrors() {
		return nil, errors.Errorf("decoding HCL: %s", diags.Error())
	}

	cfg := &Config{Protect: hclCfg.Protect}
	if hclCfg.Model != nil {
		cfg.Model = ModelArgs{
			Dir:      hclCfg.Model.Dir,
			MinScore: hclCfg.Model.MinScore,
			Labels:   hclCfg.Model.Labels,
		}
	}
	if hclCfg.Output != nil {
		cfg.Output = OutputArgs{
			TextWidth:    hclCfg.Output.TextWidth,
			ContextWidth: hclCfg.Output.ContextWidth,
		}
	}
	return cfg, nil
}

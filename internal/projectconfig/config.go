// Package projectconfig provides the ProjectConfig struct and loader
// for .promptloom.yaml project-level configuration files.
package projectconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Default values for project configuration. These are the single source
// of truth — New() references them and no other code should duplicate
// them.
const (
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1024

	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultKeyEnv  = "OPENAI_API_KEY"
	DefaultLogDir  = "logs"
	DefaultWorkers = 4
	DefaultEngine  = "openai"

	configFileName   = ".promptloom.yaml"
	maxSearchParents = 10
)

// DefaultsConfig holds default query parameters.
type DefaultsConfig struct {
	Model       string   `yaml:"model,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty"`
	MaxTokens   int      `yaml:"max_tokens,omitempty"`
	Stream      *bool    `yaml:"stream,omitempty"`
}

// APIConfig holds endpoint settings.
type APIConfig struct {
	BaseURL string `yaml:"base_url,omitempty"`
	KeyEnv  string `yaml:"key_env,omitempty"`
	Engine  string `yaml:"engine,omitempty"`
}

// LoggingConfig holds run-log settings.
type LoggingConfig struct {
	Dir string `yaml:"dir,omitempty"`
}

// RenderConfig holds render execution settings.
type RenderConfig struct {
	Parallel *bool `yaml:"parallel,omitempty"`
	Workers  int   `yaml:"workers,omitempty"`
}

// ProjectConfig is the top-level configuration loaded from
// .promptloom.yaml.
type ProjectConfig struct {
	Defaults DefaultsConfig `yaml:"defaults,omitempty"`
	API      APIConfig      `yaml:"api,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
	Render   RenderConfig   `yaml:"render,omitempty"`
}

// New returns a ProjectConfig with all hard-coded defaults populated.
func New() *ProjectConfig {
	return &ProjectConfig{
		Defaults: DefaultsConfig{
			Model:       DefaultModel,
			Temperature: floatPtr(DefaultTemperature),
			MaxTokens:   DefaultMaxTokens,
			Stream:      boolPtr(true),
		},
		API: APIConfig{
			BaseURL: DefaultBaseURL,
			KeyEnv:  DefaultKeyEnv,
			Engine:  DefaultEngine,
		},
		Logging: LoggingConfig{
			Dir: DefaultLogDir,
		},
		Render: RenderConfig{
			Parallel: boolPtr(true),
			Workers:  DefaultWorkers,
		},
	}
}

// Load finds .promptloom.yaml by walking up from startDir (max 10
// levels), unmarshals it, and fills in missing fields with defaults.
// If no config file is found, returns defaults with a nil error. Real
// I/O errors (e.g. permission denied) are returned to the caller.
func Load(startDir string) (*ProjectConfig, error) {
	cfg := New()

	data, err := findConfigFile(startDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil // no file found → return defaults
		}
		return nil, fmt.Errorf("loading %s: %w", configFileName, err)
	}

	var fileCfg ProjectConfig
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", configFileName, err)
	}

	mergeConfig(cfg, &fileCfg)
	return cfg, nil
}

// findConfigFile walks up from dir looking for .promptloom.yaml.
// Returns os.ErrNotExist if no config file is found. Propagates real
// I/O errors (e.g. permission denied) instead of silently swallowing
// them.
func findConfigFile(dir string) ([]byte, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path %q: %w", dir, err)
	}
	dir = absDir

	for i := 0; i < maxSearchParents; i++ {
		p := filepath.Join(dir, configFileName)
		data, err := os.ReadFile(p)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading %q: %w", p, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached filesystem root
		}
		dir = parent
	}
	return nil, os.ErrNotExist
}

// mergeConfig overlays non-zero values from src onto dst.
func mergeConfig(dst, src *ProjectConfig) {
	if src.Defaults.Model != "" {
		dst.Defaults.Model = src.Defaults.Model
	}
	if src.Defaults.Temperature != nil {
		dst.Defaults.Temperature = src.Defaults.Temperature
	}
	if src.Defaults.MaxTokens != 0 {
		dst.Defaults.MaxTokens = src.Defaults.MaxTokens
	}
	if src.Defaults.Stream != nil {
		dst.Defaults.Stream = src.Defaults.Stream
	}

	if src.API.BaseURL != "" {
		dst.API.BaseURL = src.API.BaseURL
	}
	if src.API.KeyEnv != "" {
		dst.API.KeyEnv = src.API.KeyEnv
	}
	if src.API.Engine != "" {
		dst.API.Engine = src.API.Engine
	}

	if src.Logging.Dir != "" {
		dst.Logging.Dir = src.Logging.Dir
	}

	if src.Render.Parallel != nil {
		dst.Render.Parallel = src.Render.Parallel
	}
	if src.Render.Workers != 0 {
		dst.Render.Workers = src.Render.Workers
	}
}

func boolPtr(b bool) *bool        { return &b }
func floatPtr(f float64) *float64 { return &f }

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// CaptureConfig tunes the screen-recording pipeline.
type CaptureConfig struct {
	FPS     int    `yaml:"fps"`
	Quality int    `yaml:"quality"`
	OutDir  string `yaml:"outDir"`
	Display string `yaml:"display"`
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
}

// Config is the daemon configuration, loadable from YAML with flag
// overrides applied on top.
type Config struct {
	Listen         string        `yaml:"listen"`
	StaticRoot     string        `yaml:"staticRoot"`
	LogLevel       string        `yaml:"logLevel"`
	PollIntervalMs int           `yaml:"pollIntervalMs"`
	ScenePreset    string        `yaml:"scenePreset"`
	Capture        CaptureConfig `yaml:"capture"`
}

// Default returns the configuration a bare invocation runs with.
func Default() *Config {
	return &Config{
		Listen:         ":3000",
		StaticRoot:     "web",
		LogLevel:       "info",
		PollIntervalMs: 100,
		Capture: CaptureConfig{
			FPS:     30,
			Quality: 23,
			OutDir:  "output",
			Display: ":0.0",
			Width:   1920,
			Height:  1080,
		},
	}
}

// Load reads a YAML config file over the defaults. An empty path returns
// the defaults untouched.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.PollIntervalMs <= 0 {
		return fmt.Errorf("pollIntervalMs must be positive")
	}
	if c.Capture.FPS <= 0 {
		return fmt.Errorf("capture.fps must be positive")
	}
	return nil
}

// PollInterval is the adapter's position-poll period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

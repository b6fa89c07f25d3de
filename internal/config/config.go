// Package config holds all lessonforge configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all lessonforge configuration.
type Config struct {
	// Workspace data directory (database, logs).
	DataDir string `yaml:"data_dir"`

	// LLM configuration
	LLM LLMConfig `yaml:"llm"`

	// Generation loop settings
	Generation GenerationConfig `yaml:"generation"`

	// Sandbox/preview settings
	Sandbox SandboxConfig `yaml:"sandbox"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the generation capability client.
type LLMConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`
}

// GenerationConfig bounds the orchestrator's attempt loop.
type GenerationConfig struct {
	// MaxAttempts is the hard cap on generate-validate-compile cycles.
	MaxAttempts int `yaml:"max_attempts"`
	// WallClock is the overall ceiling for one lesson's generation run.
	// It is applied as a context deadline, so every suspension point
	// inherits it; expiry is terminal, not retryable.
	WallClock string `yaml:"wall_clock"`
}

// SandboxConfig configures the preview host.
type SandboxConfig struct {
	Headless       bool `yaml:"headless"`
	ViewportWidth  int  `yaml:"viewport_width"`
	ViewportHeight int  `yaml:"viewport_height"`
	// RuntimeScript is a local UI runtime bundle (React + ReactDOM as
	// globals) injected into the preview page. Nothing is fetched remotely.
	RuntimeScript string `yaml:"runtime_script"`
}

// LoggingConfig configures logging behavior.
type LoggingConfig struct {
	Debug bool `yaml:"debug"`
}

// Default returns the built-in configuration.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		DataDir: filepath.Join(home, ".forge"),
		LLM: LLMConfig{
			Model:   "gemini-2.0-flash",
			Timeout: "60s",
		},
		Generation: GenerationConfig{
			MaxAttempts: 3,
			WallClock:   "5m",
		},
		Sandbox: SandboxConfig{
			Headless:       true,
			ViewportWidth:  1280,
			ViewportHeight: 800,
		},
	}
}

// Load reads a config file, layering it over defaults. A missing file is not
// an error: defaults plus environment overrides are returned.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, cfg.validate()
}

func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("LESSONFORGE_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if model := os.Getenv("LESSONFORGE_MODEL"); model != "" {
		c.LLM.Model = model
	}
}

func (c *Config) validate() error {
	if c.Generation.MaxAttempts < 1 {
		return fmt.Errorf("generation.max_attempts must be >= 1, got %d", c.Generation.MaxAttempts)
	}
	if _, err := time.ParseDuration(c.Generation.WallClock); err != nil {
		return fmt.Errorf("generation.wall_clock: %w", err)
	}
	if _, err := time.ParseDuration(c.LLM.Timeout); err != nil {
		return fmt.Errorf("llm.timeout: %w", err)
	}
	return nil
}

// WallClock returns the parsed generation ceiling.
func (c *Config) WallClock() time.Duration {
	d, err := time.ParseDuration(c.Generation.WallClock)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// LLMTimeout returns the parsed per-call LLM timeout.
func (c *Config) LLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// DatabasePath returns the sqlite path under the data dir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "lessons.db")
}

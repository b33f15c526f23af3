package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	MusicDirectories []string      `yaml:"music_directories"`
	DefaultVolume    float64       `yaml:"default_volume"`
	Crossfade        time.Duration `yaml:"crossfade"`
	FadeTick         time.Duration `yaml:"fade_tick"`
	Output           OutputConfig  `yaml:"output"`
	HTTPAddress      string        `yaml:"http_address"`
	LogLevel         string        `yaml:"log_level"`
}

// OutputConfig configures the speaker the outputs are mixed into.
type OutputConfig struct {
	SampleRate int           `yaml:"sample_rate"`
	Buffer     time.Duration `yaml:"buffer"`
}

// GetDefaultConfig returns default configuration
func GetDefaultConfig() *Config {
	return &Config{
		MusicDirectories: []string{},
		DefaultVolume:    1.0,
		Crossfade:        1500 * time.Millisecond,
		FadeTick:         50 * time.Millisecond,
		Output: OutputConfig{
			SampleRate: 44100,
			Buffer:     100 * time.Millisecond,
		},
		LogLevel: "info",
	}
}

// Validate returns every problem found in the configuration.
func (c *Config) Validate() (errs []error) {
	if c.DefaultVolume < 0 || c.DefaultVolume > 1 {
		errs = append(errs, fmt.Errorf("config: `default_volume` must be between 0 and 1, got %v", c.DefaultVolume))
	}
	if c.Crossfade <= 0 {
		errs = append(errs, fmt.Errorf("config: `crossfade` must be positive"))
	}
	if c.FadeTick <= 0 {
		errs = append(errs, fmt.Errorf("config: `fade_tick` must be positive"))
	} else if c.FadeTick > c.Crossfade && c.Crossfade > 0 {
		errs = append(errs, fmt.Errorf("config: `fade_tick` must not exceed `crossfade`"))
	}
	if c.Output.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("config: `output.sample_rate` must be positive"))
	}
	if c.Output.Buffer <= 0 {
		errs = append(errs, fmt.Errorf("config: `output.buffer` must be positive"))
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("config: `log_level`: %w", err))
	}
	return
}

// Level returns the configured log level.
func (c *Config) Level() log.Level {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return level
}

// LoadConfig reads configuration from file. Fields missing from the file
// keep their defaults; unknown fields are rejected.
func LoadConfig(path string) (*Config, error) {
	config := GetDefaultConfig()

	fd, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	defer fd.Close()

	d := yaml.NewDecoder(fd)
	d.KnownFields(true)
	if err := d.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return config, nil
}

// SaveConfig marshals and saves configuration to file
func SaveConfig(config *Config, path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadOrCreate loads config from path or creates default if not exists
func LoadOrCreate(path string) (*Config, error) {
	config, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	// Save default config if file didn't exist
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := SaveConfig(config, path); err != nil {
			return nil, fmt.Errorf("failed to save default config: %w", err)
		}
	}

	return config, nil
}

// GetConfigPath returns the default config file path
func GetConfigPath() string {
	// Check environment variable first
	if path := os.Getenv("MUSIC_PLAYER_CONFIG"); path != "" {
		return path
	}

	// Use XDG config directory if available
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "musicplayer", "config.yaml")
	}

	// Fall back to home directory
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}

	return filepath.Join(home, ".config", "musicplayer", "config.yaml")
}
